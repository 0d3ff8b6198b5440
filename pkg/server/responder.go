package server

import (
	"context"
	"strings"

	"github.com/go-go-golems/rehearsal/pkg/followup"
	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/go-go-golems/rehearsal/pkg/search"
	"github.com/pkg/errors"
)

// NoFollowUpMessage is sent when an expected response matches but has no
// follow-up questions attached.
const NoFollowUpMessage = "No follow-up questions available."

type Source string

const (
	SourceStore Source = "store"
	SourceTree  Source = "tree"
	SourceEcho  Source = "echo"
)

type Answer struct {
	Text   string
	Source Source
	// ReplyID is set for answers taken from the reply tree
	ReplyID replytree.NodeID
}

type FollowUpFinder interface {
	FindByExpectedResponse(ctx context.Context, text string) (*followup.Response, error)
	RandomFollowUp(r *followup.Response) (string, bool)
}

// Responder answers a candidate utterance: a stored follow-up for an exact
// expected response first, then the best interviewer reply below the most
// similar candidate utterance of the reply tree, else the utterance itself.
type Responder struct {
	finder   FollowUpFinder
	searcher *search.Searcher
	embedder replytree.Embedder
	treePath string
}

type ResponderOption func(*Responder)

func WithFollowUps(finder FollowUpFinder) ResponderOption {
	return func(r *Responder) {
		r.finder = finder
	}
}

// WithTree enables tree lookups against the file at path. The embedder must
// be the one the tree was built with.
func WithTree(path string, searcher *search.Searcher, embedder replytree.Embedder) ResponderOption {
	return func(r *Responder) {
		r.treePath = path
		r.searcher = searcher
		r.embedder = embedder
	}
}

func NewResponder(options ...ResponderOption) *Responder {
	ret := &Responder{}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Respond matches on the trimmed utterance, since stored expected responses
// are trimmed, but an echo returns the frame exactly as received.
func (r *Responder) Respond(ctx context.Context, raw string) (Answer, error) {
	text := strings.TrimSpace(raw)

	if r.finder != nil {
		resp, err := r.finder.FindByExpectedResponse(ctx, text)
		switch {
		case err == nil:
			if q, ok := r.finder.RandomFollowUp(resp); ok {
				return Answer{Text: q, Source: SourceStore}, nil
			}
			return Answer{Text: NoFollowUpMessage, Source: SourceStore}, nil
		case !errors.Is(err, followup.ErrNotFound):
			return Answer{}, errors.Wrap(err, "looking up follow-up")
		}
	}

	if r.searcher != nil && r.treePath != "" && text != "" {
		reply, err := r.fromTree(ctx, text)
		if err != nil {
			return Answer{}, err
		}
		if reply != nil {
			return Answer{Text: reply.Text, Source: SourceTree, ReplyID: reply.ID}, nil
		}
	}

	return Answer{Text: raw, Source: SourceEcho}, nil
}

func (r *Responder) fromTree(ctx context.Context, text string) (*replytree.Reply, error) {
	ix, err := r.searcher.Index(r.treePath)
	if err != nil {
		return nil, errors.Wrap(err, "loading search index")
	}
	vector, err := r.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "embedding utterance")
	}

	candidates, err := search.NewRoleFilter(replytree.RoleCandidate)
	if err != nil {
		return nil, err
	}
	hits, err := ix.QueryVector(vector, 1, candidates)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	reply, _ := search.BestChild(hits[0].Reply, replytree.RoleInterviewer, vector)
	return reply, nil
}
