package replytree

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrEmptyText         = errors.New("empty text")
	ErrEmptyReply        = errors.New("generator returned an empty reply")
	ErrEmptyEmbedding    = errors.New("embedder returned an empty vector")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// NodeID identifies a reply across the whole tree. New ids are UUIDs, but
// any non-empty string loaded from a document is accepted.
type NodeID string

func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

func (id NodeID) String() string {
	return string(id)
}

func (id NodeID) IsZero() bool {
	return id == ""
}

// Utterance is one transcript entry handed to a Generator.
type Utterance struct {
	Tag  DialogueTag
	Role Role
	Text string
}

// Generator produces the next utterance for speaker given the transcript so
// far, root first. The transcript is never empty.
type Generator interface {
	GenerateReply(ctx context.Context, speaker Role, transcript []Utterance) (string, error)
}

type GeneratorFunc func(ctx context.Context, speaker Role, transcript []Utterance) (string, error)

func (f GeneratorFunc) GenerateReply(ctx context.Context, speaker Role, transcript []Utterance) (string, error) {
	return f(ctx, speaker, transcript)
}

// Embedder maps text to a fixed-length vector. embeddings.Provider satisfies it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedFunc) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Reply is a node of the reply tree.
//
// Children is the only ownership path; Parent is a back-reference and is nil
// for the root. Nodes are only ever appended, never moved or removed, so the
// tree stays acyclic.
type Reply struct {
	ID        NodeID
	Role      Role
	Text      string
	Embedding []float32
	Parent    *Reply
	Children  []*Reply
}

// NewRoot creates the root question of a tree. The root is always asked by
// the interviewer.
func NewRoot(ctx context.Context, seed string, embedder Embedder) (*Reply, error) {
	if strings.TrimSpace(seed) == "" {
		return nil, errors.Wrap(ErrEmptyText, "seed question")
	}
	embedding, err := embed(ctx, embedder, seed)
	if err != nil {
		return nil, err
	}
	return &Reply{
		ID:        NewNodeID(),
		Role:      RoleInterviewer,
		Text:      seed,
		Embedding: embedding,
	}, nil
}

// AppendReply asks generator for the next utterance after r, embeds it and
// appends it as the last child of r. Nothing is appended when either call
// fails.
//
// AppendReply mutates r.Children and must not run concurrently with any other
// mutation of the same tree.
func (r *Reply) AppendReply(ctx context.Context, generator Generator, embedder Embedder) (*Reply, error) {
	speaker := r.Role.Next()
	text, err := generator.GenerateReply(ctx, speaker, r.Transcript(speaker))
	if err != nil {
		return nil, errors.Wrapf(err, "generating reply to %s", r.ID)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.Wrapf(ErrEmptyReply, "reply to %s", r.ID)
	}
	embedding, err := embed(ctx, embedder, text)
	if err != nil {
		return nil, err
	}
	if len(r.Embedding) != 0 && len(embedding) != len(r.Embedding) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "got %d, tree uses %d", len(embedding), len(r.Embedding))
	}

	child := &Reply{
		ID:        NewNodeID(),
		Role:      speaker,
		Text:      text,
		Embedding: embedding,
		Parent:    r,
	}
	r.Children = append(r.Children, child)
	return child, nil
}

func embed(ctx context.Context, embedder Embedder, text string) ([]float32, error) {
	embedding, err := embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "embedding text")
	}
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return embedding, nil
}

func (r *Reply) IsRoot() bool {
	return r.Parent == nil
}

// Root follows parent links up to the root.
func (r *Reply) Root() *Reply {
	node := r
	for !node.IsRoot() {
		node = node.Parent
	}
	return node
}

// Depth is the number of edges between r and the root.
func (r *Reply) Depth() int {
	depth := 0
	for node := r; !node.IsRoot(); node = node.Parent {
		depth++
	}
	return depth
}

// PathFromRoot returns the replies from the root down to r, inclusive.
func (r *Reply) PathFromRoot() []*Reply {
	var path []*Reply
	for node := r; node != nil; node = node.Parent {
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Transcript is PathFromRoot tagged relative to perspective, the role about
// to speak.
func (r *Reply) Transcript(perspective Role) []Utterance {
	path := r.PathFromRoot()
	ret := make([]Utterance, 0, len(path))
	for _, node := range path {
		ret = append(ret, Utterance{
			Tag:  node.Role.DialogueTag(perspective),
			Role: node.Role,
			Text: node.Text,
		})
	}
	return ret
}

// Size counts r and all its descendants.
func (r *Reply) Size() int {
	n := 0
	r.Walk(func(*Reply) bool {
		n++
		return true
	})
	return n
}

// Find returns the descendant (or r itself) with the given id.
func (r *Reply) Find(id NodeID) (*Reply, bool) {
	var found *Reply
	r.Walk(func(node *Reply) bool {
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found, found != nil
}

func (r *Reply) String() string {
	return fmt.Sprintf("%s: %s", r.Role.Label(), r.Text)
}

// Fprint writes the subtree as an indented outline, two spaces per level.
func Fprint(w io.Writer, r *Reply) error {
	return fprint(w, r, 0)
}

func fprint(w io.Writer, r *Reply, indent int) error {
	if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", indent), r); err != nil {
		return err
	}
	for _, child := range r.Children {
		if err := fprint(w, child, indent+2); err != nil {
			return err
		}
	}
	return nil
}
