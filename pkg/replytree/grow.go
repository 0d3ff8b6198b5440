package replytree

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-go-golems/rehearsal/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrInvalidTargetSize = errors.New("target size must be at least 1")

type growOptions struct {
	rng  *rand.Rand
	sink events.EventSink
}

type GrowOption func(*growOptions)

// WithRand sets the source used to pick the node that receives the next
// reply. Pass a seeded source for reproducible runs.
func WithRand(rng *rand.Rand) GrowOption {
	return func(o *growOptions) {
		o.rng = rng
	}
}

func WithSink(sink events.EventSink) GrowOption {
	return func(o *growOptions) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// Grow builds a tree of targetSize replies starting from the seed question.
//
// Every step picks a node uniformly among all nodes created so far (not only
// leaves) and appends one generated reply to it, so exactly targetSize-1
// replies are generated. The first failing generate or embed call aborts the
// run.
func Grow(
	ctx context.Context,
	seed string,
	targetSize int,
	generator Generator,
	embedder Embedder,
	options ...GrowOption,
) (*Reply, error) {
	if targetSize < 1 {
		return nil, errors.Wrapf(ErrInvalidTargetSize, "got %d", targetSize)
	}

	opts := &growOptions{
		sink: events.NullSink{},
	}
	for _, o := range options {
		o(opts)
	}
	if opts.rng == nil {
		opts.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	root, err := NewRoot(ctx, seed, embedder)
	if err != nil {
		return nil, err
	}

	start := events.NewGrowthEvent(events.EventTypeGrowStart, 1, targetSize)
	start.Seed = seed
	start.ReplyID = root.ID.String()
	publish(opts.sink, start)

	nodes := []*Reply{root}
	for len(nodes) < targetSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "growing tree")
		}

		node := nodes[opts.rng.Intn(len(nodes))]
		reply, err := node.AppendReply(ctx, generator, embedder)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, reply)

		log.Debug().
			Int("size", len(nodes)).
			Int("target", targetSize).
			Str("parent", node.ID.String()).
			Str("role", reply.Role.String()).
			Msg("Appended reply")

		e := events.NewGrowthEvent(events.EventTypeReplyAppended, len(nodes), targetSize)
		e.ParentID = node.ID.String()
		e.ReplyID = reply.ID.String()
		e.Role = reply.Role.String()
		e.Text = reply.Text
		publish(opts.sink, e)
	}

	publish(opts.sink, events.NewGrowthEvent(events.EventTypeGrowDone, len(nodes), targetSize))
	return root, nil
}

func publish(sink events.EventSink, e events.GrowthEvent) {
	if err := sink.PublishEvent(e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish growth event")
	}
}
