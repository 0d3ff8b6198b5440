package replytree

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoot(t *testing.T) {
	root, err := NewRoot(context.Background(), "Tell me about yourself", EmbedFunc(fakeEmbed))
	require.NoError(t, err)

	assert.True(t, root.IsRoot())
	assert.Equal(t, RoleInterviewer, root.Role)
	assert.False(t, root.ID.IsZero())
	assert.Len(t, root.Embedding, 3)
}

func TestNewRootRejectsEmptySeed(t *testing.T) {
	_, err := NewRoot(context.Background(), "  ", EmbedFunc(fakeEmbed))
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestAppendReplyAlternatesRoles(t *testing.T) {
	ctx := context.Background()
	gen := &countingGenerator{}
	root, err := NewRoot(ctx, "Why engineering?", EmbedFunc(fakeEmbed))
	require.NoError(t, err)

	answer, err := root.AppendReply(ctx, gen, EmbedFunc(fakeEmbed))
	require.NoError(t, err)
	followUp, err := answer.AppendReply(ctx, gen, EmbedFunc(fakeEmbed))
	require.NoError(t, err)

	assert.Equal(t, RoleCandidate, answer.Role)
	assert.Equal(t, RoleInterviewer, followUp.Role)
	assert.Same(t, root, answer.Parent)
	assert.Equal(t, []*Reply{answer}, root.Children)

	// the second call sees the whole path, tagged from the interviewer's side
	require.Len(t, gen.transcripts, 2)
	assert.Equal(t, []Utterance{
		{Tag: TagSelf, Role: RoleInterviewer, Text: "Why engineering?"},
		{Tag: TagOther, Role: RoleCandidate, Text: "candidate reply 1"},
	}, gen.transcripts[1])
}

func TestAppendReplyFailuresLeaveTreeUntouched(t *testing.T) {
	ctx := context.Background()
	root, err := NewRoot(ctx, "Why engineering?", EmbedFunc(fakeEmbed))
	require.NoError(t, err)

	boom := errors.New("boom")
	failing := GeneratorFunc(func(context.Context, Role, []Utterance) (string, error) {
		return "", boom
	})
	_, err = root.AppendReply(ctx, failing, EmbedFunc(fakeEmbed))
	require.ErrorIs(t, err, boom)

	blank := GeneratorFunc(func(context.Context, Role, []Utterance) (string, error) {
		return " \n", nil
	})
	_, err = root.AppendReply(ctx, blank, EmbedFunc(fakeEmbed))
	require.ErrorIs(t, err, ErrEmptyReply)

	embedFails := EmbedFunc(func(context.Context, string) ([]float32, error) {
		return nil, boom
	})
	_, err = root.AppendReply(ctx, &countingGenerator{}, embedFails)
	require.ErrorIs(t, err, boom)

	wrongDims := EmbedFunc(func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	})
	_, err = root.AppendReply(ctx, &countingGenerator{}, wrongDims)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	assert.Empty(t, root.Children)
}

func TestPathFromRoot(t *testing.T) {
	root := buildTree()
	d, ok := root.Find("d")
	require.True(t, ok)

	assert.Equal(t, []NodeID{"a", "b", "d"}, ids(d.PathFromRoot()))
	assert.Equal(t, []NodeID{"a"}, ids(root.PathFromRoot()))
	assert.Equal(t, 2, d.Depth())
	assert.Same(t, root, d.Root())
}

func TestBreadthFirstOrder(t *testing.T) {
	root := buildTree()

	first := ids(root.BreadthFirst().Nodes())
	assert.Equal(t, []NodeID{"a", "b", "c", "d", "e"}, first)
	// a fresh walker restarts the traversal
	assert.Equal(t, first, ids(root.BreadthFirst().Nodes()))

	c, _ := root.Find("c")
	assert.Equal(t, []NodeID{"c", "e"}, ids(c.BreadthFirst().Nodes()))
	assert.Equal(t, 5, root.Size())
}

func TestWalkStopsEarly(t *testing.T) {
	var seen []NodeID
	buildTree().Walk(func(r *Reply) bool {
		seen = append(seen, r.ID)
		return r.ID != "b"
	})
	assert.Equal(t, []NodeID{"a", "b"}, seen)
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, buildTree()))
	assert.Equal(t,
		"面接官: Tell me about yourself\n"+
			"  学生: I am a student\n"+
			"    面接官: Which school?\n"+
			"  学生: I build compilers\n"+
			"    面接官: Which language?\n",
		buf.String())
}
