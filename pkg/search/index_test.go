package search

import (
	"context"
	"math/rand"
	"testing"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourNodes is a root with three children; roles and embeddings in
// breadth-first order are interviewer [1,0], candidate [0,1],
// candidate [1,1], interviewer [0,0]. The last node sits under the second
// candidate so that roles still alternate.
func fourNodes() *replytree.Reply {
	n1 := &replytree.Reply{ID: "n1", Role: replytree.RoleInterviewer, Text: "q", Embedding: []float32{1, 0}}
	n2 := &replytree.Reply{ID: "n2", Role: replytree.RoleCandidate, Text: "a1", Embedding: []float32{0, 1}, Parent: n1}
	n3 := &replytree.Reply{ID: "n3", Role: replytree.RoleCandidate, Text: "a2", Embedding: []float32{1, 1}, Parent: n1}
	n4 := &replytree.Reply{ID: "n4", Role: replytree.RoleInterviewer, Text: "f", Embedding: []float32{0, 0}, Parent: n2}
	n1.Children = []*replytree.Reply{n2, n3}
	n2.Children = []*replytree.Reply{n4}
	return n1
}

func mustBuild(t *testing.T, root *replytree.Reply) *Index {
	t.Helper()
	ix, err := Build(root)
	require.NoError(t, err)
	return ix
}

func vectorEmbedder(vec []float32) replytree.EmbedFunc {
	return func(context.Context, string) ([]float32, error) {
		return vec, nil
	}
}

func hitIDs(replies []*replytree.Reply) []replytree.NodeID {
	var ret []replytree.NodeID
	for _, r := range replies {
		ret = append(ret, r.ID)
	}
	return ret
}

func TestBuildKeepsBreadthFirstOrder(t *testing.T) {
	ix := mustBuild(t, fourNodes())
	assert.Equal(t, []replytree.NodeID{"n1", "n2", "n3", "n4"}, ix.ids)
	assert.Equal(t, 2, ix.Dimensions())
	assert.Equal(t, 4, ix.Len())

	r, ok := ix.Lookup("n3")
	require.True(t, ok)
	assert.Equal(t, "a2", r.Text)
}

func TestQueryCandidateOnly(t *testing.T) {
	ix := mustBuild(t, fourNodes())
	filter, err := NewRoleFilter(replytree.RoleCandidate)
	require.NoError(t, err)

	got, err := ix.Query(context.Background(), vectorEmbedder([]float32{1, 0}), "query", 1, filter)
	require.NoError(t, err)
	assert.Equal(t, []replytree.NodeID{"n3"}, hitIDs(got))
}

func TestQueryTiesKeepTraversalOrder(t *testing.T) {
	ix := mustBuild(t, fourNodes())
	// n1 and n3 both score 1, n2 and n4 score 0
	hits, err := ix.QueryVector([]float32{1, 0}, 10, AllRoles())
	require.NoError(t, err)

	require.Len(t, hits, 4)
	assert.Equal(t, replytree.NodeID("n1"), hits[0].Reply.ID)
	assert.Equal(t, replytree.NodeID("n3"), hits[1].Reply.ID)
	assert.Equal(t, replytree.NodeID("n2"), hits[2].Reply.ID)
	assert.Equal(t, replytree.NodeID("n4"), hits[3].Reply.ID)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, 2, hits[1].Position)
}

func TestQueryFewerThanK(t *testing.T) {
	ix := mustBuild(t, fourNodes())
	filter, _ := NewRoleFilter(replytree.RoleInterviewer)
	hits, err := ix.QueryVector([]float32{0, 1}, 5, filter)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestQueryEmptyCandidateSet(t *testing.T) {
	root := &replytree.Reply{ID: "r", Role: replytree.RoleInterviewer, Text: "q", Embedding: []float32{1}}
	filter, _ := NewRoleFilter(replytree.RoleCandidate)

	got, err := mustBuild(t, root).Query(context.Background(), vectorEmbedder([]float32{1}), "q", 3, filter)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestQueryZeroK(t *testing.T) {
	hits, err := mustBuild(t, fourNodes()).QueryVector([]float32{1, 0}, 0, AllRoles())
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQueryRejectsZeroFilter(t *testing.T) {
	_, err := mustBuild(t, fourNodes()).QueryVector([]float32{1, 0}, 1, RoleFilter{})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestQueryDimensionMismatch(t *testing.T) {
	_, err := mustBuild(t, fourNodes()).QueryVector([]float32{1, 0, 0}, 1, AllRoles())
	require.ErrorIs(t, err, replytree.ErrDimensionMismatch)
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	root := fourNodes()
	n3 := root.Children[1]
	n3.Children = append(n3.Children, &replytree.Reply{
		ID: "short", Role: replytree.RoleInterviewer, Text: "s", Embedding: []float32{1}, Parent: n3,
	})
	root.Children[0].Embedding = []float32{0, 1, 0}

	ix, err := Build(root)
	require.ErrorIs(t, err, replytree.ErrDimensionMismatch)
	assert.Nil(t, ix)
	assert.Contains(t, err.Error(), "reply n2 has 3 dimensions")

	root.Children[0].Embedding = []float32{0, 1}
	_, err = Build(root)
	require.ErrorIs(t, err, replytree.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "reply short has 1 dimensions")
}

func TestQueryEmbeddingFailure(t *testing.T) {
	boom := errors.New("embedding service down")
	failing := replytree.EmbedFunc(func(context.Context, string) ([]float32, error) {
		return nil, boom
	})
	_, err := mustBuild(t, fourNodes()).Query(context.Background(), failing, "q", 1, AllRoles())
	require.ErrorIs(t, err, boom)
}

func TestIndexIsSnapshot(t *testing.T) {
	root := fourNodes()
	ix := mustBuild(t, root)
	root.Children = append(root.Children, &replytree.Reply{
		ID: "late", Role: replytree.RoleCandidate, Text: "late", Embedding: []float32{9, 9}, Parent: root,
	})

	hits, err := ix.QueryVector([]float32{1, 1}, 10, AllRoles())
	require.NoError(t, err)
	assert.Len(t, hits, 4)
	for _, h := range hits {
		assert.NotEqual(t, replytree.NodeID("late"), h.Reply.ID)
	}
}

func randomTree(t *testing.T, seed int64, size int) *replytree.Reply {
	rng := rand.New(rand.NewSource(seed))
	embed := replytree.EmbedFunc(func(context.Context, string) ([]float32, error) {
		return []float32{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}, nil
	})
	gen := replytree.GeneratorFunc(func(_ context.Context, speaker replytree.Role, tr []replytree.Utterance) (string, error) {
		return speaker.String(), nil
	})
	root, err := replytree.Grow(context.Background(), "seed", size, gen, embed, replytree.WithRand(rand.New(rand.NewSource(seed))))
	require.NoError(t, err)
	return root
}

func TestQueryProperties(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		root := randomTree(t, seed, 40)
		ix := mustBuild(t, root)
		query := []float32{0.3, -0.2, 0.9}

		for _, filter := range []RoleFilter{AllRoles(), mustFilter(t, replytree.RoleCandidate), mustFilter(t, replytree.RoleInterviewer)} {
			hits, err := ix.QueryVector(query, 7, filter)
			require.NoError(t, err)

			again, err := ix.QueryVector(query, 7, filter)
			require.NoError(t, err)
			assert.Equal(t, hits, again)

			returned := map[replytree.NodeID]bool{}
			for i, h := range hits {
				assert.True(t, filter.Allows(h.Reply.Role))
				if i > 0 {
					assert.GreaterOrEqual(t, hits[i-1].Score, h.Score)
				}
				returned[h.Reply.ID] = true
			}

			lowest := hits[len(hits)-1].Score
			for _, n := range root.BreadthFirst().Nodes() {
				if !filter.Allows(n.Role) || returned[n.ID] {
					continue
				}
				assert.LessOrEqual(t, dot(n.Embedding, query), lowest)
			}
		}
	}
}

func mustFilter(t *testing.T, roles ...replytree.Role) RoleFilter {
	f, err := NewRoleFilter(roles...)
	require.NoError(t, err)
	return f
}

func TestMixedNorms(t *testing.T) {
	assert.True(t, mustBuild(t, fourNodes()).MixedNorms(0.01))

	a := &replytree.Reply{ID: "a", Role: replytree.RoleInterviewer, Text: "q", Embedding: []float32{1, 0}}
	b := &replytree.Reply{ID: "b", Role: replytree.RoleCandidate, Text: "a", Embedding: []float32{0, 1}, Parent: a}
	a.Children = []*replytree.Reply{b}
	assert.False(t, mustBuild(t, a).MixedNorms(0.01))
}

func TestBestChild(t *testing.T) {
	root := fourNodes()
	n2 := root.Children[0]
	n5 := &replytree.Reply{ID: "n5", Role: replytree.RoleInterviewer, Text: "g", Embedding: []float32{2, 0}, Parent: n2}
	n2.Children = append(n2.Children, n5)

	best, ok := BestChild(n2, replytree.RoleInterviewer, []float32{1, 0})
	require.True(t, ok)
	assert.Equal(t, replytree.NodeID("n5"), best.ID)

	// all scores zero, the first child wins
	best, ok = BestChild(n2, replytree.RoleInterviewer, []float32{0, 1})
	require.True(t, ok)
	assert.Equal(t, replytree.NodeID("n4"), best.ID)

	_, ok = BestChild(root.Children[1], replytree.RoleInterviewer, []float32{1, 0})
	assert.False(t, ok)
	_, ok = BestChild(root, replytree.RoleInterviewer, []float32{1, 0})
	assert.False(t, ok)
}
