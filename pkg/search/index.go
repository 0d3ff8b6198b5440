package search

import (
	"context"
	"math"
	"sort"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/pkg/errors"
	"github.com/viant/vec/search"
)

// Index is a flat snapshot of a reply tree in breadth-first order, with ids,
// embeddings and roles kept in parallel slices. It never observes changes
// made to the tree after Build and is safe for concurrent queries.
type Index struct {
	ids     []replytree.NodeID
	vectors [][]float32
	roles   []replytree.Role
	norms   []float64
	byID    map[replytree.NodeID]*replytree.Reply
	dims    int
}

// Hit is one query result. Position is the breadth-first rank of the reply
// in the indexed tree.
type Hit struct {
	Reply    *replytree.Reply
	Score    float64
	Position int
}

// Build snapshots the tree below root. Every reply must have as many
// dimensions as the root; trees assembled by hand are not validated
// elsewhere.
func Build(root *replytree.Reply) (*Index, error) {
	ix := &Index{
		byID: map[replytree.NodeID]*replytree.Reply{},
		dims: len(root.Embedding),
	}
	w := root.BreadthFirst()
	for node, ok := w.Next(); ok; node, ok = w.Next() {
		if len(node.Embedding) != ix.dims {
			return nil, errors.Wrapf(replytree.ErrDimensionMismatch,
				"reply %s has %d dimensions, root has %d", node.ID, len(node.Embedding), ix.dims)
		}
		vector := append([]float32(nil), node.Embedding...)
		ix.ids = append(ix.ids, node.ID)
		ix.vectors = append(ix.vectors, vector)
		ix.roles = append(ix.roles, node.Role)
		ix.norms = append(ix.norms, float64(search.Float32s(vector).Magnitude()))
		ix.byID[node.ID] = node
	}
	return ix, nil
}

func (ix *Index) Len() int {
	return len(ix.ids)
}

func (ix *Index) Dimensions() int {
	return ix.dims
}

func (ix *Index) Lookup(id replytree.NodeID) (*replytree.Reply, bool) {
	r, ok := ix.byID[id]
	return r, ok
}

// Query embeds text and returns the k best replies among the allowed roles.
func (ix *Index) Query(
	ctx context.Context,
	embedder replytree.Embedder,
	text string,
	k int,
	filter RoleFilter,
) ([]*replytree.Reply, error) {
	hits, err := ix.QueryHits(ctx, embedder, text, k, filter)
	if err != nil {
		return nil, err
	}
	ret := make([]*replytree.Reply, 0, len(hits))
	for _, h := range hits {
		ret = append(ret, h.Reply)
	}
	return ret, nil
}

func (ix *Index) QueryHits(
	ctx context.Context,
	embedder replytree.Embedder,
	text string,
	k int,
	filter RoleFilter,
) ([]Hit, error) {
	if filter.IsZero() {
		return nil, errors.Wrap(ErrInvalidFilter, "no role allowed")
	}
	vector, err := embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "embedding query")
	}
	return ix.QueryVector(vector, k, filter)
}

// QueryVector scores every entry of an allowed role by the plain dot product
// with vector. Embeddings are not normalized here: the score only ranks like
// cosine similarity when all embeddings share the same norm.
//
// Results are sorted by descending score, ties keep breadth-first order.
// An empty candidate set is not an error.
func (ix *Index) QueryVector(vector []float32, k int, filter RoleFilter) ([]Hit, error) {
	if filter.IsZero() {
		return nil, errors.Wrap(ErrInvalidFilter, "no role allowed")
	}
	if len(vector) != ix.dims {
		return nil, errors.Wrapf(replytree.ErrDimensionMismatch, "query has %d dimensions, index uses %d", len(vector), ix.dims)
	}

	var hits []Hit
	for i, role := range ix.roles {
		if !filter.Allows(role) {
			continue
		}
		hits = append(hits, Hit{
			Reply:    ix.byID[ix.ids[i]],
			Score:    dot(ix.vectors[i], vector),
			Position: i,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k < 0 {
		k = 0
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// BestChild returns the child of parent with the given role that scores
// highest against vector. Ties go to the earlier child.
func BestChild(parent *replytree.Reply, role replytree.Role, vector []float32) (*replytree.Reply, bool) {
	var best *replytree.Reply
	var bestScore float64
	for _, child := range parent.Children {
		if child.Role != role || len(child.Embedding) != len(vector) {
			continue
		}
		score := dot(child.Embedding, vector)
		if best == nil || score > bestScore {
			best, bestScore = child, score
		}
	}
	return best, best != nil
}

// MixedNorms reports whether the indexed embeddings differ in magnitude by
// more than tolerance (relative to the largest). Dot product ranking is only
// equivalent to cosine ranking when this is false.
func (ix *Index) MixedNorms(tolerance float64) bool {
	if len(ix.norms) < 2 {
		return false
	}
	lo, hi := math.Inf(1), 0.0
	for _, n := range ix.norms {
		lo = math.Min(lo, n)
		hi = math.Max(hi, n)
	}
	if hi == 0 {
		return false
	}
	return (hi-lo)/hi > tolerance
}
