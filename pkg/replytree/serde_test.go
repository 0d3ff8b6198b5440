package replytree

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type tuple struct {
	ID        NodeID
	Role      Role
	Text      string
	Embedding []float32
	Parent    NodeID
	Children  []NodeID
}

func flatten(root *Reply) map[NodeID]tuple {
	ret := map[NodeID]tuple{}
	for _, n := range root.BreadthFirst().Nodes() {
		tp := tuple{ID: n.ID, Role: n.Role, Text: n.Text, Embedding: n.Embedding, Children: ids(n.Children)}
		if n.Parent != nil {
			tp.Parent = n.Parent.ID
		}
		ret[n.ID] = tp
	}
	return ret
}

func TestRoundTripParentMap(t *testing.T) {
	data, err := Marshal(buildTree())
	require.NoError(t, err)

	root, err := Unmarshal(data)
	require.NoError(t, err)

	parents := map[NodeID]NodeID{}
	for _, n := range root.BreadthFirst().Nodes() {
		if !n.IsRoot() {
			parents[n.ID] = n.Parent.ID
		}
	}
	assert.Equal(t, map[NodeID]NodeID{"b": "a", "c": "a", "d": "b", "e": "c"}, parents)
	assert.True(t, root.IsRoot())
}

func TestRoundTripGrownTree(t *testing.T) {
	original, err := Grow(context.Background(), "好きな技術について教えてください", 30, &countingGenerator{}, EmbedFunc(fakeEmbed),
		WithRand(rand.New(rand.NewSource(3))))
	require.NoError(t, err)

	data, err := MarshalIndent(original)
	require.NoError(t, err)
	loaded, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, flatten(original), flatten(loaded))
	assert.Equal(t, ids(original.BreadthFirst().Nodes()), ids(loaded.BreadthFirst().Nodes()))
}

func TestRecordParentIsIDString(t *testing.T) {
	rec := ToRecord(buildTree())
	assert.Equal(t, "", rec.Parent)
	assert.Equal(t, "a", rec.Children[0].Parent)
	assert.Equal(t, "b", rec.Children[0].Children[0].Parent)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, SaveToFile(path, buildTree()))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, flatten(buildTree()), flatten(loaded))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestUnmarshalLegacyFieldNames(t *testing.T) {
	doc := `{
		"parent": "", "chara": "interviewer", "id": "r", "comment": "自己紹介をしてください",
		"comment_vector": [0.5, 0.5],
		"children": [
			{"parent": "r", "chara": "candidate", "id": "c1", "comment": "学生です", "comment_vector": [1, 0], "children": []}
		]
	}`
	root, err := Unmarshal([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, RoleInterviewer, root.Role)
	assert.Equal(t, "自己紹介をしてください", root.Text)
	require.Len(t, root.Children, 1)
	assert.Equal(t, RoleCandidate, root.Children[0].Role)
	assert.Equal(t, []float32{1, 0}, root.Children[0].Embedding)
	assert.Same(t, root, root.Children[0].Parent)
}

func TestUnmarshalLegacyVectorNarrowsToFloat32(t *testing.T) {
	doc := `{"id":"r","chara":"interviewer","comment":"q","comment_vector":[0.12345678901234567,-0.25]}`
	root, err := Unmarshal([]byte(doc))
	require.NoError(t, err)

	precise := 0.12345678901234567
	assert.Equal(t, []float32{float32(precise), -0.25}, root.Embedding)
	assert.InDelta(t, precise, float64(root.Embedding[0]), 1e-7)

	_, err = Unmarshal([]byte(`{"id":"r","chara":"interviewer","comment":"q","comment_vector":[1,3.4e39]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows float32")
}

func TestUnmarshalRootWithoutParentField(t *testing.T) {
	root, err := Unmarshal([]byte(`{"id":"r","role":"interviewer","text":"q","embedding":[1],"children":[]}`))
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
}

func TestUnmarshalMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"not json", `{`, "decoding"},
		{"missing id", `{"role":"interviewer","text":"q","embedding":[1]}`, "without id"},
		{"missing role", `{"id":"r","text":"q","embedding":[1]}`, "missing role"},
		{"unknown role", `{"id":"r","role":"recruiter","text":"q","embedding":[1]}`, "unknown role"},
		{"missing embedding", `{"id":"r","role":"interviewer","text":"q"}`, "missing embedding"},
		{"root with parent", `{"id":"r","role":"interviewer","text":"q","embedding":[1],"parent":"x"}`, "has parent"},
		{
			"unknown parent",
			`{"id":"r","role":"interviewer","text":"q","embedding":[1],"parent":"","children":[
				{"id":"c","role":"candidate","text":"a","embedding":[1],"parent":"zzz","children":[]}]}`,
			"before it was visited",
		},
		{
			"parent not matching nesting",
			`{"id":"r","role":"interviewer","text":"q","embedding":[1],"parent":"","children":[
				{"id":"c","role":"candidate","text":"a","embedding":[1],"parent":"r","children":[
					{"id":"d","role":"interviewer","text":"b","embedding":[1],"parent":"r","children":[]}]}]}`,
			"nested under",
		},
		{
			"missing parent id",
			`{"id":"r","role":"interviewer","text":"q","embedding":[1],"parent":"","children":[
				{"id":"c","role":"candidate","text":"a","embedding":[1],"parent":"","children":[]}]}`,
			"no parent id",
		},
		{
			"duplicate id",
			`{"id":"r","role":"interviewer","text":"q","embedding":[1],"parent":"","children":[
				{"id":"r","role":"candidate","text":"a","embedding":[1],"parent":"r","children":[]}]}`,
			"duplicate id",
		},
		{
			"dimension mismatch",
			`{"id":"r","role":"interviewer","text":"q","embedding":[1,2],"parent":"","children":[
				{"id":"c","role":"candidate","text":"a","embedding":[1],"parent":"r","children":[]}]}`,
			"dimensions",
		},
		{
			"roles not alternating",
			`{"id":"r","role":"interviewer","text":"q","embedding":[1],"parent":"","children":[
				{"id":"c","role":"interviewer","text":"a","embedding":[1],"parent":"r","children":[]}]}`,
			"cannot follow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Unmarshal([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDocument)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Nil(t, root)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestMarshalYAML(t *testing.T) {
	data, err := MarshalYAML(buildTree())
	require.NoError(t, err)

	var rec Record
	require.NoError(t, yaml.Unmarshal(data, &rec))
	assert.Equal(t, "a", rec.ID)
	require.Len(t, rec.Children, 2)
	assert.Equal(t, "e", rec.Children[1].Children[0].ID)
	assert.True(t, strings.Contains(string(data), "parent: a"))
}
