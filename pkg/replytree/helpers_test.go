package replytree

import (
	"context"
	"fmt"
	"hash/fnv"
)

// fakeEmbed derives a small stable vector from the text.
func fakeEmbed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	return []float32{float32(sum % 97), float32(len(text)), 1}, nil
}

type countingGenerator struct {
	calls       int
	transcripts [][]Utterance
}

func (g *countingGenerator) GenerateReply(_ context.Context, speaker Role, transcript []Utterance) (string, error) {
	g.calls++
	g.transcripts = append(g.transcripts, transcript)
	return fmt.Sprintf("%s reply %d", speaker, g.calls), nil
}

// buildTree wires replies by hand: ids a..e, b and c under a, d under b,
// e under c.
func buildTree() *Reply {
	a := &Reply{ID: "a", Role: RoleInterviewer, Text: "Tell me about yourself", Embedding: []float32{1, 0}}
	b := &Reply{ID: "b", Role: RoleCandidate, Text: "I am a student", Embedding: []float32{0, 1}, Parent: a}
	c := &Reply{ID: "c", Role: RoleCandidate, Text: "I build compilers", Embedding: []float32{1, 1}, Parent: a}
	d := &Reply{ID: "d", Role: RoleInterviewer, Text: "Which school?", Embedding: []float32{0, 0}, Parent: b}
	e := &Reply{ID: "e", Role: RoleInterviewer, Text: "Which language?", Embedding: []float32{2, 1}, Parent: c}
	a.Children = []*Reply{b, c}
	b.Children = []*Reply{d}
	c.Children = []*Reply{e}
	return a
}

func ids(nodes []*Reply) []NodeID {
	ret := make([]NodeID, 0, len(nodes))
	for _, n := range nodes {
		ret = append(ret, n.ID)
	}
	return ret
}
