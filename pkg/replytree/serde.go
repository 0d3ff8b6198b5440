package replytree

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrMalformedDocument = errors.New("malformed reply tree document")

// Record is the persisted form of a reply. The parent back-reference is
// replaced by the parent's id ("" for the root) so the document is acyclic;
// the tree shape itself is carried by the nested children.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	Role      string    `json:"role" yaml:"role"`
	Text      string    `json:"text" yaml:"text"`
	Embedding []float32 `json:"embedding" yaml:"embedding,flow"`
	Parent    string    `json:"parent" yaml:"parent"`
	Children  []*Record `json:"children" yaml:"children"`
}

// recordFields also accepts chara/comment/comment_vector, the field names
// of the first generation of tree files.
type recordFields struct {
	ID            *string   `json:"id"`
	Role          *string   `json:"role"`
	Chara         *string   `json:"chara"`
	Text          *string   `json:"text"`
	Comment       *string   `json:"comment"`
	Embedding     []float32 `json:"embedding"`
	CommentVector []float64 `json:"comment_vector"`
	Parent        *string   `json:"parent"`
	Children      []*Record `json:"children"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var f recordFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	if f.ID == nil {
		return errors.New("record without id")
	}
	role := firstString(f.Role, f.Chara)
	if role == nil {
		return errors.Errorf("record %s: missing role", *f.ID)
	}
	text := firstString(f.Text, f.Comment)
	if text == nil {
		return errors.Errorf("record %s: missing text", *f.ID)
	}
	embedding := f.Embedding
	if embedding == nil && f.CommentVector != nil {
		narrowed, err := narrow(f.CommentVector)
		if err != nil {
			return errors.Wrapf(err, "record %s", *f.ID)
		}
		embedding = narrowed
	}
	if embedding == nil {
		return errors.Errorf("record %s: missing embedding", *f.ID)
	}

	*r = Record{
		ID:        *f.ID,
		Role:      *role,
		Text:      *text,
		Embedding: embedding,
		Children:  f.Children,
	}
	if f.Parent != nil {
		r.Parent = *f.Parent
	}
	return nil
}

// narrow converts legacy float64 vectors to the float32 used everywhere
// else. Digits past float32 precision are lost; values outside its range
// are rejected.
func narrow(v []float64) ([]float32, error) {
	out := make([]float32, len(v))
	for i, x := range v {
		if math.Abs(x) > math.MaxFloat32 {
			return nil, errors.Errorf("comment_vector[%d] = %g overflows float32", i, x)
		}
		out[i] = float32(x)
	}
	return out, nil
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// ToRecord converts the tree below root into nested records, children in
// insertion order.
func ToRecord(root *Reply) *Record {
	rec := &Record{
		ID:        root.ID.String(),
		Role:      root.Role.String(),
		Text:      root.Text,
		Embedding: root.Embedding,
		Children:  make([]*Record, 0, len(root.Children)),
	}
	if root.Parent != nil {
		rec.Parent = root.Parent.ID.String()
	}
	for _, child := range root.Children {
		rec.Children = append(rec.Children, ToRecord(child))
	}
	return rec
}

func Marshal(root *Reply) ([]byte, error) {
	return json.Marshal(ToRecord(root))
}

func MarshalIndent(root *Reply) ([]byte, error) {
	return json.MarshalIndent(ToRecord(root), "", "  ")
}

func MarshalYAML(root *Reply) ([]byte, error) {
	return yaml.Marshal(ToRecord(root))
}

// Unmarshal parses a tree document and rebuilds the parent back-references.
func Unmarshal(data []byte) (*Reply, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(ErrMalformedDocument, "decoding: %v", err)
	}
	return FromRecord(&rec)
}

// ParentRef is the parent field of a node while a document is being loaded:
// first the raw id read from the record, then the node it points to.
type ParentRef struct {
	id   NodeID
	node *Reply
}

func Unresolved(id NodeID) ParentRef {
	return ParentRef{id: id}
}

func Resolved(node *Reply) ParentRef {
	return ParentRef{id: node.ID, node: node}
}

func (p ParentRef) ID() NodeID {
	return p.id
}

func (p ParentRef) Node() *Reply {
	return p.node
}

func (p ParentRef) IsResolved() bool {
	return p.node != nil
}

func (p ParentRef) IsRoot() bool {
	return p.id.IsZero()
}

type loadNode struct {
	reply    *Reply
	parent   ParentRef
	children []*loadNode
}

// FromRecord rebuilds a live tree. Nodes are first created with unresolved
// parent ids, then a breadth-first walk resolves every id against the nodes
// already visited. Any inconsistency fails the whole load.
func FromRecord(rec *Record) (*Reply, error) {
	top, err := buildLoadNode(rec)
	if err != nil {
		return nil, err
	}
	if !top.parent.IsRoot() {
		return nil, errors.Wrapf(ErrMalformedDocument, "root %s has parent %s", top.reply.ID, top.parent.ID())
	}

	type item struct {
		node      *loadNode
		enclosing *Reply
	}

	byID := map[NodeID]*Reply{}
	dims := len(top.reply.Embedding)
	queue := []item{{node: top}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		n := it.node
		reply := n.reply

		if _, dup := byID[reply.ID]; dup {
			return nil, errors.Wrapf(ErrMalformedDocument, "duplicate id %s", reply.ID)
		}
		if len(reply.Embedding) != dims {
			return nil, errors.Wrapf(ErrMalformedDocument,
				"node %s: embedding has %d dimensions, tree uses %d", reply.ID, len(reply.Embedding), dims)
		}
		byID[reply.ID] = reply

		if it.enclosing != nil {
			if n.parent.IsRoot() {
				return nil, errors.Wrapf(ErrMalformedDocument, "node %s has no parent id", reply.ID)
			}
			parent, ok := byID[n.parent.ID()]
			if !ok {
				return nil, errors.Wrapf(ErrMalformedDocument,
					"node %s references parent %s before it was visited", reply.ID, n.parent.ID())
			}
			if parent != it.enclosing {
				return nil, errors.Wrapf(ErrMalformedDocument,
					"node %s references parent %s but is nested under %s", reply.ID, parent.ID, it.enclosing.ID)
			}
			if reply.Role != parent.Role.Next() {
				return nil, errors.Wrapf(ErrMalformedDocument,
					"node %s: role %s cannot follow %s", reply.ID, reply.Role, parent.Role)
			}
			n.parent = Resolved(parent)
			reply.Parent = parent
		}

		for _, child := range n.children {
			queue = append(queue, item{node: child, enclosing: reply})
		}
	}

	return top.reply, nil
}

func buildLoadNode(rec *Record) (*loadNode, error) {
	if rec == nil {
		return nil, errors.Wrap(ErrMalformedDocument, "null record")
	}
	if rec.ID == "" {
		return nil, errors.Wrap(ErrMalformedDocument, "record without id")
	}
	role, err := ParseRole(rec.Role)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedDocument, "node %s: %v", rec.ID, err)
	}
	if len(rec.Embedding) == 0 {
		return nil, errors.Wrapf(ErrMalformedDocument, "node %s: empty embedding", rec.ID)
	}

	n := &loadNode{
		reply: &Reply{
			ID:        NodeID(rec.ID),
			Role:      role,
			Text:      rec.Text,
			Embedding: rec.Embedding,
			Children:  make([]*Reply, 0, len(rec.Children)),
		},
		parent: Unresolved(NodeID(rec.Parent)),
	}
	for _, childRec := range rec.Children {
		child, err := buildLoadNode(childRec)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
		n.reply.Children = append(n.reply.Children, child.reply)
	}
	return n, nil
}

// SaveToFile writes the tree as indented JSON. The file is replaced
// atomically so readers never observe a partial document.
func SaveToFile(filename string, root *Reply) error {
	data, err := MarshalIndent(root)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing tree")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return errors.Wrapf(os.Rename(tmp.Name(), filename), "saving %s", filename)
}

func LoadFromFile(filename string) (*Reply, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	root, err := Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", filename)
	}
	return root, nil
}
