package replytree

// Walker is a breadth-first traversal. Each call to BreadthFirst returns a
// fresh Walker, so traversals can be restarted at will.
type Walker struct {
	queue []*Reply
}

// BreadthFirst visits r first, then every following level left to right in
// child insertion order.
func (r *Reply) BreadthFirst() *Walker {
	return &Walker{queue: []*Reply{r}}
}

func (w *Walker) Next() (*Reply, bool) {
	if len(w.queue) == 0 {
		return nil, false
	}
	node := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	w.queue = append(w.queue, node.Children...)
	return node, true
}

// Nodes drains the remaining traversal into a slice.
func (w *Walker) Nodes() []*Reply {
	var ret []*Reply
	for node, ok := w.Next(); ok; node, ok = w.Next() {
		ret = append(ret, node)
	}
	return ret
}

// Walk visits the subtree breadth first until fn returns false.
func (r *Reply) Walk(fn func(*Reply) bool) {
	w := r.BreadthFirst()
	for node, ok := w.Next(); ok; node, ok = w.Next() {
		if !fn(node) {
			return
		}
	}
}
