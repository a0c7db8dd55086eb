package extract

import "golang.org/x/net/html"

// noParent is the parent index of the root node.
const noParent = -1

// Tree is a flat, pre-order index of a parsed HTML document. Each node knows
// its parent by index, so ancestor checks are walks over a slice.
type Tree struct {
	nodes  []*html.Node
	parent []int
	index  map[*html.Node]int
}

// NewTree indexes every node reachable from root in document order.
func NewTree(root *html.Node) *Tree {
	t := &Tree{index: make(map[*html.Node]int)}
	if root != nil {
		t.add(root, noParent)
	}
	return t
}

func (t *Tree) add(n *html.Node, parent int) {
	i := len(t.nodes)
	t.nodes = append(t.nodes, n)
	t.parent = append(t.parent, parent)
	t.index[n] = i
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.add(c, i)
	}
}

// Len returns the number of indexed nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node at index i.
func (t *Tree) Node(i int) *html.Node {
	return t.nodes[i]
}

// IndexOf returns the index of n, or false if n is not part of the tree.
func (t *Tree) IndexOf(n *html.Node) (int, bool) {
	i, ok := t.index[n]
	return i, ok
}

// Parent returns the parent index of i, or -1 for the root.
func (t *Tree) Parent(i int) int {
	return t.parent[i]
}

// Within reports whether node i is ancestor itself or one of its descendants.
func (t *Tree) Within(i, ancestor int) bool {
	if ancestor < 0 {
		return false
	}
	for ; i != noParent; i = t.parent[i] {
		if i == ancestor {
			return true
		}
	}
	return false
}

// Outermost returns the highest ancestor of i (i included) for which match
// returns true.
func (t *Tree) Outermost(i int, match func(int) bool) int {
	best := i
	for p := t.parent[i]; p != noParent; p = t.parent[p] {
		if match(p) {
			best = p
		}
	}
	return best
}
