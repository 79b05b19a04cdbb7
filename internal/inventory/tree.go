package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TreeNode is the flat, parent-pointer form of a hierarchical record.
type TreeNode struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
}

// Node is a built tree node.
type Node struct {
	TreeNode
	Children []*Node `json:"children,omitempty"`
}

// Forest is the result of BuildTree.
type Forest struct {
	Roots []*Node `json:"roots"`

	// Orphans lists ids whose parent id names a record that does not exist.
	// They are promoted to roots.
	Orphans []string `json:"orphans,omitempty"`

	byID map[string]*Node
}

// CycleError reports a parent chain that loops back on itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle in parent chain: %s", strings.Join(e.Path, " -> "))
}

// ErrDuplicateNode is returned when two nodes share an id.
var ErrDuplicateNode = errors.New("duplicate node id")

// BuildTree indexes nodes by parent id once and links children to parents.
// Children are ordered by name. A node that is its own ancestor makes the
// build fail with *CycleError.
func BuildTree(nodes []TreeNode) (*Forest, error) {
	f := &Forest{byID: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		if _, dup := f.byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		f.byID[n.ID] = &Node{TreeNode: n}
	}

	childrenByParent := make(map[string][]*Node, len(nodes))
	for _, n := range nodes {
		node := f.byID[n.ID]
		switch {
		case n.ParentID == "":
			f.Roots = append(f.Roots, node)
		case f.byID[n.ParentID] == nil:
			f.Orphans = append(f.Orphans, n.ID)
			f.Roots = append(f.Roots, node)
		default:
			childrenByParent[n.ParentID] = append(childrenByParent[n.ParentID], node)
		}
	}

	visited := make(map[string]bool, len(nodes))
	stack := append([]*Node(nil), f.Roots...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited[node.ID] = true
		node.Children = childrenByParent[node.ID]
		sortNodes(node.Children)
		stack = append(stack, node.Children...)
	}

	// Anything unreachable from a root sits on or below a cycle.
	if len(visited) != len(nodes) {
		for _, n := range nodes {
			if !visited[n.ID] {
				return nil, &CycleError{Path: f.cyclePath(n.ID)}
			}
		}
	}

	sortNodes(f.Roots)
	return f, nil
}

// cyclePath follows parent pointers from id until an id repeats and returns
// the loop, starting and ending on the repeated id.
func (f *Forest) cyclePath(id string) []string {
	seen := make(map[string]int)
	var chain []string
	for cur := id; ; cur = f.byID[cur].ParentID {
		if i, ok := seen[cur]; ok {
			return append(chain[i:], cur)
		}
		seen[cur] = len(chain)
		chain = append(chain, cur)
	}
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}

// Find returns the node with id, or nil.
func (f *Forest) Find(id string) *Node {
	return f.byID[id]
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.byID)
}

// Walk visits every node in pre-order with its depth (roots are depth 0).
// Returning false from fn skips the node's children.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range f.Roots {
		visit(r, 0)
	}
}

// Descendants returns the ids of every node below id.
func (f *Forest) Descendants(id string) []string {
	n := f.byID[id]
	if n == nil {
		return nil
	}
	var out []string
	stack := append([]*Node(nil), n.Children...)
	for len(stack) > 0 {
		c := stack[0]
		stack = stack[1:]
		out = append(out, c.ID)
		stack = append(stack, c.Children...)
	}
	return out
}

// Path returns the ids from the root down to id, inclusive.
func (f *Forest) Path(id string) []string {
	var rev []string
	for cur := f.byID[id]; cur != nil; {
		rev = append(rev, cur.ID)
		if cur.ParentID == "" {
			break
		}
		cur = f.byID[cur.ParentID]
	}
	out := make([]string, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// CategoryNodes flattens categories for BuildTree.
func CategoryNodes(cats []Category) []TreeNode {
	out := make([]TreeNode, 0, len(cats))
	for _, c := range cats {
		out = append(out, TreeNode{ID: c.ID, ParentID: c.ParentCategoryID, Name: c.Name, Color: c.Color})
	}
	return out
}

// LocationNodes flattens locations for BuildTree.
func LocationNodes(locs []Location) []TreeNode {
	out := make([]TreeNode, 0, len(locs))
	for _, l := range locs {
		out = append(out, TreeNode{ID: l.ID, ParentID: l.ParentLocationID, Name: l.Name, Color: l.Color})
	}
	return out
}
