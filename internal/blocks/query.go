package blocks

import "pagebuilder/internal/domain"

// ChildrenOf returns the children of parentID ("" for roots) sorted by
// Order, ties broken by position in blocks.
func ChildrenOf(blocks []domain.Block, parentID string) []domain.Block {
	idx := NewIndex(blocks)
	return idx.resolve(idx.ChildIDs(parentID))
}

// Roots returns the root blocks in render order.
func Roots(blocks []domain.Block) []domain.Block {
	return ChildrenOf(blocks, "")
}

// Find returns the block with the given id.
func Find(blocks []domain.Block, id string) (domain.Block, bool) {
	return NewIndex(blocks).Get(id)
}

// Descendants returns every transitive descendant of id, breadth first.
func Descendants(blocks []domain.Block, id string) []domain.Block {
	idx := NewIndex(blocks)
	return idx.resolve(idx.Descendants(id))
}

// Ancestors returns the parent chain of id, nearest first.
func Ancestors(blocks []domain.Block, id string) []domain.Block {
	idx := NewIndex(blocks)
	return idx.resolve(idx.Ancestors(id))
}

// IsAncestor reports whether ancestor lies on the parent chain of id.
func IsAncestor(blocks []domain.Block, ancestor, id string) bool {
	return NewIndex(blocks).IsAncestor(ancestor, id)
}

func (idx *Index) resolve(ids []string) []domain.Block {
	out := make([]domain.Block, 0, len(ids))
	for _, id := range ids {
		b, _ := idx.Get(id)
		out = append(out, b)
	}
	return out
}

// Node is a block with its children resolved, as a renderer walks it.
type Node struct {
	domain.Block
	Children []Node `json:"children"`
}

// Tree resolves the nested view of blocks starting from the roots.
// Blocks unreachable from a root (dangling parents, cycles) are left out.
func Tree(blocks []domain.Block) []Node {
	idx := NewIndex(blocks)
	seen := make(map[string]bool, len(blocks))
	return idx.subtree("", seen)
}

// Subtree resolves the nested view below a single block.
func Subtree(blocks []domain.Block, id string) (Node, bool) {
	idx := NewIndex(blocks)
	b, ok := idx.Get(id)
	if !ok {
		return Node{}, false
	}
	seen := map[string]bool{id: true}
	return Node{Block: b, Children: idx.subtree(id, seen)}, true
}

func (idx *Index) subtree(parentID string, seen map[string]bool) []Node {
	kids := idx.ChildIDs(parentID)
	nodes := make([]Node, 0, len(kids))
	for _, id := range kids {
		if seen[id] {
			continue
		}
		seen[id] = true
		b, _ := idx.Get(id)
		nodes = append(nodes, Node{Block: b, Children: idx.subtree(id, seen)})
	}
	return nodes
}

// Report lists what Normalize removed.
type Report struct {
	Invalid     []int    `json:"invalid,omitempty"` // positions of blocks without an id
	Duplicates  []string `json:"duplicates,omitempty"`
	Unreachable []string `json:"unreachable,omitempty"`
}

// Clean reports whether nothing was removed.
func (r Report) Clean() bool {
	return len(r.Invalid) == 0 && len(r.Duplicates) == 0 && len(r.Unreachable) == 0
}

// Dropped is the number of blocks Normalize removed.
func (r Report) Dropped() int {
	return len(r.Invalid) + len(r.Duplicates) + len(r.Unreachable)
}

// Normalize drops blocks without an id, repeated ids (the first occurrence
// wins) and every block that cannot be reached from a root: blocks with a
// dangling parent, blocks on a parent cycle, and all of their descendants. Surviving blocks keep
// their relative order, so a well-formed slice comes back unchanged.
func Normalize(blocks []domain.Block) ([]domain.Block, Report) {
	var rep Report
	idx := NewIndex(blocks)

	reachable := make(map[string]bool, len(blocks))
	for _, root := range idx.ChildIDs("") {
		reachable[root] = true
		for _, id := range idx.Descendants(root) {
			reachable[id] = true
		}
	}

	out := make([]domain.Block, 0, len(blocks))
	for i, b := range blocks {
		switch {
		case b.ID == "":
			rep.Invalid = append(rep.Invalid, i)
		case idx.Position(b.ID) != i:
			rep.Duplicates = append(rep.Duplicates, b.ID)
		case !reachable[b.ID]:
			rep.Unreachable = append(rep.Unreachable, b.ID)
		default:
			out = append(out, b)
		}
	}
	if rep.Clean() {
		return blocks, rep
	}
	return out, rep
}
