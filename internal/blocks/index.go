package blocks

import (
	"sort"

	"pagebuilder/internal/domain"
)

// Index is an arena view over a block slice: id to position, and parent id
// to ordered child ids. It is rebuilt from the slice and never mutated.
type Index struct {
	blocks   []domain.Block
	pos      map[string]int
	children map[string][]string
}

// NewIndex builds the index. On duplicate ids the first occurrence wins.
// Blocks without an id are not indexed: "" names the root level.
func NewIndex(blocks []domain.Block) *Index {
	idx := &Index{
		blocks:   blocks,
		pos:      make(map[string]int, len(blocks)),
		children: make(map[string][]string),
	}
	for i, b := range blocks {
		if b.ID == "" {
			continue
		}
		if _, dup := idx.pos[b.ID]; dup {
			continue
		}
		idx.pos[b.ID] = i
	}
	for i, b := range blocks {
		if j, ok := idx.pos[b.ID]; !ok || j != i {
			continue
		}
		idx.children[b.ParentID] = append(idx.children[b.ParentID], b.ID)
	}
	for parent, kids := range idx.children {
		idx.sortSiblings(kids)
		idx.children[parent] = kids
	}
	return idx
}

// sortSiblings orders ids by Order, then by array position.
func (idx *Index) sortSiblings(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := idx.blocks[idx.pos[ids[i]]], idx.blocks[idx.pos[ids[j]]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return idx.pos[ids[i]] < idx.pos[ids[j]]
	})
}

// Has reports whether id is present.
func (idx *Index) Has(id string) bool {
	_, ok := idx.pos[id]
	return ok
}

// Get returns the block with the given id.
func (idx *Index) Get(id string) (domain.Block, bool) {
	i, ok := idx.pos[id]
	if !ok {
		return domain.Block{}, false
	}
	return idx.blocks[i], true
}

// Position returns the slice position of id, or -1.
func (idx *Index) Position(id string) int {
	if i, ok := idx.pos[id]; ok {
		return i
	}
	return -1
}

// ChildIDs returns the ordered child ids of parentID ("" for roots).
func (idx *Index) ChildIDs(parentID string) []string {
	return idx.children[parentID]
}

// Descendants returns every transitive descendant of id, breadth first.
// It terminates even if the slice contains a parent cycle.
func (idx *Index) Descendants(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range idx.children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first. The walk stops
// at a missing parent or when an id repeats.
func (idx *Index) Ancestors(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	b, ok := idx.Get(id)
	for ok && b.ParentID != "" && !seen[b.ParentID] {
		seen[b.ParentID] = true
		out = append(out, b.ParentID)
		b, ok = idx.Get(b.ParentID)
	}
	return out
}

// IsAncestor reports whether ancestor lies on the parent chain of id.
func (idx *Index) IsAncestor(ancestor, id string) bool {
	for _, a := range idx.Ancestors(id) {
		if a == ancestor {
			return true
		}
	}
	return false
}
