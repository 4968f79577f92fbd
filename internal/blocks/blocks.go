// Package blocks implements the block tree over a flat slice of blocks.
//
// Every function is pure: the input slice and the blocks in it are never
// modified, a new slice is returned instead. When a mutation refuses to
// act it returns the input slice unchanged together with a sentinel error
// from errors.go, so callers can treat failures as no-ops.
package blocks

import (
	"fmt"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/ids"
	"pagebuilder/internal/registry"
)

// Append as an index places a block after its existing siblings.
const Append = -1

// Catalog is the read side of the component registry.
type Catalog interface {
	Lookup(componentType string) (registry.Entry, bool)
}

// Insert creates a block of componentType under parentID ("" for a root)
// with defaults copied from the catalog. A non-negative index becomes the
// block's order; Append uses the current sibling count.
func Insert(cat Catalog, blocks []domain.Block, componentType, parentID string, index int) ([]domain.Block, domain.Block, error) {
	entry, ok := cat.Lookup(componentType)
	if !ok {
		return blocks, domain.Block{}, fmt.Errorf("%w: %q", ErrUnknownComponent, componentType)
	}

	idx := NewIndex(blocks)
	if err := checkPlacement(cat, idx, entry.Type, parentID, ""); err != nil {
		return blocks, domain.Block{}, err
	}

	order := index
	if order < 0 {
		order = len(idx.ChildIDs(parentID))
	}

	b := domain.Block{
		ID:            ids.New(componentType),
		Kind:          entry.DefaultKind(),
		ComponentType: componentType,
		Props:         entry.NewProps(),
		Styles:        entry.NewStyles(),
		ParentID:      parentID,
		Order:         order,
	}

	out := make([]domain.Block, len(blocks), len(blocks)+1)
	copy(out, blocks)
	return append(out, b), b, nil
}

// RemoveSubtree drops blockID and all of its transitive descendants.
func RemoveSubtree(blocks []domain.Block, blockID string) ([]domain.Block, error) {
	idx := NewIndex(blocks)
	if !idx.Has(blockID) {
		return blocks, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}

	doomed := map[string]bool{blockID: true}
	for _, id := range idx.Descendants(blockID) {
		doomed[id] = true
	}

	out := make([]domain.Block, 0, len(blocks)-len(doomed))
	for _, b := range blocks {
		if !doomed[b.ID] {
			out = append(out, b)
		}
	}
	return out, nil
}

// Reparent moves blockID under newParentID ("" for root) at index.
// Moving a block under itself or one of its descendants returns ErrCycle.
func Reparent(cat Catalog, blocks []domain.Block, blockID, newParentID string, index int) ([]domain.Block, error) {
	idx := NewIndex(blocks)
	b, ok := idx.Get(blockID)
	if !ok {
		return blocks, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	if newParentID == blockID || (newParentID != "" && idx.IsAncestor(blockID, newParentID)) {
		return blocks, fmt.Errorf("%w: %s under %s", ErrCycle, blockID, newParentID)
	}
	if err := checkPlacement(cat, idx, b.ComponentType, newParentID, blockID); err != nil {
		return blocks, err
	}

	order := index
	if order < 0 {
		order = 0
		for _, id := range idx.ChildIDs(newParentID) {
			if id != blockID {
				order++
			}
		}
	}

	out := clone(blocks)
	i := idx.Position(blockID)
	out[i].ParentID = newParentID
	out[i].Order = order
	return out, nil
}

// UpdateProps shallow-merges partial into the block's props.
func UpdateProps(blocks []domain.Block, blockID string, partial map[string]any) ([]domain.Block, error) {
	return modify(blocks, blockID, func(b *domain.Block) error {
		b.Props = merge(b.Props, partial)
		return nil
	})
}

// UpdateStyles shallow-merges partial into the block's style map for device.
func UpdateStyles(blocks []domain.Block, blockID string, device domain.Device, partial map[string]any) ([]domain.Block, error) {
	if !device.Valid() {
		return blocks, fmt.Errorf("%w: %q", ErrInvalidDevice, device)
	}
	return modify(blocks, blockID, func(b *domain.Block) error {
		b.Styles = b.Styles.With(device, domain.StyleMap(merge(b.Styles.For(device), partial)))
		return nil
	})
}

// Patch replaces whole fields of a block. Nil fields are left alone.
// Identity and tree position (ID, ParentID) are changed through Reparent only.
type Patch struct {
	Props  map[string]any       `json:"props,omitempty"`
	Styles *domain.DeviceStyles `json:"styles,omitempty"`
	Order  *int                 `json:"order,omitempty"`
}

// Update applies a Patch to the block.
func Update(blocks []domain.Block, blockID string, p Patch) ([]domain.Block, error) {
	return modify(blocks, blockID, func(b *domain.Block) error {
		if p.Props != nil {
			b.Props = domain.CloneMap(p.Props)
		}
		if p.Styles != nil {
			b.Styles = p.Styles.Clone()
		}
		if p.Order != nil {
			b.Order = *p.Order
		}
		return nil
	})
}

// Duplicate appends a copy of blockID with a fresh id, the same parent and
// order+1. Only the block itself is copied, not its descendants. The copy
// is placed under the same rules as Insert, so a full parent refuses it.
func Duplicate(cat Catalog, blocks []domain.Block, blockID string) ([]domain.Block, domain.Block, error) {
	idx := NewIndex(blocks)
	src, ok := idx.Get(blockID)
	if !ok {
		return blocks, domain.Block{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	if err := checkPlacement(cat, idx, src.ComponentType, src.ParentID, ""); err != nil {
		return blocks, domain.Block{}, err
	}

	dup := src.Clone()
	dup.ID = ids.New(src.ComponentType)
	dup.Order = src.Order + 1

	out := make([]domain.Block, len(blocks), len(blocks)+1)
	copy(out, blocks)
	return append(out, dup), dup, nil
}

// checkPlacement validates that a block of childType may sit under parentID.
// movingID is excluded from the sibling count when a block is being moved.
func checkPlacement(cat Catalog, idx *Index, childType, parentID, movingID string) error {
	child, childKnown := cat.Lookup(childType)

	if parentID == "" {
		if childKnown && !child.AllowsParent(registry.RootParent) {
			return fmt.Errorf("%w: %s cannot be a root block", ErrInvalidPlacement, childType)
		}
		return nil
	}

	parent, ok := idx.Get(parentID)
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrBlockNotFound, parentID)
	}

	pe, parentKnown := cat.Lookup(parent.ComponentType)
	if !parentKnown {
		// unknown parent types fall back on the stored kind
		if parent.Kind == domain.KindComponent {
			return fmt.Errorf("%w: %s cannot have children", ErrInvalidPlacement, parent.ComponentType)
		}
	} else {
		if !pe.CanHaveChildren {
			return fmt.Errorf("%w: %s cannot have children", ErrInvalidPlacement, pe.Type)
		}
		if !pe.AllowsChild(childType) {
			return fmt.Errorf("%w: %s does not accept %s", ErrInvalidPlacement, pe.Type, childType)
		}
		if pe.MaxChildren > 0 {
			n := 0
			for _, id := range idx.ChildIDs(parentID) {
				if id != movingID {
					n++
				}
			}
			if n >= pe.MaxChildren {
				return fmt.Errorf("%w: %s is full (%d children)", ErrInvalidPlacement, pe.Type, pe.MaxChildren)
			}
		}
	}

	if childKnown && !child.AllowsParent(parent.ComponentType) {
		return fmt.Errorf("%w: %s cannot be placed in %s", ErrInvalidPlacement, childType, parent.ComponentType)
	}
	return nil
}

func modify(blocks []domain.Block, blockID string, fn func(*domain.Block) error) ([]domain.Block, error) {
	i := NewIndex(blocks).Position(blockID)
	if i < 0 {
		return blocks, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	out := clone(blocks)
	if err := fn(&out[i]); err != nil {
		return blocks, err
	}
	return out, nil
}

// clone copies the slice header array; blocks share maps, which are only
// ever replaced, never written to.
func clone(blocks []domain.Block) []domain.Block {
	out := make([]domain.Block, len(blocks))
	copy(out, blocks)
	return out
}

func merge[M ~map[string]any](base M, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = domain.CloneValue(v)
	}
	return out
}
