// Package registry holds the static catalog of block component types:
// their default props and styles, editable fields and placement rules.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"pagebuilder/internal/domain"
)

// RootParent names the document root in AllowedParents lists.
const RootParent = "root"

// FieldType is the editor widget used for a prop.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldColor    FieldType = "color"
	FieldImage    FieldType = "image"
	FieldURL      FieldType = "url"
	FieldToggle   FieldType = "toggle"
)

// Field describes one editable prop of a component.
type Field struct {
	Name    string    `yaml:"name" json:"name"`
	Label   string    `yaml:"label" json:"label"`
	Type    FieldType `yaml:"type" json:"type"`
	Options []string  `yaml:"options,omitempty" json:"options,omitempty"`
}

// Entry is the static description of a component type.
type Entry struct {
	Type     string      `yaml:"type" json:"type"`
	Name     string      `yaml:"name" json:"name"`
	Category string      `yaml:"category" json:"category"`
	Icon     string      `yaml:"icon,omitempty" json:"icon,omitempty"`
	Kind     domain.Kind `yaml:"kind,omitempty" json:"kind,omitempty"`

	DefaultProps  map[string]any      `yaml:"default_props" json:"defaultProps"`
	DefaultStyles domain.DeviceStyles `yaml:"default_styles" json:"defaultStyles"`
	Fields        []Field             `yaml:"fields,omitempty" json:"fields,omitempty"`

	CanHaveChildren bool     `yaml:"can_have_children" json:"canHaveChildren"`
	AllowedChildren []string `yaml:"allowed_children,omitempty" json:"allowedChildren,omitempty"`
	AllowedParents  []string `yaml:"allowed_parents,omitempty" json:"allowedParents,omitempty"`
	MaxChildren     int      `yaml:"max_children,omitempty" json:"maxChildren,omitempty"`
}

// DefaultKind is the structural kind given to new blocks of this type.
// An explicit Kind wins; otherwise containers are sections and leaves are components.
func (e Entry) DefaultKind() domain.Kind {
	if e.Kind != "" {
		return e.Kind
	}
	if e.CanHaveChildren {
		return domain.KindSection
	}
	return domain.KindComponent
}

// AllowsChild reports whether a block of childType may be placed directly under e.
func (e Entry) AllowsChild(childType string) bool {
	if !e.CanHaveChildren {
		return false
	}
	return len(e.AllowedChildren) == 0 || slices.Contains(e.AllowedChildren, childType)
}

// AllowsParent reports whether e may be placed under parentType.
// Use RootParent for the document root.
func (e Entry) AllowsParent(parentType string) bool {
	return len(e.AllowedParents) == 0 || slices.Contains(e.AllowedParents, parentType)
}

// NewProps returns a deep copy of the default props.
func (e Entry) NewProps() map[string]any {
	if e.DefaultProps == nil {
		return map[string]any{}
	}
	return domain.CloneMap(e.DefaultProps)
}

// NewStyles returns a deep copy of the default styles with every device map allocated.
func (e Entry) NewStyles() domain.DeviceStyles {
	s := e.DefaultStyles.Clone()
	if s.Desktop == nil {
		s.Desktop = domain.StyleMap{}
	}
	if s.Tablet == nil {
		s.Tablet = domain.StyleMap{}
	}
	if s.Mobile == nil {
		s.Mobile = domain.StyleMap{}
	}
	return s
}

// Registry is the catalog of component types. It is filled once at startup
// and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. Panics on duplicate registration.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Type]; exists {
		panic(fmt.Sprintf("component registry: duplicate registration for type %q", e.Type))
	}
	r.entries[e.Type] = e
	r.order = append(r.order, e.Type)
}

// Lookup returns the entry for componentType. Unknown types report false.
func (r *Registry) Lookup(componentType string) (Entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[componentType]
	r.mu.RUnlock()
	return e, ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Types returns the registered type keys in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns every entry in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.entries[t])
	}
	return out
}

// ListByCategory groups entries by category. Entries keep registration order
// inside each group.
func (r *Registry) ListByCategory() map[string][]Entry {
	out := make(map[string][]Entry)
	for _, e := range r.List() {
		out[e.Category] = append(out[e.Category], e)
	}
	return out
}

// Categories returns the sorted category names.
func (r *Registry) Categories() []string {
	groups := r.ListByCategory()
	names := make([]string, 0, len(groups))
	for c := range groups {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// ForEach iterates all entries in registration order.
func (r *Registry) ForEach(fn func(Entry)) {
	for _, e := range r.List() {
		fn(e)
	}
}

// Validate checks that the catalog is internally consistent: every type named
// in a placement list exists and leaf types declare no allowed children.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.order {
		e := r.entries[t]
		if e.Type == "" {
			return fmt.Errorf("component registry: entry with empty type")
		}
		if !e.CanHaveChildren && len(e.AllowedChildren) > 0 {
			return fmt.Errorf("component registry: %q is a leaf but lists allowed children", e.Type)
		}
		if e.MaxChildren < 0 {
			return fmt.Errorf("component registry: %q has negative max_children", e.Type)
		}
		for _, c := range e.AllowedChildren {
			if _, ok := r.entries[c]; !ok {
				return fmt.Errorf("component registry: %q allows unknown child %q", e.Type, c)
			}
		}
		for _, p := range e.AllowedParents {
			if p == RootParent {
				continue
			}
			pe, ok := r.entries[p]
			if !ok {
				return fmt.Errorf("component registry: %q allows unknown parent %q", e.Type, p)
			}
			if !pe.CanHaveChildren {
				return fmt.Errorf("component registry: %q allows leaf parent %q", e.Type, p)
			}
		}
	}
	return nil
}
