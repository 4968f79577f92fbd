package domain

// Kind is the structural role of a block in the tree.
// It is not the same thing as the component type.
type Kind string

const (
	KindSection   Kind = "section"
	KindColumn    Kind = "column"
	KindComponent Kind = "component"
)

// Device is a responsive device class. Each class carries its own style map.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceTablet  Device = "tablet"
	DeviceMobile  Device = "mobile"
)

// Devices lists every device class in display order.
var Devices = []Device{DeviceDesktop, DeviceTablet, DeviceMobile}

// Valid reports whether d is a known device class.
func (d Device) Valid() bool {
	switch d {
	case DeviceDesktop, DeviceTablet, DeviceMobile:
		return true
	}
	return false
}

// StyleMap is a flat mapping of style property name to value.
type StyleMap map[string]any

// DeviceStyles holds independent style maps per device class.
// Narrower devices only override; nothing is merged inside the model.
type DeviceStyles struct {
	Desktop StyleMap `json:"desktop"`
	Tablet  StyleMap `json:"tablet"`
	Mobile  StyleMap `json:"mobile"`
}

// For returns the style map of the given device (nil for unknown devices).
func (s DeviceStyles) For(d Device) StyleMap {
	switch d {
	case DeviceDesktop:
		return s.Desktop
	case DeviceTablet:
		return s.Tablet
	case DeviceMobile:
		return s.Mobile
	}
	return nil
}

// With returns a copy of s whose style map for d is replaced by m.
func (s DeviceStyles) With(d Device, m StyleMap) DeviceStyles {
	switch d {
	case DeviceDesktop:
		s.Desktop = m
	case DeviceTablet:
		s.Tablet = m
	case DeviceMobile:
		s.Mobile = m
	}
	return s
}

// Block is a node in the builder's content tree.
// ParentID is a lookup key only; an empty ParentID marks a root block.
type Block struct {
	ID            string         `json:"id"`
	Kind          Kind           `json:"kind"`
	ComponentType string         `json:"componentType"`
	Props         map[string]any `json:"props"`
	Styles        DeviceStyles   `json:"styles"`
	ParentID      string         `json:"parentId,omitempty"`
	Order         int            `json:"order"`
}

// IsRoot reports whether the block has no parent.
func (b Block) IsRoot() bool { return b.ParentID == "" }

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	b.Props = CloneMap(b.Props)
	b.Styles = b.Styles.Clone()
	return b
}

// Clone returns a deep copy of every device style map.
func (s DeviceStyles) Clone() DeviceStyles {
	return DeviceStyles{
		Desktop: CloneMap(s.Desktop),
		Tablet:  CloneMap(s.Tablet),
		Mobile:  CloneMap(s.Mobile),
	}
}

// CloneMap deep-copies a JSON-like map. Nested maps and slices are copied;
// scalar values are shared. A nil map stays nil.
func CloneMap[M ~map[string]any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-like value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case StyleMap:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
