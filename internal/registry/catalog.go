package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"pagebuilder/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the on-disk catalog format.
type catalogFile struct {
	Version    int     `yaml:"version"`
	Components []Entry `yaml:"components"`
}

// Default returns a registry filled with the built-in component catalog.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// MustDefault is Default for callers that cannot continue without a catalog.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML catalog and returns a validated registry.
func Load(r io.Reader) (*Registry, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	reg := New()
	seen := make(map[string]bool, len(file.Components))
	for _, e := range file.Components {
		if seen[e.Type] {
			return nil, fmt.Errorf("decode catalog: duplicate component type %q", e.Type)
		}
		seen[e.Type] = true
		e.DefaultProps = jsonNumbers(e.DefaultProps)
		e.DefaultStyles = domain.DeviceStyles{
			Desktop: jsonNumbers(e.DefaultStyles.Desktop),
			Tablet:  jsonNumbers(e.DefaultStyles.Tablet),
			Mobile:  jsonNumbers(e.DefaultStyles.Mobile),
		}
		reg.Register(e)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// jsonNumbers converts YAML integers to float64 so catalog defaults compare
// equal to documents decoded from JSON.
func jsonNumbers[M ~map[string]any](m M) M {
	for k, v := range m {
		m[k] = jsonNumber(v)
	}
	return m
}

func jsonNumber(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case map[string]any:
		return jsonNumbers(t)
	case []any:
		for i := range t {
			t[i] = jsonNumber(t[i])
		}
		return t
	}
	return v
}
