package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/registry"
)

// testCatalog is a small catalog with every placement rule in play.
func testCatalog() *registry.Registry {
	reg := registry.New()
	reg.Register(registry.Entry{
		Type:            "section",
		CanHaveChildren: true,
		AllowedParents:  []string{registry.RootParent},
		DefaultProps:    map[string]any{"tag": "section"},
		DefaultStyles: domain.DeviceStyles{
			Desktop: domain.StyleMap{"padding": "80px"},
			Mobile:  domain.StyleMap{"padding": "40px"},
		},
	})
	reg.Register(registry.Entry{
		Type:            "row",
		CanHaveChildren: true,
		AllowedChildren: []string{"column"},
		MaxChildren:     2,
	})
	reg.Register(registry.Entry{
		Type:            "column",
		Kind:            domain.KindColumn,
		CanHaveChildren: true,
		AllowedParents:  []string{"row"},
	})
	reg.Register(registry.Entry{
		Type:            "heading",
		CanHaveChildren: true,
		DefaultProps:    map[string]any{"text": "Heading", "meta": map[string]any{"level": 2}},
	})
	reg.Register(registry.Entry{
		Type:         "text",
		DefaultProps: map[string]any{"content": "Lorem"},
	})
	reg.Register(registry.Entry{Type: "image"})
	if err := reg.Validate(); err != nil {
		panic(err)
	}
	return reg
}

func mustInsert(t *testing.T, cat Catalog, bs []domain.Block, typ, parent string, index int) ([]domain.Block, domain.Block) {
	t.Helper()
	out, b, err := Insert(cat, bs, typ, parent, index)
	require.NoError(t, err)
	return out, b
}

func idsOf(bs []domain.Block) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

// raw builds a bare block for structural tests.
func raw(id, parent string, order int) domain.Block {
	return domain.Block{ID: id, Kind: domain.KindSection, ComponentType: "heading", ParentID: parent, Order: order}
}
