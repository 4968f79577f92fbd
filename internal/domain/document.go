package domain

import "time"

// Settings are document-wide layout settings consumed by renderers.
type Settings struct {
	ContainerWidth string         `json:"containerWidth"`
	Spacing        map[string]any `json:"spacing"`
	Typography     map[string]any `json:"typography"`
	Colors         map[string]any `json:"colors"`
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	return Settings{
		ContainerWidth: s.ContainerWidth,
		Spacing:        CloneMap(s.Spacing),
		Typography:     CloneMap(s.Typography),
		Colors:         CloneMap(s.Colors),
	}
}

// Document is the serializable builder state: the unit of persistence,
// load and export.
type Document struct {
	Blocks       []Block      `json:"blocks"`
	GlobalStyles DeviceStyles `json:"globalStyles"`
	Settings     Settings     `json:"settings"`
}

// Clone returns a deep copy of the document. Block order is preserved.
func (d Document) Clone() Document {
	out := Document{
		GlobalStyles: d.GlobalStyles.Clone(),
		Settings:     d.Settings.Clone(),
	}
	if d.Blocks != nil {
		out.Blocks = make([]Block, len(d.Blocks))
		for i, b := range d.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	return out
}

// DefaultSettings returns the settings of a freshly created document.
func DefaultSettings() Settings {
	return Settings{
		ContainerWidth: "1200px",
		Spacing: map[string]any{
			"section": "80px",
			"element": "24px",
		},
		Typography: map[string]any{
			"fontFamily":   "Inter, sans-serif",
			"baseFontSize": "16px",
			"lineHeight":   "1.6",
		},
		Colors: map[string]any{
			"primary":    "#3b82f6",
			"secondary":  "#64748b",
			"background": "#ffffff",
			"text":       "#0f172a",
		},
	}
}

// EmptyDocument returns the default document: no blocks, empty global
// styles and default settings.
func EmptyDocument() Document {
	return Document{
		Blocks: []Block{},
		GlobalStyles: DeviceStyles{
			Desktop: StyleMap{},
			Tablet:  StyleMap{},
			Mobile:  StyleMap{},
		},
		Settings: DefaultSettings(),
	}
}

// DocumentStatus is the publishing state of a stored document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusPublished DocumentStatus = "published"
)

// DocumentRecord is a builder document as stored by a persistence backend.
type DocumentRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	Status    DocumentStatus `json:"status"`
	Content   Document       `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Revision is a persisted snapshot of a document's content.
type Revision struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Label      string    `json:"label"`
	Content    Document  `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DocumentStore persists builder documents.
type DocumentStore interface {
	CreateDocument(rec *DocumentRecord) error
	GetDocument(id string) (*DocumentRecord, error)
	ListDocuments() ([]DocumentRecord, error)
	UpdateDocument(rec *DocumentRecord) error
	DeleteDocument(id string) error
}

// RevisionStore persists saved snapshots of document content.
type RevisionStore interface {
	PushRevision(documentID, label string, content Document) (*Revision, error)
	ListRevisions(documentID string) ([]Revision, error)
	GetRevision(id string) (*Revision, error)
	ClearRevisions(documentID string) error
}
