package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "nested", "pb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleDocument() domain.Document {
	doc := domain.EmptyDocument()
	doc.GlobalStyles.Desktop["fontSize"] = "16px"
	doc.Blocks = []domain.Block{
		{
			ID:            "section-1",
			Kind:          domain.KindSection,
			ComponentType: "section",
			Props:         map[string]any{"tag": "section", "items": []any{"a", "b"}},
			Styles: domain.DeviceStyles{
				Desktop: domain.StyleMap{"padding": "80px"},
				Tablet:  domain.StyleMap{},
				Mobile:  domain.StyleMap{"padding": "40px"},
			},
		},
		{
			ID:            "heading-1",
			Kind:          domain.KindComponent,
			ComponentType: "heading",
			Props:         map[string]any{"text": "Hello"},
			Styles:        domain.DeviceStyles{Desktop: domain.StyleMap{}, Tablet: domain.StyleMap{}, Mobile: domain.StyleMap{}},
			ParentID:      "section-1",
			Order:         1,
		},
	}
	return doc
}

// ─────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────

func TestOpenRunsMigrationsTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pb.db")
	db, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", pg.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "SELECT ? ", lite.rebind("SELECT ? "))
}

func TestMySQLDSN(t *testing.T) {
	assert.Equal(t, "u:p@/pb?parseTime=true", mysqlDSN("u:p@/pb"))
	assert.Equal(t, "u:p@/pb?tls=true&parseTime=true", mysqlDSN("u:p@/pb?tls=true"))
	assert.Equal(t, "u:p@/pb?parseTime=false", mysqlDSN("u:p@/pb?parseTime=false"))
}

func TestDDLPerDriver(t *testing.T) {
	stmt := "id {ID}, at {TIME}, body {BLOB}"
	assert.Equal(t, "id TEXT, at DATETIME, body TEXT", (&DB{driver: DriverSQLite}).ddl(stmt))
	assert.Equal(t, "id TEXT, at TIMESTAMPTZ, body TEXT", (&DB{driver: DriverPostgres}).ddl(stmt))
	assert.Equal(t, "id VARCHAR(64), at DATETIME(6), body LONGTEXT", (&DB{driver: DriverMySQL}).ddl(stmt))
}

// ─────────────────────────────────────────────────────────────
// DocumentStore
// ─────────────────────────────────────────────────────────────

func TestDocumentStoreCRUD(t *testing.T) {
	store := NewDocumentStore(openTestDB(t))

	rec := &domain.DocumentRecord{ID: "doc-1", Name: "Landing", Slug: "landing", Content: sampleDocument()}
	require.NoError(t, store.CreateDocument(rec))
	assert.Equal(t, domain.StatusDraft, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.GetDocument("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Landing", got.Name)
	assert.Equal(t, "landing", got.Slug)
	assert.Empty(t, cmp.Diff(rec.Content, got.Content))

	bySlug, err := store.GetDocumentBySlug("landing")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", bySlug.ID)

	got.Name = "Home"
	got.Status = domain.StatusPublished
	got.Content.Settings.ContainerWidth = "960px"
	require.NoError(t, store.UpdateDocument(got))

	again, err := store.GetDocument("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Home", again.Name)
	assert.Equal(t, domain.StatusPublished, again.Status)
	assert.Equal(t, "960px", again.Content.Settings.ContainerWidth)

	require.NoError(t, store.DeleteDocument("doc-1"))
	_, err = store.GetDocument("doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentStoreNotFound(t *testing.T) {
	store := NewDocumentStore(openTestDB(t))

	_, err := store.GetDocument("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetDocumentBySlug("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.UpdateDocument(&domain.DocumentRecord{ID: "missing", Content: domain.EmptyDocument()}), ErrNotFound)
	assert.ErrorIs(t, store.DeleteDocument("missing"), ErrNotFound)
}

func TestDocumentStoreUniqueSlug(t *testing.T) {
	store := NewDocumentStore(openTestDB(t))
	require.NoError(t, store.CreateDocument(&domain.DocumentRecord{ID: "a", Name: "A", Slug: "page", Content: domain.EmptyDocument()}))
	err := store.CreateDocument(&domain.DocumentRecord{ID: "b", Name: "B", Slug: "page", Content: domain.EmptyDocument()})
	assert.Error(t, err)
}

func TestDocumentStoreList(t *testing.T) {
	store := NewDocumentStore(openTestDB(t))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateDocument(&domain.DocumentRecord{ID: id, Name: id, Slug: id, Content: domain.EmptyDocument()}))
	}
	docs, err := store.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 3)

	seen := map[string]bool{}
	for _, d := range docs {
		seen[d.ID] = true
		assert.NotNil(t, d.Content.Blocks)
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
}

// ─────────────────────────────────────────────────────────────
// RevisionStore
// ─────────────────────────────────────────────────────────────

func TestRevisionStorePushAndList(t *testing.T) {
	db := openTestDB(t)
	revs := NewRevisionStore(db, 0)

	first, err := revs.PushRevision("doc-1", "first", domain.EmptyDocument())
	require.NoError(t, err)
	second, err := revs.PushRevision("doc-1", "second", sampleDocument())
	require.NoError(t, err)
	_, err = revs.PushRevision("doc-2", "other", domain.EmptyDocument())
	require.NoError(t, err)

	list, err := revs.ListRevisions("doc-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	got, err := revs.GetRevision(second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Label)
	assert.Empty(t, cmp.Diff(sampleDocument(), got.Content))

	require.NoError(t, revs.ClearRevisions("doc-1"))
	list, err = revs.ListRevisions("doc-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = revs.GetRevision(second.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevisionStorePrunesOldest(t *testing.T) {
	revs := NewRevisionStore(openTestDB(t), 3)

	var pushed []string
	for i := 0; i < 5; i++ {
		rev, err := revs.PushRevision("doc-1", "save", domain.EmptyDocument())
		require.NoError(t, err)
		pushed = append(pushed, rev.ID)
	}

	list, err := revs.ListRevisions("doc-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{pushed[4], pushed[3], pushed[2]}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestDeleteDocumentDropsRevisions(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentStore(db)
	revs := NewRevisionStore(db, 0)

	require.NoError(t, docs.CreateDocument(&domain.DocumentRecord{ID: "doc-1", Name: "x", Slug: "x", Content: domain.EmptyDocument()}))
	_, err := revs.PushRevision("doc-1", "save", domain.EmptyDocument())
	require.NoError(t, err)

	require.NoError(t, docs.DeleteDocument("doc-1"))
	list, err := revs.ListRevisions("doc-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpenStoresSQLite(t *testing.T) {
	stores, err := OpenStores(t.Context(), DriverSQLite, filepath.Join(t.TempDir(), "pb.db"), "", 5)
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Documents.CreateDocument(&domain.DocumentRecord{ID: "a", Name: "a", Slug: "a", Content: domain.EmptyDocument()}))
	_, err = stores.Revisions.PushRevision("a", "save", domain.EmptyDocument())
	require.NoError(t, err)
}

// ─────────────────────────────────────────────────────────────
// Mongo mapping (no server needed)
// ─────────────────────────────────────────────────────────────

func TestMongoDocumentMapping(t *testing.T) {
	rec := &domain.DocumentRecord{ID: "doc-1", Name: "Landing", Slug: "landing", Status: domain.StatusDraft, Content: sampleDocument()}
	md, err := toMongoDocument(rec)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", md.ID)
	assert.Contains(t, md.ContentJSON, `"componentType":"heading"`)

	back, err := fromMongoDocument(md)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(rec, back))

	_, err = fromMongoDocument(mongoDocument{ID: "bad", ContentJSON: "{"})
	assert.Error(t, err)
}

func TestMongoRevisionMapping(t *testing.T) {
	rev := &domain.Revision{ID: "r1", DocumentID: "doc-1", Label: "save", Content: sampleDocument()}
	mr, err := toMongoRevision(rev)
	require.NoError(t, err)
	back, err := fromMongoRevision(mr)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(rev, back))
}
