package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pagebuilder/internal/app"
	"pagebuilder/internal/blocks"
	"pagebuilder/internal/config"
	"pagebuilder/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Autosave.Enabled = false
	return cfg
}

func TestApp_ShutdownSavesDirtySessions(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := app.New(ctx, cfg, nil)
	require.NoError(t, err)
	rec, err := a.CreateDocument(ctx, "Home")
	require.NoError(t, err)

	sess, err := a.Documents().Open(rec.ID)
	require.NoError(t, err)
	sec, err := sess.AddBlock("section", "", blocks.Append)
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(ctx))

	// a second app on the same data dir sees the saved content
	b, err := app.New(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Shutdown(ctx)

	docs, err := b.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, docs[0].Content.Blocks, 1)
	assert.Equal(t, sec.ID, docs[0].Content.Blocks[0].ID)
}

func TestApp_ImportExport(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	rec, err := a.CreateDocument(ctx, "Source")
	require.NoError(t, err)
	sess, err := a.Documents().Open(rec.ID)
	require.NoError(t, err)
	sec, err := sess.AddBlock("section", "", blocks.Append)
	require.NoError(t, err)
	_, err = sess.AddBlock("button", sec.ID, blocks.Append)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "landing.json")
	require.NoError(t, a.ExportFile(rec.ID, path))

	imported, err := a.ImportFile(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, "landing", imported.Name)
	assert.NotEqual(t, rec.ID, imported.ID)

	var buf bytes.Buffer
	require.NoError(t, a.ExportDocument(imported.ID, &buf))
	var got domain.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(sess.ExportBuilderData(), got); diff != "" {
		t.Errorf("exported document mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, a.ExportDocument("missing", &buf))
}

func TestApp_StartupShutdown(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Autosave.Enabled = true
	cfg.Autosave.Schedule = "@every 1h"
	cfg.Watch.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:0"

	a, err := app.New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Startup(ctx))
	require.NoError(t, a.Startup(ctx))
	require.NoError(t, a.Shutdown(ctx))
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	_, err := app.New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Registry.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = app.New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
