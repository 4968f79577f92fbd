package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/service"
)

// ============================================================
// Documents
// ============================================================

func (a *App) ListDocuments() ([]domain.DocumentRecord, error) {
	return a.docs.List()
}

func (a *App) CreateDocument(ctx context.Context, name string) (*domain.DocumentRecord, error) {
	return a.docs.Create(ctx, name)
}

// ImportFile stores the builder JSON in path as a new document. An empty
// name falls back to the file name without its extension.
func (a *App) ImportFile(ctx context.Context, path, name string) (*domain.DocumentRecord, error) {
	doc, err := service.ReadDocumentFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	rec, err := a.docs.Import(ctx, name, doc)
	if err != nil {
		return nil, err
	}
	a.log.Info("document imported", zap.String("documentId", rec.ID), zap.String("path", path))
	return rec, nil
}

// ExportDocument writes the builder JSON of a document to w.
func (a *App) ExportDocument(id string, w io.Writer) error {
	doc, err := a.docs.Export(id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	return nil
}

// ExportFile writes the builder JSON of a document to path.
func (a *App) ExportFile(id, path string) error {
	doc, err := a.docs.Export(id)
	if err != nil {
		return err
	}
	return service.WriteDocumentFile(path, doc)
}
