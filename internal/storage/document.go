package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pagebuilder/internal/domain"
)

// DocumentStore implements domain.DocumentStore on a SQL database.
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, name, slug, status, content_json, created_at, updated_at`

func (s *DocumentStore) CreateDocument(rec *domain.DocumentRecord) error {
	content, err := encodeContent(rec.Content)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = domain.StatusDraft
	}
	_, err = s.db.exec(
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Slug, string(rec.Status), content, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *DocumentStore) GetDocument(id string) (*domain.DocumentRecord, error) {
	rec, err := scanDocument(s.db.queryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return rec, nil
}

// GetDocumentBySlug looks a document up by its slug.
func (s *DocumentStore) GetDocumentBySlug(slug string) (*domain.DocumentRecord, error) {
	rec, err := scanDocument(s.db.queryRow(`SELECT `+documentColumns+` FROM documents WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get document by slug %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document by slug: %w", err)
	}
	return rec, nil
}

func (s *DocumentStore) ListDocuments() ([]domain.DocumentRecord, error) {
	rows, err := s.db.query(`SELECT ` + documentColumns + ` FROM documents ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *rec)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) UpdateDocument(rec *domain.DocumentRecord) error {
	content, err := encodeContent(rec.Content)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()
	res, err := s.db.exec(
		`UPDATE documents SET name = ?, slug = ?, status = ?, content_json = ?, updated_at = ? WHERE id = ?`,
		rec.Name, rec.Slug, string(rec.Status), content, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectRow(res, "update document", rec.ID)
}

// DeleteDocument removes a document and its revisions.
func (s *DocumentStore) DeleteDocument(id string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.db.rebind(`DELETE FROM revisions WHERE document_id = ?`), id); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	res, err := tx.Exec(s.db.rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := expectRow(res, "delete document", id); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.DocumentRecord, error) {
	var (
		rec     domain.DocumentRecord
		status  string
		content string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Slug, &status, &content, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = domain.DocumentStatus(status)
	doc, err := decodeContent(content)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", rec.ID, err)
	}
	rec.Content = doc
	return &rec, nil
}

func expectRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}

func encodeContent(doc domain.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(data), nil
}

func decodeContent(data string) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode content: %w", err)
	}
	return doc, nil
}
