package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/ids"
)

// DefaultRevisionLimit is how many revisions are kept per document when
// the limit is not configured.
const DefaultRevisionLimit = 40

// RevisionStore implements domain.RevisionStore on a SQL database. Only the
// newest revisions of each document are kept.
type RevisionStore struct {
	db    *DB
	limit int
}

// NewRevisionStore keeps at most limit revisions per document (0 means
// DefaultRevisionLimit).
func NewRevisionStore(db *DB, limit int) *RevisionStore {
	if limit <= 0 {
		limit = DefaultRevisionLimit
	}
	return &RevisionStore{db: db, limit: limit}
}

// PushRevision stores a snapshot of content and prunes old revisions.
func (s *RevisionStore) PushRevision(documentID, label string, content domain.Document) (*domain.Revision, error) {
	data, err := encodeContent(content)
	if err != nil {
		return nil, err
	}
	rev := &domain.Revision{
		ID:         ids.Plain(),
		DocumentID: documentID,
		Label:      label,
		Content:    content.Clone(),
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.exec(
		`INSERT INTO revisions (id, document_id, label, content_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		rev.ID, rev.DocumentID, rev.Label, data, rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}
	if err := s.prune(documentID); err != nil {
		return nil, err
	}
	return rev, nil
}

// ListRevisions returns revisions newest first.
func (s *RevisionStore) ListRevisions(documentID string) ([]domain.Revision, error) {
	rows, err := s.db.query(
		`SELECT id, document_id, label, content_json, created_at FROM revisions
		 WHERE document_id = ? ORDER BY created_at DESC, id DESC`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revs []domain.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, *rev)
	}
	return revs, rows.Err()
}

func (s *RevisionStore) GetRevision(id string) (*domain.Revision, error) {
	rev, err := scanRevision(s.db.queryRow(
		`SELECT id, document_id, label, content_json, created_at FROM revisions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get revision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

// ClearRevisions removes all revisions of a document.
func (s *RevisionStore) ClearRevisions(documentID string) error {
	_, err := s.db.exec(`DELETE FROM revisions WHERE document_id = ?`, documentID)
	return err
}

// prune removes the oldest revisions beyond the limit.
func (s *RevisionStore) prune(documentID string) error {
	// Collect ids first and close the cursor before writing.
	rows, err := s.db.query(
		`SELECT id FROM revisions WHERE document_id = ? ORDER BY created_at DESC, id DESC`, documentID,
	)
	if err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	var stale []string
	n := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("prune revisions: %w", err)
		}
		n++
		if n > s.limit {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}

	for _, id := range stale {
		if _, err := s.db.exec(`DELETE FROM revisions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("prune revision %s: %w", id, err)
		}
	}
	return nil
}

func scanRevision(row scanner) (*domain.Revision, error) {
	var (
		rev     domain.Revision
		content string
	)
	if err := row.Scan(&rev.ID, &rev.DocumentID, &rev.Label, &content, &rev.CreatedAt); err != nil {
		return nil, err
	}
	doc, err := decodeContent(content)
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", rev.ID, err)
	}
	rev.Content = doc
	return &rev, nil
}
