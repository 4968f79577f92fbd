package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/ids"
	"pagebuilder/internal/session"
	"pagebuilder/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Document Service: persistence of builder documents
// ─────────────────────────────────────────────────────────────

// DocumentService manages stored documents and moves their content in and
// out of builder sessions.
type DocumentService struct {
	docs     domain.DocumentStore
	revs     domain.RevisionStore
	sessions *SessionManager
	emitter  EventEmitter
	metrics  Metrics
	log      *zap.Logger
	locks    saveLocks
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(
	docs domain.DocumentStore,
	revs domain.RevisionStore,
	sessions *SessionManager,
	emitter EventEmitter,
	metrics Metrics,
	log *zap.Logger,
) *DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = LogEmitter{Logger: log}
	}
	return &DocumentService{
		docs:     docs,
		revs:     revs,
		sessions: sessions,
		emitter:  emitter,
		metrics:  metricsOrNoop(metrics),
		log:      log,
	}
}

// Sessions returns the session manager.
func (s *DocumentService) Sessions() *SessionManager {
	return s.sessions
}

// ── Documents ──────────────────────────────────────────────

func (s *DocumentService) List() ([]domain.DocumentRecord, error) {
	return s.docs.ListDocuments()
}

func (s *DocumentService) Get(id string) (*domain.DocumentRecord, error) {
	return s.docs.GetDocument(id)
}

// Create stores a new empty document named name.
func (s *DocumentService) Create(ctx context.Context, name string) (*domain.DocumentRecord, error) {
	return s.Import(ctx, name, domain.EmptyDocument())
}

// Import stores content as a new document named name.
func (s *DocumentService) Import(ctx context.Context, name string, content domain.Document) (*domain.DocumentRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled"
	}
	slug, err := s.uniqueSlug(name)
	if err != nil {
		return nil, err
	}
	rec := &domain.DocumentRecord{
		ID:      ids.Plain(),
		Name:    name,
		Slug:    slug,
		Status:  domain.StatusDraft,
		Content: content.Clone(),
	}
	if rec.Content.Blocks == nil {
		rec.Content.Blocks = []domain.Block{}
	}
	if err := s.docs.CreateDocument(rec); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.log.Info("document created", zap.String("documentId", rec.ID), zap.String("slug", rec.Slug))
	return rec, nil
}

// Rename changes a document's name. The slug is kept so links stay stable.
func (s *DocumentService) Rename(id, name string) error {
	rec, err := s.docs.GetDocument(id)
	if err != nil {
		return err
	}
	rec.Name = strings.TrimSpace(name)
	return s.docs.UpdateDocument(rec)
}

// SetStatus publishes or unpublishes a document.
func (s *DocumentService) SetStatus(id string, status domain.DocumentStatus) error {
	if status != domain.StatusDraft && status != domain.StatusPublished {
		return fmt.Errorf("invalid status %q", status)
	}
	rec, err := s.docs.GetDocument(id)
	if err != nil {
		return err
	}
	rec.Status = status
	return s.docs.UpdateDocument(rec)
}

// Delete removes a document and its revisions, then closes its session.
// The session stays open if the store refuses the delete.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.locks.Acquire(ctx, id); err != nil {
		return err
	}
	defer s.locks.Forget(id)
	defer s.locks.Release(id)

	if err := s.revs.ClearRevisions(id); err != nil {
		return fmt.Errorf("clear revisions: %w", err)
	}
	if err := s.docs.DeleteDocument(id); err != nil {
		return err
	}
	s.sessions.Close(id)
	s.emitter.Emit(ctx, EventDocumentDeleted, id)
	return nil
}

// ── Sessions ───────────────────────────────────────────────

// Open opens (or returns) the builder session of a stored document and makes
// it active.
func (s *DocumentService) Open(id string) (*session.Session, error) {
	if sess, err := s.sessions.Get(id); err == nil {
		_ = s.sessions.SetActive(id)
		return sess, nil
	}
	rec, err := s.docs.GetDocument(id)
	if err != nil {
		return nil, err
	}
	sess, _ := s.sessions.Open(id, rec.Content)
	return sess, nil
}

// SaveResult describes a completed save.
type SaveResult struct {
	DocumentID string           `json:"documentId"`
	Revision   uint64           `json:"revision"`
	Saved      *domain.Revision `json:"savedRevision,omitempty"`
}

// Save writes the session content of a document to the store and records a
// revision labelled label. Saving a clean session is a no-op unless force
// is set. A save of the same document already running is waited for.
func (s *DocumentService) Save(ctx context.Context, id, label string, force bool) (*SaveResult, error) {
	if err := s.locks.Acquire(ctx, id); err != nil {
		return nil, err
	}
	defer s.locks.Release(id)
	return s.save(ctx, id, label, force)
}

// TrySave is Save without waiting: it returns ErrSaveInProgress when the
// document is already being saved.
func (s *DocumentService) TrySave(ctx context.Context, id, label string) (*SaveResult, error) {
	if !s.locks.TryAcquire(id) {
		return nil, fmt.Errorf("%w: %s", ErrSaveInProgress, id)
	}
	defer s.locks.Release(id)
	return s.save(ctx, id, label, false)
}

// WaitSaves blocks until running saves finish or ctx is done.
func (s *DocumentService) WaitSaves(ctx context.Context) {
	s.locks.Wait(ctx)
}

func (s *DocumentService) save(ctx context.Context, id, label string, force bool) (*SaveResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if !force && !sess.Dirty() {
		return &SaveResult{DocumentID: id, Revision: sess.Revision()}, nil
	}

	doc, rev := sess.ExportWithRevision()
	res, err := s.persist(id, label, doc, rev)
	s.metrics.ObserveSave(err)
	if err != nil {
		s.log.Error("save failed", zap.String("documentId", id), zap.Error(err))
		return nil, err
	}
	sess.MarkSaved(rev)
	s.emitter.Emit(ctx, EventDocumentSaved, res)
	s.log.Debug("document saved", zap.String("documentId", id), zap.Uint64("revision", rev))
	return res, nil
}

func (s *DocumentService) persist(id, label string, doc domain.Document, rev uint64) (*SaveResult, error) {
	rec, err := s.docs.GetDocument(id)
	if err != nil {
		return nil, err
	}
	rec.Content = doc
	if err := s.docs.UpdateDocument(rec); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if label == "" {
		label = "save"
	}
	saved, err := s.revs.PushRevision(id, label, doc)
	if err != nil {
		return nil, fmt.Errorf("push revision: %w", err)
	}
	return &SaveResult{DocumentID: id, Revision: rev, Saved: saved}, nil
}

// Export returns the current content of a document: the open session's
// state if there is one, otherwise the stored content.
func (s *DocumentService) Export(id string) (domain.Document, error) {
	if sess, err := s.sessions.Get(id); err == nil {
		return sess.ExportBuilderData(), nil
	}
	rec, err := s.docs.GetDocument(id)
	if err != nil {
		return domain.Document{}, err
	}
	return rec.Content, nil
}

// ── Revisions ──────────────────────────────────────────────

func (s *DocumentService) ListRevisions(id string) ([]domain.Revision, error) {
	return s.revs.ListRevisions(id)
}

// RestoreRevision loads a saved revision into the document's session as an
// undoable change, opening the session if needed.
func (s *DocumentService) RestoreRevision(revisionID string) (*session.Session, error) {
	rev, err := s.revs.GetRevision(revisionID)
	if err != nil {
		return nil, err
	}
	sess, err := s.Open(rev.DocumentID)
	if err != nil {
		return nil, err
	}
	sess.ReplaceDocument(rev.Content)
	s.log.Info("revision restored",
		zap.String("documentId", rev.DocumentID),
		zap.String("revisionId", rev.ID))
	return sess, nil
}

// ── Slugs ──────────────────────────────────────────────────

func (s *DocumentService) uniqueSlug(name string) (string, error) {
	base := Slugify(name)
	docs, err := s.docs.ListDocuments()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("list documents: %w", err)
	}
	taken := make(map[string]bool, len(docs))
	for _, d := range docs {
		taken[d.Slug] = true
	}
	slug := base
	for i := 2; taken[slug]; i++ {
		slug = base + "-" + strconv.Itoa(i)
	}
	return slug, nil
}

// Slugify turns a document name into a URL slug: lower case letters and
// digits separated by single dashes. An empty result becomes "page".
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "page"
	}
	return slug
}
