package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"pagebuilder/internal/domain"
)

// ReadDocumentFile reads a builder document from a JSON file.
func ReadDocumentFile(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read document file: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("parse document file %s: %w", path, err)
	}
	return doc, nil
}

// WriteDocumentFile writes doc as indented JSON, creating the directory.
func WriteDocumentFile(path string, doc domain.Document) error {
	_, err := writeDocumentFile(path, doc)
	return err
}

func writeDocumentFile(path string, doc domain.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write document file: %w", err)
	}
	return data, nil
}

// ─────────────────────────────────────────────────────────────
// FileSync: documents mirrored to JSON files on disk
// ─────────────────────────────────────────────────────────────

// FileSync binds open documents to JSON files. Export writes the session
// content to the file; external writes to a bound file are loaded back into
// the session and left dirty, so autosave or shutdown persists them.
type FileSync struct {
	sessions *SessionManager
	dir      string
	emitter  EventEmitter
	log      *zap.Logger
	debounce time.Duration

	mu       sync.Mutex
	bindings map[string]string // abs path -> document id
	written  map[string][]byte // abs path -> last content we wrote

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFileSync creates a FileSync writing into dir.
func NewFileSync(sessions *SessionManager, dir string, emitter EventEmitter, log *zap.Logger) *FileSync {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = LogEmitter{Logger: log}
	}
	return &FileSync{
		sessions: sessions,
		dir:      dir,
		emitter:  emitter,
		log:      log,
		debounce: 200 * time.Millisecond,
		bindings: make(map[string]string),
		written:  make(map[string][]byte),
	}
}

// Path returns the default file of a document.
func (f *FileSync) Path(documentID string) string {
	return filepath.Join(f.dir, documentID+".json")
}

// Export writes the session content of documentID to its file and binds
// the file to the document. It returns the file path.
func (f *FileSync) Export(documentID string) (string, error) {
	sess, err := f.sessions.Get(documentID)
	if err != nil {
		return "", err
	}
	path, err := filepath.Abs(f.Path(documentID))
	if err != nil {
		return "", err
	}
	data, err := writeDocumentFile(path, sess.ExportBuilderData())
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.bindings[path] = documentID
	f.written[path] = data
	f.mu.Unlock()
	return path, nil
}

// Bound returns the document bound to path, if any.
func (f *FileSync) Bound(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.bindings[abs]
	return id, ok
}

// Start watches the export directory until Stop is called.
func (f *FileSync) Start(ctx context.Context) error {
	f.Stop()

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.mu.Lock()
	f.watcher, f.cancel, f.done = watcher, cancel, done
	f.mu.Unlock()

	go f.loop(watchCtx, watcher, done)
	f.log.Info("filesync: watching", zap.String("dir", f.dir))
	return nil
}

func (f *FileSync) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path, _ := filepath.Abs(event.Name)
			if _, bound := f.Bound(path); !bound {
				continue
			}
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(f.debounce, func() {
				if err := f.Reload(path); err != nil {
					f.log.Warn("filesync: reload failed", zap.String("path", path), zap.Error(err))
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("filesync: watcher error", zap.Error(err))
		}
	}
}

// Reload loads a bound file into its session. Files whose content matches
// what FileSync itself last wrote are ignored. The session stays dirty
// until the reloaded content is saved.
func (f *FileSync) Reload(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	id, ok := f.bindings[abs]
	last := f.written[abs]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no document bound to %s", abs)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read document file: %w", err)
	}
	if bytes.Equal(data, last) {
		return nil
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse document file %s: %w", abs, err)
	}

	sess, err := f.sessions.Get(id)
	if err != nil {
		return err
	}
	rep := sess.ReloadBuilderData(doc)

	f.mu.Lock()
	f.written[abs] = data
	f.mu.Unlock()

	f.emitter.Emit(context.Background(), EventDocumentReloaded, id)
	f.log.Info("filesync: reloaded document",
		zap.String("documentId", id),
		zap.Int("dropped", rep.Dropped()))
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (f *FileSync) Stop() {
	f.mu.Lock()
	watcher, cancel, done := f.watcher, f.cancel, f.done
	f.watcher, f.cancel, f.done = nil, nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		watcher.Close()
	}
	if done != nil {
		<-done
	}
}
