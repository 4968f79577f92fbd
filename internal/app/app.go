// Package app wires storage, the component catalog, the services and the MCP
// server together from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"pagebuilder/internal/config"
	mcpserver "pagebuilder/internal/mcp"
	"pagebuilder/internal/metrics"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

// App is the assembled page builder. CLI commands use its facade methods;
// the serve command additionally runs Startup, ServeMCP and Shutdown.
type App struct {
	cfg *config.Config
	log *zap.Logger

	stores   *storage.Stores
	catalog  *registry.Registry
	metrics  *metrics.Recorder
	notifier *mcpserver.Notifier

	sessions *service.SessionManager
	docs     *service.DocumentService
	autosave *service.Autosaver
	files    *service.FileSync
	mcp      *mcpserver.Server

	mu          sync.Mutex
	started     bool
	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

// New opens the configured store and builds every component. Nothing runs
// in the background until Startup is called.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(cfg.Registry.CatalogPath)
	if err != nil {
		return nil, err
	}

	stores, err := storage.OpenStores(ctx, cfg.Database.Driver, cfg.DSN(), cfg.Database.Database, cfg.Database.Revisions)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		stores:   stores,
		catalog:  catalog,
		metrics:  metrics.New(),
		notifier: mcpserver.NewNotifier(),
	}

	emitter := service.MultiEmitter{service.LogEmitter{Logger: log.Named("events")}, a.notifier}
	a.sessions = service.NewSessionManager(catalog, cfg.History.Limit, emitter, a.metrics, log.Named("session"))
	a.docs = service.NewDocumentService(stores.Documents, stores.Revisions, a.sessions, emitter, a.metrics, log.Named("documents"))
	a.autosave = service.NewAutosaver(a.docs, cfg.Autosave.Schedule, log.Named("autosave"))
	a.files = service.NewFileSync(a.sessions, cfg.ExportDir(), emitter, log.Named("filesync"))
	a.mcp = mcpserver.New(mcpserver.Deps{
		Documents: a.docs,
		Catalog:   catalog,
		Files:     a.files,
		Notifier:  a.notifier,
		Logger:    log,
	})

	log.Info("app initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("components", catalog.Len()),
		zap.Int("historyLimit", cfg.History.Limit))
	return a, nil
}

func loadCatalog(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	cat, err := registry.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cat, nil
}

// Startup starts the background jobs enabled in the config: autosave, the
// export directory watcher and the metrics endpoint.
func (a *App) Startup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	if a.cfg.Autosave.Enabled {
		if err := a.autosave.Start(ctx); err != nil {
			return err
		}
	}
	if a.cfg.Watch.Enabled {
		if err := a.files.Start(ctx); err != nil {
			a.autosave.Stop(ctx)
			return err
		}
	}
	if a.cfg.Metrics.Addr != "" {
		mctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		a.stopMetrics, a.metricsDone = cancel, done
		go func() {
			defer close(done)
			if err := a.metrics.Serve(mctx, a.cfg.Metrics.Addr, a.log); err != nil {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	a.started = true
	return nil
}

// Shutdown stops the background jobs, saves every dirty session and closes
// the store. It is safe to call without Startup.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	a.started = false
	stopMetrics, metricsDone := a.stopMetrics, a.metricsDone
	a.stopMetrics, a.metricsDone = nil, nil
	a.mu.Unlock()

	if started {
		a.autosave.Stop(ctx)
		a.files.Stop()
		if stopMetrics != nil {
			stopMetrics()
			<-metricsDone
		}
	}

	if n := a.autosave.SaveDirty(ctx); n > 0 {
		a.log.Info("saved documents on shutdown", zap.Int("count", n))
	}
	if err := a.stores.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// ServeMCP serves the MCP protocol on in/out until ctx is cancelled or the
// client disconnects.
func (a *App) ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	err := a.mcp.ServeStdio(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ── Accessors ──────────────────────────────────────────────

func (a *App) Config() *config.Config              { return a.cfg }
func (a *App) Catalog() *registry.Registry         { return a.catalog }
func (a *App) Documents() *service.DocumentService { return a.docs }
func (a *App) Sessions() *service.SessionManager   { return a.sessions }
func (a *App) Metrics() *metrics.Recorder          { return a.metrics }
func (a *App) MCP() *mcpserver.Server              { return a.mcp }
