package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pagebuilder/internal/session"
)

// cronParser accepts standard five-field specs, an optional leading seconds
// field, and descriptors such as "@every 30s".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether spec is a usable autosave schedule.
func ValidateSchedule(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid autosave schedule %q: %w", spec, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────
// Autosaver: periodic save of dirty sessions
// ─────────────────────────────────────────────────────────────

// Autosaver saves every dirty session on a cron schedule. A document whose
// previous save is still running is skipped for that tick.
type Autosaver struct {
	docs     *DocumentService
	schedule string
	log      *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewAutosaver creates an Autosaver for schedule.
func NewAutosaver(docs *DocumentService, schedule string, log *zap.Logger) *Autosaver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Autosaver{docs: docs, schedule: schedule, log: log}
}

// Start schedules the autosave job. Calling Start twice restarts it.
func (a *Autosaver) Start(ctx context.Context) error {
	a.Stop(ctx)

	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(a.schedule, func() {
		if n := a.SaveDirty(ctx); n > 0 {
			a.log.Info("autosave: saved documents", zap.Int("count", n))
		}
	}); err != nil {
		return fmt.Errorf("invalid autosave schedule %q: %w", a.schedule, err)
	}
	c.Start()

	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()
	a.log.Info("autosave: scheduled", zap.String("schedule", a.schedule))
	return nil
}

// SaveDirty saves every dirty session once and returns how many were saved.
func (a *Autosaver) SaveDirty(ctx context.Context) int {
	saved := 0
	a.docs.Sessions().Each(func(s *session.Session) {
		if !s.Dirty() {
			return
		}
		id := s.ID()
		if _, err := a.docs.TrySave(ctx, id, "autosave"); err != nil {
			if errors.Is(err, ErrSaveInProgress) {
				a.log.Debug("autosave: save already running", zap.String("documentId", id))
				return
			}
			a.log.Warn("autosave: save failed", zap.String("documentId", id), zap.Error(err))
			return
		}
		saved++
	})
	return saved
}

// Stop halts the schedule and waits for running saves to finish or ctx to
// be cancelled.
func (a *Autosaver) Stop(ctx context.Context) {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	a.docs.WaitSaves(ctx)
}
