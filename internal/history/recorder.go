package history

import (
	"context"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// SettingsStore is the part of config.Store the Recorder drives.
type SettingsStore interface {
	Snapshot() (config.Settings, uint64)
	Replace(next config.Settings) uint64
}

// Recorder replaces settings in a store and appends the accepted generation
// to the history. History is best-effort: a failed insert is logged and the
// replacement stands.
//
// A nil Repository disables recording.
type Recorder struct {
	store  SettingsStore
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder. repo may be nil.
func NewRecorder(store SettingsStore, repo Repository, logger Logger) *Recorder {
	return &Recorder{
		store:  store,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Replace swaps in next and records it under source. It returns the new token.
func (r *Recorder) Replace(ctx context.Context, next config.Settings, source string) uint64 {
	token := r.store.Replace(next)
	r.record(ctx, next, token, source)
	return token
}

// RecordCurrent records the generation currently held by the store.
// Called once at startup so the history starts with the loaded settings.
func (r *Recorder) RecordCurrent(ctx context.Context, source string) {
	settings, token := r.store.Snapshot()
	r.record(ctx, settings, token, source)
}

func (r *Recorder) record(ctx context.Context, settings config.Settings, token uint64, source string) {
	if r.repo == nil {
		return
	}
	gen := &Generation{
		Token:     token,
		Settings:  settings,
		Source:    source,
		CreatedAt: r.now().UTC(),
	}
	if err := r.repo.Record(ctx, gen); err != nil && r.logger != nil {
		r.logger.Warn("recording settings history failed", "token", token, "error", err)
	}
}
