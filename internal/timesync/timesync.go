// Package timesync sets the system clock from an HTTP Date header.
//
// Embedded boards often boot without a battery-backed clock. TLS certificate
// validation fails until the clock is roughly right, so the agent performs
// one sync over plain HTTP before any TLS-capable sink connects. No NTP
// daemon is required.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// DefaultTimeout bounds the HEAD request.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoDateHeader is returned when the response carries no Date header.
	ErrNoDateHeader = errors.New("response has no Date header")

	// ErrSetClock is returned when the system clock could not be set.
	ErrSetClock = errors.New("setting system clock failed")
)

// ClockSetter sets the system clock.
type ClockSetter func(t time.Time) error

// Logger is the logging interface used by Syncer.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Syncer performs a one-shot clock sync.
type Syncer struct {
	url    string
	client *http.Client
	set    ClockSetter
	logger Logger
}

// New creates a Syncer from cfg. A nil setter selects the system clock.
func New(cfg config.TimeSyncConfig, set ClockSetter, logger Logger) *Syncer {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if set == nil {
		set = SetSystemClock
	}
	return &Syncer{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		set:    set,
		logger: logger,
	}
}

// Sync fetches the server's Date header and sets the clock to it in UTC.
// The returned error is informational; callers log it and carry on.
func (s *Syncer) Sync(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, http.NoBody)
	if err != nil {
		return time.Time{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("requesting %s: %w", s.url, err)
	}
	resp.Body.Close() //nolint:errcheck // HEAD response has no body

	date := resp.Header.Get("Date")
	if date == "" {
		return time.Time{}, ErrNoDateHeader
	}
	t, err := http.ParseTime(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing Date %q: %w", date, err)
	}
	t = t.UTC()

	if err := s.set(t); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrSetClock, err)
	}
	return t, nil
}

// Run performs Sync and logs the outcome. It never fails.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Info("syncing system clock", "url", s.url)
	t, err := s.Sync(ctx)
	if err != nil {
		s.logger.Warn("clock sync failed, continuing with current clock", "error", err)
		return
	}
	s.logger.Info("clock synced", "time", t.Format(time.RFC3339))
}
