package config

import (
	"sync"
	"sync/atomic"
)

// Persister saves accepted settings generations. Saving is best-effort.
type Persister interface {
	Save(s Settings) error
}

// Logger is the logging interface used by the Store.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store holds the active Settings generation and its token.
//
// The token starts at 0 and increases by one on every Replace. Loops capture
// the token with Snapshot when they (re)start and compare it with Token at
// each decision point; any difference means their settings are stale.
//
// Thread Safety:
//   - Read, Token and Snapshot may be called from any number of goroutines.
//   - Replace calls are serialized.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	token    atomic.Uint64

	writeMu sync.Mutex
	persist Persister
	logger  Logger
}

// NewStore creates a Store holding initial as generation 0.
// persist may be nil, in which case generations are kept in memory only.
func NewStore(initial Settings, persist Persister) *Store {
	return &Store{
		settings: initial,
		persist:  persist,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger used to report persistence failures.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Read returns a copy of the current settings.
func (s *Store) Read() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Token returns the token of the current generation.
func (s *Store) Token() uint64 {
	return s.token.Load()
}

// Snapshot returns the current settings together with their token, taken
// under one lock so the pair always belongs to the same generation.
func (s *Store) Snapshot() (Settings, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.token.Load()
}

// Replace persists next, makes it the current generation and returns its
// token. A persistence failure is logged; the in-memory swap still happens.
func (s *Store) Replace(next Settings) uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persist != nil {
		if err := s.persist.Save(next); err != nil {
			s.logger.Error("settings save failed", "error", err)
		}
	}

	s.mu.Lock()
	s.settings = next
	token := s.token.Add(1)
	s.mu.Unlock()

	s.logger.Info("settings replaced, loops will reconnect", "token", token)
	return token
}
