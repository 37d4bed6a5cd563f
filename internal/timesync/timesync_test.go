package timesync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestSync(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		setErr   error
		wantSet  time.Time
		wantErr  error
		wantFail bool
	}{
		{
			name:    "sets clock from date header",
			date:    "Fri, 06 Feb 2026 11:30:00 GMT",
			wantSet: time.Date(2026, 2, 6, 11, 30, 0, 0, time.UTC),
		},
		{
			name:    "missing header",
			date:    "",
			wantErr: ErrNoDateHeader,
		},
		{
			name:     "unparsable header",
			date:     "yesterday",
			wantFail: true,
		},
		{
			name:    "setter fails",
			date:    "Fri, 06 Feb 2026 11:30:00 GMT",
			setErr:  errors.New("operation not permitted"),
			wantErr: ErrSetClock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				// Suppress the Date header net/http adds by default.
				w.Header()["Date"] = nil
				if tt.date != "" {
					w.Header().Set("Date", tt.date)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			var set []time.Time
			setter := func(t time.Time) error {
				set = append(set, t)
				return tt.setErr
			}

			s := New(config.TimeSyncConfig{Enabled: true, URL: srv.URL, Timeout: 2}, setter, &recordingLogger{})
			got, err := s.Sync(context.Background())

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Sync() error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantFail:
				if err == nil {
					t.Fatal("Sync() error = nil, want failure")
				}
			default:
				if err != nil {
					t.Fatalf("Sync() error = %v", err)
				}
				if !got.Equal(tt.wantSet) || len(set) != 1 || !set[0].Equal(tt.wantSet) {
					t.Errorf("Sync() = %v, set %v, want %v", got, set, tt.wantSet)
				}
				if got.Location() != time.UTC {
					t.Errorf("Sync() location = %v, want UTC", got.Location())
				}
			}
		})
	}
}

func TestRun_LogsAndContinuesOnFailure(t *testing.T) {
	logger := &recordingLogger{}
	s := New(config.TimeSyncConfig{URL: "http://127.0.0.1:1", Timeout: 1}, func(time.Time) error {
		t.Error("setter called after failed request")
		return nil
	}, logger)

	s.Run(context.Background())

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one", logger.warns)
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	s := New(config.TimeSyncConfig{URL: "http://example.com"}, nil, &recordingLogger{})
	if s.client.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", s.client.Timeout, DefaultTimeout)
	}
}
