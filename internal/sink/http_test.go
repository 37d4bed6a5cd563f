package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

type capturedRequest struct {
	method      string
	contentType string
	requestID   string
	body        string
}

// flakyServer answers the first failures requests with 500, then 200.
type flakyServer struct {
	mu       sync.Mutex
	failures int
	requests []capturedRequest
	ok       chan capturedRequest
}

func (s *flakyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := capturedRequest{
		method:      r.Method,
		contentType: r.Header.Get("Content-Type"),
		requestID:   r.Header.Get("X-Request-ID"),
		body:        string(body),
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	if s.ok != nil {
		select {
		case s.ok <- req:
		default:
		}
	}
}

func httpSettings(url string) config.Settings {
	s := config.DefaultSettings()
	s.MQTT.Enabled = false
	s.HTTP.Enabled = true
	s.HTTP.URL = url
	s.General.IntervalSecs = 3600
	return s
}

func TestHTTP_SendHeadersAndBody(t *testing.T) {
	srv := &flakyServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	kind := NewHTTP()
	tr, err := kind.Connect(context.Background(), httpSettings(ts.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Close()

	env := telemetry.NewUART("temp=21.5", time.Unix(1700000000, 0))
	if err := tr.Send(context.Background(), env); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	got := srv.requests[0]
	if got.method != http.MethodPost {
		t.Errorf("method = %s, want POST", got.method)
	}
	if got.contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got.contentType)
	}
	if _, err := uuid.Parse(got.requestID); err != nil {
		t.Errorf("X-Request-ID = %q is not a UUID: %v", got.requestID, err)
	}
	if got.body != `{"type":"uart","data":"temp=21.5","ts":1700000000}` {
		t.Errorf("body = %s", got.body)
	}
}

func TestHTTP_NonSuccessStatusIsFailure(t *testing.T) {
	srv := &flakyServer{failures: 1}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	tr, err := NewHTTP().Connect(context.Background(), httpSettings(ts.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Close()

	err = tr.Send(context.Background(), telemetry.NewUART("x", time.Now()))
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Send() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestHTTP_Enabled(t *testing.T) {
	kind := NewHTTP()
	s := httpSettings("http://collector:8080/ingest")
	if !kind.Enabled(s) {
		t.Error("Enabled() = false with URL set")
	}
	s.HTTP.URL = ""
	if kind.Enabled(s) {
		t.Error("Enabled() = true with empty URL")
	}
	s.HTTP.URL = "http://collector:8080/ingest"
	s.HTTP.Enabled = false
	if kind.Enabled(s) {
		t.Error("Enabled() = true while disabled")
	}
}

func TestHTTPLoop_ThreeFailuresThenResume(t *testing.T) {
	srv := &flakyServer{failures: 3, ok: make(chan capturedRequest, 16)}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	store := config.NewStore(httpSettings(ts.URL), nil)
	queue := telemetry.NewQueue("http", 16)
	rec := &recordingAfter{}
	l := NewLoop(NewHTTP(), queue, store, nil, Options{
		Tick:   5 * time.Millisecond,
		After:  rec.after,
		Logger: logging.Discard(),
	})
	startLoop(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			if err := queue.Push(ctx, telemetry.NewUART("line", time.Now())); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	select {
	case <-srv.ok:
	case <-time.After(5 * time.Second):
		t.Fatal("no successful delivery after three failures")
	}
	waitState(t, l, StateActive)

	delays := rec.recorded()
	if len(delays) != 3 {
		t.Fatalf("backoff delays = %v, want three", delays)
	}
	for i, d := range delays {
		if d != 10*time.Second {
			t.Errorf("delay #%d = %v, want 10s", i, d)
		}
	}

	// Draining continues on the recovered session.
	select {
	case <-srv.ok:
	case <-time.After(2 * time.Second):
		t.Fatal("queue draining did not resume")
	}
}
