package sysinfo

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestExternalIP_CachesFirstAnswer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ua := r.Header.Get("User-Agent"); ua != "curl/8.0" {
			t.Errorf("User-Agent = %q, want curl/8.0", ua)
		}
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	defer srv.Close()

	e := NewExternalIP(srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := e.IP(); got != "203.0.113.7" {
				t.Errorf("IP() = %q, want 203.0.113.7", got)
			}
		}()
	}
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Errorf("lookups = %d, want 1", n)
	}
}

func TestExternalIP_FailureIsCached(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"not an address", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>blocked</html>"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			e := NewExternalIP(srv.URL)
			for i := 0; i < 3; i++ {
				if got := e.IP(); got != NotAvailable {
					t.Errorf("IP() = %q, want %q", got, NotAvailable)
				}
			}
			if n := hits.Load(); n != 1 {
				t.Errorf("lookups = %d, want 1", n)
			}
		})
	}
}
