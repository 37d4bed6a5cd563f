package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

func TestPointFields_UART(t *testing.T) {
	env := telemetry.NewUART(`say "hi"`, time.Unix(1700000000, 0))

	measurement, fields, err := PointFields(env)
	if err != nil {
		t.Fatalf("PointFields() error = %v", err)
	}
	if measurement != "uart" {
		t.Errorf("measurement = %q, want uart", measurement)
	}
	if fields["data"] != `say "hi"` {
		t.Errorf("fields[data] = %v, want the raw line", fields["data"])
	}
}

func TestPointFields_Monitor(t *testing.T) {
	payload := []byte(`{"type":"monitor","uptime":120,"ram_used":51200,"disk_used":"1.2G","ip":"10.0.0.5","procs":87}`)
	env := telemetry.NewMonitor(payload, time.Unix(1700000000, 0))

	measurement, fields, err := PointFields(env)
	if err != nil {
		t.Fatalf("PointFields() error = %v", err)
	}
	if measurement != "monitor" {
		t.Errorf("measurement = %q, want monitor", measurement)
	}
	if _, ok := fields["type"]; ok {
		t.Error("type key should not become a field")
	}
	if fields["uptime"] != float64(120) {
		t.Errorf("fields[uptime] = %v, want 120", fields["uptime"])
	}
	if fields["disk_used"] != "1.2G" {
		t.Errorf("fields[disk_used] = %v, want 1.2G", fields["disk_used"])
	}
	if len(fields) != 5 {
		t.Errorf("got %d fields, want 5", len(fields))
	}
}

func TestInfluxDB_SameSecondLinesGetDistinctPointTimes(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			lines = append(lines, strings.TrimSpace(string(body)))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := config.DefaultSettings()
	s.InfluxDB = config.InfluxDBSettings{Enabled: true, URL: srv.URL, Org: "edge", Bucket: "telemetry"}

	ctx := context.Background()
	tr, err := NewInfluxDB().Connect(ctx, s)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Close()

	base := time.Unix(1700000000, 0)
	first := telemetry.NewUART("A", base)
	second := telemetry.NewUART("B", base.Add(200*time.Millisecond))
	if first.Timestamp != second.Timestamp {
		t.Fatalf("wire seconds differ: %d vs %d", first.Timestamp, second.Timestamp)
	}

	for _, env := range []telemetry.Envelope{first, second} {
		if err := tr.Send(ctx, env); err != nil {
			t.Fatalf("Send(%q) error = %v", env.Data, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		`uart data="A" 1700000000000000000`,
		`uart data="B" 1700000000200000000`,
	}
	if len(lines) != len(want) {
		t.Fatalf("server saw %d writes, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPointFields_BadMonitorPayload(t *testing.T) {
	env := telemetry.NewMonitor([]byte("not json"), time.Now())
	if _, _, err := PointFields(env); err == nil {
		t.Error("PointFields() error = nil for malformed payload")
	}
}

func TestInfluxDB_Enabled(t *testing.T) {
	kind := NewInfluxDB()
	s := config.DefaultSettings()
	if kind.Enabled(s) {
		t.Error("Enabled() = true by default")
	}
	s.InfluxDB = config.InfluxDBSettings{Enabled: true, URL: "http://influx:8086", Bucket: "telemetry"}
	if !kind.Enabled(s) {
		t.Error("Enabled() = false with URL and bucket")
	}
}
