package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.LineIngested()
	m.LineIngested()
	m.Sent("mqtt")
	m.SendFailure("http")
	m.Discarded("http", 5)
	m.SinkState("mqtt", 2)
	m.QueueDepth("mqtt", 7)

	if got := testutil.ToFloat64(m.linesIngested); got != 2 {
		t.Errorf("lines_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sent.WithLabelValues("mqtt")); got != 1 {
		t.Errorf("sent_total{sink=mqtt} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.discarded.WithLabelValues("http")); got != 5 {
		t.Errorf("discarded_total{sink=http} = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.sinkState.WithLabelValues("mqtt")); got != 2 {
		t.Errorf("state{sink=mqtt} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queueDepth.WithLabelValues("mqtt")); got != 7 {
		t.Errorf("depth{sink=mqtt} = %v, want 7", got)
	}

	m.APIRequest("PUT", 422)
	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("PUT", "422")); got != 1 {
		t.Errorf("requests_total{method=PUT,code=422} = %v, want 1", got)
	}
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New() on the same registry should fail")
	}
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.LineIngested()
	m.DeviceError()
	m.UARTState(1)
	m.Sent("mqtt")
	m.SendFailure("mqtt")
	m.Discarded("mqtt", 3)
	m.SinkState("mqtt", 1)
	m.QueueDepth("mqtt", 1)
	m.ConfigReplaced()
	m.APIRequest("GET", 200)
}
