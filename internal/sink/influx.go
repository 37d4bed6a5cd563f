package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/influxdb"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

// InfluxDB writes envelopes as points: serial lines to the "uart"
// measurement and metrics snapshots to "monitor".
type InfluxDB struct{}

// NewInfluxDB creates the InfluxDB sink kind.
func NewInfluxDB() *InfluxDB {
	return &InfluxDB{}
}

// Name implements Kind.
func (*InfluxDB) Name() string { return "influxdb" }

// Enabled implements Kind.
func (*InfluxDB) Enabled(s config.Settings) bool {
	return s.InfluxDB.Enabled && s.InfluxDB.URL != "" && s.InfluxDB.Bucket != ""
}

// Connect pings the server and prepares a blocking writer.
func (*InfluxDB) Connect(ctx context.Context, s config.Settings) (Transport, error) {
	client, err := influxdb.Connect(ctx, s.InfluxDB)
	if err != nil {
		return nil, err
	}
	return &influxTransport{client: client}, nil
}

type influxTransport struct {
	client *influxdb.Client
}

func (t *influxTransport) Send(ctx context.Context, env telemetry.Envelope) error {
	measurement, fields, err := PointFields(env)
	if err != nil {
		return err
	}
	return t.client.WritePoint(ctx, measurement, nil, fields, env.Time())
}

func (t *influxTransport) IsConnected() bool {
	return t.client.IsConnected()
}

func (t *influxTransport) Close() error {
	return t.client.Close()
}

// PointFields maps an envelope to a measurement and field set. Monitor
// payloads are flat JSON objects; every key except "type" becomes a field.
func PointFields(env telemetry.Envelope) (string, map[string]any, error) {
	switch env.Source {
	case telemetry.SourceUART:
		return string(telemetry.SourceUART), map[string]any{"data": env.Data}, nil
	case telemetry.SourceMonitor:
		var obj map[string]any
		if err := json.Unmarshal([]byte(env.Data), &obj); err != nil {
			return "", nil, fmt.Errorf("decoding monitor payload: %w", err)
		}
		delete(obj, "type")
		fields := make(map[string]any, len(obj))
		for k, v := range obj {
			switch v.(type) {
			case float64, string, bool:
				fields[k] = v
			}
		}
		return string(telemetry.SourceMonitor), fields, nil
	default:
		return "", nil, fmt.Errorf("unknown envelope source %q", env.Source)
	}
}
