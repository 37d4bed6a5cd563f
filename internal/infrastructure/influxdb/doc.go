// Package influxdb provides InfluxDB connectivity for the telemetry agent.
//
// It wraps the official influxdb-client-go v2 library for the InfluxDB
// sink: one Client per sink session, verified with a ping at connect time,
// writing through the blocking write API so every failure reaches the sink
// loop synchronously and triggers its backoff.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, settings.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WritePoint(ctx, "uart", nil, map[string]any{"data": line}, ts)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
