package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint writes one point and waits for the server to accept it.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality), may be nil
//   - fields: Key-value pairs for the actual data
//   - timestamp: The time the data was captured
//
// Example:
//
//	client.WritePoint(ctx, "monitor",
//	    map[string]string{"host": "v3s"},
//	    map[string]any{"ram_used": 41234.0}, time.Now())
func (c *Client) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: point %q has no fields", ErrWriteFailed, measurement)
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)

	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if err := c.writeAPI.WritePoint(writeCtx, point); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
