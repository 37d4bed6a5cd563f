// Package sink delivers envelopes from a delivery queue to one remote
// destination.
//
// Every sink kind (MQTT, HTTP, InfluxDB) runs the same Loop, a state machine
// with one transport session at a time:
//
//	Disabled ──token change──▶ Connecting ──ok──▶ Active
//	    ▲                        │   ▲              │
//	    └────── sink off ────────┘   │              │ send failure
//	                                 │              ▼
//	                                 └─ 10s ─── Backoff
//
// A settings change seen while Connecting or Active tears the session down
// and goes straight back to Connecting. Anything still queued at that
// moment belongs to the old generation and is dropped.
//
// Disabled and Backoff keep draining the queue so the ingestion loop is
// never blocked by a sink that is not delivering.
package sink
