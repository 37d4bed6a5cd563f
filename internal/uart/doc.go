// Package uart reads newline-delimited text from a serial device and feeds
// it to the delivery queues.
//
// The Reader is a small state machine:
//
//	Idle ──token change──▶ Configuring ──open ok──▶ Reading
//	  ▲                     │  ▲                     │
//	  └──── uart disabled ──┘  └── backoff elapsed ──┤ read/open failure
//	                           └── token change ─────┘
//
// Failures back off exponentially from 5s to a 60s cap. Any successful open
// or settings change resets the delay.
//
// The device is put in raw mode (8N1, no echo, no line processing, no flow
// control) at the configured baud rate. Unsupported rates fall back to
// 115200.
package uart
