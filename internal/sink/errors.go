package sink

import "errors"

var (
	// ErrSessionLost is reported when a transport notices its session dropped
	// between sends.
	ErrSessionLost = errors.New("sink: session lost")

	// ErrUnexpectedStatus is returned by the HTTP sink for non-2xx responses.
	ErrUnexpectedStatus = errors.New("sink: unexpected HTTP status")
)
