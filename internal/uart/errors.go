package uart

import "errors"

// Domain errors for serial ingestion.
var (
	// ErrNotTerminal is returned when the configured path exists but is not
	// a terminal device.
	ErrNotTerminal = errors.New("uart: not a terminal device")

	// ErrDeviceClosed is returned when the device reports end of file.
	ErrDeviceClosed = errors.New("uart: device closed")

	// ErrUnsupportedPlatform is returned by OpenDevice on platforms without
	// termios support.
	ErrUnsupportedPlatform = errors.New("uart: serial devices not supported on this platform")
)
