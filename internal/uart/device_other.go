//go:build !linux

package uart

import (
	"io"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// OpenDevice is not available on this platform.
func OpenDevice(config.UARTSettings) (io.ReadCloser, error) {
	return nil, ErrUnsupportedPlatform
}
