//go:build !linux

package timesync

import (
	"errors"
	"time"
)

// SetSystemClock is unsupported off Linux.
func SetSystemClock(time.Time) error {
	return errors.New("settimeofday: unsupported platform")
}
