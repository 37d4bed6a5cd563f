//go:build linux

package timesync

import (
	"time"

	"golang.org/x/sys/unix"
)

// SetSystemClock sets the system wall clock. Requires CAP_SYS_TIME.
func SetSystemClock(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	return unix.Settimeofday(&tv)
}
