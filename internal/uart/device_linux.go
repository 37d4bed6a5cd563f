//go:build linux

package uart

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
)

// OpenDevice opens the serial port named in settings and puts it in raw
// 8N1 mode at the effective baud rate.
//
// The descriptor is opened non-blocking so the runtime poller owns it;
// closing the returned file from another goroutine unblocks a pending Read.
func OpenDevice(settings config.UARTSettings) (io.ReadCloser, error) {
	f, err := os.OpenFile(settings.Port, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", settings.Port, err)
	}

	raw, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", settings.Port, err)
	}

	var setupErr error
	if err := raw.Control(func(fd uintptr) {
		if !term.IsTerminal(int(fd)) {
			setupErr = ErrNotTerminal
			return
		}
		setupErr = makeRaw(int(fd), EffectiveBaudRate(settings.BaudRate))
	}); err != nil {
		setupErr = err
	}
	if setupErr != nil {
		f.Close()
		return nil, fmt.Errorf("configuring %s: %w", settings.Port, setupErr)
	}

	return f, nil
}

// makeRaw applies the cfmakeraw flag set plus 8N1, receiver on, modem
// control lines ignored, and blocking reads of at least one byte.
func makeRaw(fd int, baud int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("TCGETS: %w", err)
	}

	speed := baudConstant(baud)

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("TCSETS: %w", err)
	}
	return nil
}

func baudConstant(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 230400:
		return unix.B230400
	default:
		return unix.B115200
	}
}
