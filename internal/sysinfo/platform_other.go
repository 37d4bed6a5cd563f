//go:build !linux

package sysinfo

import "errors"

func statFS(string) (total, free uint64, err error) {
	return 0, 0, errors.New("statfs: unsupported platform")
}

func kernelRelease() string {
	return "Unknown"
}
