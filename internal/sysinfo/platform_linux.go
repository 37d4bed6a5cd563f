//go:build linux

package sysinfo

import "golang.org/x/sys/unix"

func statFS(path string) (total, free uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize) //nolint:gosec // block size is positive
	return st.Blocks * bsize, st.Bfree * bsize, nil
}

func kernelRelease() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "Unknown"
	}
	return unix.ByteSliceToString(u.Release[:])
}
