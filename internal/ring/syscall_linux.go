//go:build linux && amd64

package ring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Raw syscall numbers for linux/amd64. golang.org/x/sys/unix does not
// expose these directly, so they're pinned here the same way most
// hand-rolled io_uring wrappers in the ecosystem do it; porting to
// another architecture means updating these two constants.
const (
	sysIOUringSetup = 425
	sysIOUringEnter = 426
)

func setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := unix.Syscall(sysIOUringSetup, uintptr(entries), uintptr(unsafe.Pointer(params)), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func enter(fd int, toSubmit, minComplete, flags uint32) (int, error) {
	n, _, errno := unix.Syscall6(sysIOUringEnter,
		uintptr(fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(n), nil
}
