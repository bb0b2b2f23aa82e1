// Package linuxriscv64 implements the Linux-riscv64 ABI: syscalls land in
// the same numeric table glibc/musl riscv64 binaries expect, and every
// kerr sentinel returned by a core operation is translated to a negative
// errno in the trap frame's return register, the way Linux syscalls report
// failure, rather than the native ABI's direct kerr propagation.
package linuxriscv64

import (
	"errors"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// Linux errno values riscv64 syscalls can return, mirroring
// pkg/abi/linux's errno space.
const (
	eperm   = 1
	enoent  = 2
	eio     = 5
	ebadf   = 9
	eagain  = 11
	enomem  = 12
	eacces  = 13
	ebusy   = 16
	eexist  = 17
	exdev   = 18
	enotdir = 20
	eisdir  = 21
	einval  = 22
	enfile  = 23
	emfile  = 24
	enospc  = 28
	erofs   = 30
	enotempty = 39
	eloop   = 40
	enosys  = 38
)

// errnoTable maps each kerr sentinel to its Linux errno equivalent. A
// sentinel absent from this table (e.g. ones added to kerr without a
// Linux analogue) falls back to EIO in errnoFor.
var errnoTable = map[error]int{
	kerr.ErrNotFound:                 enoent,
	kerr.ErrNotADirectory:            enotdir,
	kerr.ErrIsADirectory:             eisdir,
	kerr.ErrAlreadyExists:            eexist,
	kerr.ErrInvalidPath:              einval,
	kerr.ErrCrossDevice:              exdev,
	kerr.ErrDirectoryNotEmpty:        enotempty,
	kerr.ErrSymlinkLoop:              eloop,
	kerr.ErrReadOnly:                 erofs,
	kerr.ErrPermissionDenied:         eacces,
	kerr.ErrNotSupported:             enosys,
	kerr.ErrInvalidOperation:         einval,
	kerr.ErrIoError:                  eio,
	kerr.ErrDeviceError:              eio,
	kerr.ErrInvalidData:              einval,
	kerr.ErrBrokenFileSystem:         eio,
	kerr.ErrEOF:                      0,
	kerr.ErrBrokenPipe:               eio,
	kerr.ErrNoSpace:                  enospc,
	kerr.ErrBusy:                     ebusy,
	kerr.ErrOutOfHandles:             enfile,
	kerr.ErrOutOfMemory:              enomem,
	kerr.ErrUnknownBinaryFormat:      enoexec,
	kerr.ErrUnsupportedAbi:           enoexec,
	kerr.ErrExecutionFailed:          eio,
	kerr.ErrResourceAllocationFailed: enomem,
}

const enoexec = 8

// errnoFor finds the Linux errno for err by walking its Unwrap chain
// against errnoTable, falling back to EIO for any error that matches no
// sentinel in the table (callers only invoke this once err is known
// non-nil).
func errnoFor(err error) int {
	for sentinel, no := range errnoTable {
		if errors.Is(err, sentinel) {
			return no
		}
	}
	return eio
}

// negatedErrno returns the value a riscv64 syscall return register holds
// on failure: the negated errno, per the Linux syscall ABI convention.
func negatedErrno(err error) uintptr {
	return uintptr(-errnoFor(err))
}
