// Package aarch64 is the stub AArch64 implementation of arch.Trapframe.
// The register layout follows AArch64's calling convention (x0-x5
// syscall args, x8 syscall number) but nothing
// below this file (trap vectors, context switch assembly) is wired to real
// hardware; it exists so the core's architecture-generic code compiles and
// type-checks against a second Trapframe implementation.
package aarch64

import "github.com/scarletkernel/scarlet/arch"

// Frame is the aarch64 trap frame.
type Frame struct {
	// Regs holds x0 through x30.
	Regs [31]uint64

	// PC is the saved ELR_EL1.
	PC uint64

	// SP is the saved user stack pointer, tracked separately because x31
	// is banked per exception level rather than general-purpose.
	SP uint64
}

const (
	regX0 = 0
	regX8 = 8
)

// New returns a zeroed aarch64 trap frame.
func New() *Frame {
	return &Frame{}
}

// Arch implements arch.Trapframe.
func (f *Frame) Arch() arch.ID { return arch.AArch64 }

// SyscallNo implements arch.Trapframe.
func (f *Frame) SyscallNo() uintptr { return uintptr(f.Regs[regX8]) }

// SyscallArgs implements arch.Trapframe.
func (f *Frame) SyscallArgs() [arch.MaxSyscallArgs]uintptr {
	var args [arch.MaxSyscallArgs]uintptr
	for i := 0; i < arch.MaxSyscallArgs; i++ {
		args[i] = uintptr(f.Regs[regX0+i])
	}
	return args
}

// Return implements arch.Trapframe.
func (f *Frame) Return() uintptr { return uintptr(f.Regs[regX0]) }

// SetReturn implements arch.Trapframe.
func (f *Frame) SetReturn(value uintptr) { f.Regs[regX0] = uint64(value) }

// IP implements arch.Trapframe.
func (f *Frame) IP() uintptr { return uintptr(f.PC) }

// SetIP implements arch.Trapframe.
func (f *Frame) SetIP(value uintptr) { f.PC = uint64(value) }

// Stack implements arch.Trapframe.
func (f *Frame) Stack() uintptr { return uintptr(f.SP) }

// SetStack implements arch.Trapframe.
func (f *Frame) SetStack(value uintptr) { f.SP = uint64(value) }

// Clone implements arch.Trapframe.
func (f *Frame) Clone() arch.Trapframe {
	clone := *f
	return &clone
}

// Compile-time assertion that Frame implements arch.Trapframe.
var _ arch.Trapframe = (*Frame)(nil)
