// Package riscv64 implements the arch.Trapframe contract for RISC-V 64,
// Scarlet's primary target. The register layout mirrors the standard
// riscv64 Linux calling convention (a0-a5 syscall args, a7 syscall number,
// a0 return value) the way gVisor's pkg/sentry/arch/arch_amd64.go binds
// amd64's rax/rdi/.../r9 registers to the same SyscallArguments contract.
package riscv64

import "github.com/scarletkernel/scarlet/arch"

// Frame is the riscv64 trap frame: the general-purpose register file saved
// on kernel entry (ecall) plus the program counter (sepc) at the point of
// the trap.
type Frame struct {
	// Regs holds x1 (ra) through x31 (t6), indexed by register number - 1.
	Regs [31]uint64

	// PC is sepc, the instruction the hart will resume at.
	PC uint64
}

const (
	regA0 = 9  // x10
	regA1 = 10 // x11
	regA2 = 11 // x12
	regA3 = 12 // x13
	regA4 = 13 // x14
	regA5 = 14 // x15
	regA7 = 16 // x17
	regSP = 1  // x2
)

// New returns a zeroed riscv64 trap frame.
func New() *Frame {
	return &Frame{}
}

// Arch implements arch.Trapframe.
func (f *Frame) Arch() arch.ID { return arch.RISCV64 }

// SyscallNo implements arch.Trapframe.
func (f *Frame) SyscallNo() uintptr { return uintptr(f.Regs[regA7]) }

// SyscallArgs implements arch.Trapframe.
func (f *Frame) SyscallArgs() [arch.MaxSyscallArgs]uintptr {
	return [arch.MaxSyscallArgs]uintptr{
		uintptr(f.Regs[regA0]),
		uintptr(f.Regs[regA1]),
		uintptr(f.Regs[regA2]),
		uintptr(f.Regs[regA3]),
		uintptr(f.Regs[regA4]),
		uintptr(f.Regs[regA5]),
	}
}

// Return implements arch.Trapframe.
func (f *Frame) Return() uintptr { return uintptr(f.Regs[regA0]) }

// SetReturn implements arch.Trapframe.
func (f *Frame) SetReturn(value uintptr) { f.Regs[regA0] = uint64(value) }

// IP implements arch.Trapframe.
func (f *Frame) IP() uintptr { return uintptr(f.PC) }

// SetIP implements arch.Trapframe.
func (f *Frame) SetIP(value uintptr) { f.PC = uint64(value) }

// Stack implements arch.Trapframe.
func (f *Frame) Stack() uintptr { return uintptr(f.Regs[regSP]) }

// SetStack implements arch.Trapframe.
func (f *Frame) SetStack(value uintptr) { f.Regs[regSP] = uint64(value) }

// Clone implements arch.Trapframe.
func (f *Frame) Clone() arch.Trapframe {
	clone := *f
	return &clone
}

// Compile-time assertion that Frame implements arch.Trapframe.
var _ arch.Trapframe = (*Frame)(nil)
