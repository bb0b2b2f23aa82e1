package riscv64

// CLINT (core-local interruptor) address arithmetic. This is pure offset
// computation, not MMIO access — actual register reads/writes belong to
// the driver layer; the core only needs to know where a given CPU's
// timer-compare register lives so the scheduler's preemption driver can
// program it.
const (
	msipStride      = 0x4
	mtimecmpBase    = 0x4000
	mtimecmpStride  = 0x8
	mtimeOffset     = 0xBFF8
)

// MSIPAddr returns the address of the machine-mode software interrupt
// pending register for the given CPU.
func MSIPAddr(base uint64, cpu int) uint64 {
	return base + uint64(cpu)*msipStride
}

// MTimeCmpAddr returns the address of the machine-mode timer compare
// register for the given CPU.
func MTimeCmpAddr(base uint64, cpu int) uint64 {
	return base + mtimecmpBase + uint64(cpu)*mtimecmpStride
}

// MTimeAddr returns the address of the shared machine-mode time register.
func MTimeAddr(base uint64) uint64 {
	return base + mtimeOffset
}
