package riscv64

import "testing"

func TestCLINTAddressArithmetic(t *testing.T) {
	const base = 0x0200_0000

	if got, want := MSIPAddr(base, 1), uint64(0x0200_0004); got != want {
		t.Errorf("MSIPAddr(base, 1) = %#x, want %#x", got, want)
	}
	if got, want := MTimeCmpAddr(base, 3), uint64(0x0200_4018); got != want {
		t.Errorf("MTimeCmpAddr(base, 3) = %#x, want %#x", got, want)
	}
	if got, want := MTimeAddr(base), uint64(0x0200_BFF8); got != want {
		t.Errorf("MTimeAddr(base) = %#x, want %#x", got, want)
	}
}
