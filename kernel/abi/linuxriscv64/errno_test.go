package linuxriscv64

import (
	"errors"
	"testing"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

func TestNegatedErrnoTranslatesNotFound(t *testing.T) {
	got := negatedErrno(kerr.ErrNotFound)
	want := uintptr(-enoent)
	if got != want {
		t.Fatalf("negatedErrno(ErrNotFound) = %d, want %d", got, want)
	}
}

func TestNegatedErrnoWrapsWithDetail(t *testing.T) {
	got := negatedErrno(kerr.UnsupportedAbi("wasi"))
	want := uintptr(-enoexec)
	if got != want {
		t.Fatalf("negatedErrno(UnsupportedAbi) = %d, want %d", got, want)
	}
}

func TestNegatedErrnoFallsBackToEIOForUnknownSentinel(t *testing.T) {
	got := negatedErrno(errors.New("some unrelated failure"))
	want := uintptr(-eio)
	if got != want {
		t.Fatalf("negatedErrno(unknown) = %d, want %d", got, want)
	}
}
