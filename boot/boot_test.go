package boot_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scarletkernel/scarlet/boot"
	"github.com/scarletkernel/scarlet/boot/config"
	_ "github.com/scarletkernel/scarlet/kernel/abi/native"
)

func TestAcquireDataDirLockRejectsSecondHolder(t *testing.T) {
	dir := t.TempDir()

	first, err := boot.AcquireDataDirLock(dir)
	if err != nil {
		t.Fatalf("AcquireDataDirLock: %v", err)
	}
	defer first.Release()

	if _, err := boot.AcquireDataDirLock(dir); err == nil {
		t.Fatalf("expected second lock acquisition to fail while the first is held")
	}
}

func TestAcquireDataDirLockSucceedsAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := boot.AcquireDataDirLock(dir)
	if err != nil {
		t.Fatalf("AcquireDataDirLock: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	second, err := boot.AcquireDataDirLock(dir)
	if err != nil {
		t.Fatalf("expected lock to be re-acquirable after release: %v", err)
	}
	defer second.Release()
}

func TestSequenceStopsAtFirstFailure(t *testing.T) {
	var ran []string
	seq := boot.Sequence{
		{Name: "one", Run: func() error { ran = append(ran, "one"); return nil }},
		{Name: "two", Run: func() error { ran = append(ran, "two"); return os.ErrInvalid }},
		{Name: "three", Run: func() error { ran = append(ran, "three"); return nil }},
	}

	if err := seq.Run(); err == nil {
		t.Fatalf("expected Sequence.Run to fail at step two")
	}
	if len(ran) != 2 {
		t.Fatalf("expected exactly 2 steps to run, got %v", ran)
	}
}

func TestPreflightChecksAggregatesEveryFailure(t *testing.T) {
	cfg := config.Config{
		NumCPUs:       0,
		InitramfsPath: "/does/not/exist",
		DataDir:       "/also/does/not/exist",
		DefaultAbi:    "bogus-abi",
	}

	err := boot.PreflightChecks(cfg)
	if err == nil {
		t.Fatalf("expected PreflightChecks to fail")
	}
	msg := err.Error()
	for _, want := range []string{"num_cpus", "initramfs_path", "data_dir", "bogus-abi"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected aggregated error to mention %q, got: %s", want, msg)
		}
	}
}

func TestPreflightChecksPassesForValidConfig(t *testing.T) {
	dataDir := t.TempDir()
	initramfs := filepath.Join(dataDir, "initramfs.cpio")
	if err := os.WriteFile(initramfs, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.Config{
		NumCPUs:       1,
		InitramfsPath: initramfs,
		DataDir:       dataDir,
		DefaultAbi:    "native",
	}
	if err := boot.PreflightChecks(cfg); err != nil {
		t.Fatalf("expected valid config to pass preflight, got: %v", err)
	}
}
