package sched_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scarletkernel/scarlet/kernel/sched"
)

func TestRunTicksEveryCpuUntilCanceled(t *testing.T) {
	mgr := sched.NewManager(2)
	var ticks int64

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := mgr.Run(ctx, func(cpu int) {
		atomic.AddInt64(&ticks, 1)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt64(&ticks) == 0 {
		t.Fatalf("expected at least one tick across both cpus before the deadline")
	}
}

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	mgr := sched.NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := mgr.Run(ctx, func(cpu int) {}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
