package sched_test

import (
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/clock"

	"github.com/scarletkernel/scarlet/kernel/sched"
)

func TestLastScheduledAdvancesWithInjectedClock(t *testing.T) {
	fake := clock.NewFakeClock(time.Unix(1000, 0))
	mgr := sched.NewManager(1)
	mgr.SetClock(fake)

	a := newTestTask(1, "a")
	mgr.AddTask(a, 0)

	mgr.Schedule(0)
	if !a.LastScheduled().Equal(fake.Now()) {
		t.Fatalf("LastScheduled = %v, want %v", a.LastScheduled(), fake.Now())
	}

	fake.Step(5 * time.Second)
	mgr.Schedule(0)
	if !a.LastScheduled().Equal(fake.Now()) {
		t.Fatalf("LastScheduled after step = %v, want %v", a.LastScheduled(), fake.Now())
	}
}
