package sched_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/arch/riscv64"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
)

func newTestTask(id uint64, name string) *sched.Task {
	fs := tmpfs.New("root")
	m := vfs.NewVfsManager(fs)
	return sched.NewTask(id, name, riscv64.New(), m, m.Root())
}

func TestScheduleRoundRobinsReadyTasks(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "a")
	b := newTestTask(2, "b")
	mgr.AddTask(a, 0)
	mgr.AddTask(b, 0)

	mgr.Schedule(0)
	first, ok := mgr.CurrentTaskID(0)
	assert.Assert(t, ok)
	assert.Equal(t, first, uint64(1))

	mgr.Schedule(0)
	second, ok := mgr.CurrentTaskID(0)
	assert.Assert(t, ok)
	assert.Equal(t, second, uint64(2))

	mgr.Schedule(0)
	third, ok := mgr.CurrentTaskID(0)
	assert.Assert(t, ok)
	assert.Equal(t, third, uint64(1))
}

func TestScheduleDropsTerminatedTasks(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "a")
	b := newTestTask(2, "b")
	mgr.AddTask(a, 0)
	mgr.AddTask(b, 0)
	mgr.Schedule(0) // establish a as current

	b.SetState(sched.Terminated)
	mgr.Schedule(0)
	cur, ok := mgr.CurrentTaskID(0)
	assert.Assert(t, ok)
	assert.Equal(t, cur, uint64(1))

	assert.Assert(t, mgr.TaskByID(2) == nil)
}

func TestScheduleSoloTaskStaysCurrentAcrossTicks(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "solo")
	mgr.AddTask(a, 0)

	mgr.Schedule(0)
	mgr.Schedule(0)
	cur, ok := mgr.CurrentTaskID(0)
	assert.Assert(t, ok)
	assert.Equal(t, cur, uint64(1))
	assert.Equal(t, a.GetState(), sched.Running)
}

func TestWakerWaitThenWakeOneTransitionsToReady(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "waiter")
	mgr.AddTask(a, 0)

	w := sched.NewWaker("test", true)
	w.Wait(a)
	assert.Equal(t, a.GetState(), sched.BlockedInterruptible)
	assert.Equal(t, w.WaitingCount(), 1)

	assert.Assert(t, w.WakeOne(mgr))
	assert.Equal(t, a.GetState(), sched.Ready)
	assert.Equal(t, w.WaitingCount(), 0)
}

func TestWakerWakeAllDrainsEveryWaiter(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "a")
	b := newTestTask(2, "b")
	mgr.AddTask(a, 0)
	mgr.AddTask(b, 0)

	w := sched.NewWaker("test", false)
	w.Wait(a)
	w.Wait(b)

	assert.Equal(t, w.WakeAll(mgr), 2)
	assert.Equal(t, a.GetState(), sched.Ready)
	assert.Equal(t, b.GetState(), sched.Ready)
}

func TestEventDeliveryWakesInterruptibleBlock(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "a")
	mgr.AddTask(a, 0)
	a.SetState(sched.BlockedInterruptible)

	mgr.SendEvent(sched.Event{Type: sched.EventIoReady}, sched.EventTarget{Kind: sched.TargetTask, TaskID: 1}, nil, nil)

	assert.Equal(t, a.GetState(), sched.Ready)
	ev, ok := a.NextPendingEvent()
	assert.Assert(t, ok)
	assert.Equal(t, ev.Type, sched.EventIoReady)
}

func TestEventDeliveryDroppedWhenTaskBlocksEvents(t *testing.T) {
	mgr := sched.NewManager(1)
	a := newTestTask(1, "a")
	mgr.AddTask(a, 0)
	a.SetBlockEvents(true)

	mgr.SendEvent(sched.Event{Type: sched.EventTimer}, sched.EventTarget{Kind: sched.TargetTask, TaskID: 1}, nil, nil)

	_, ok := a.NextPendingEvent()
	assert.Assert(t, !ok)
}
