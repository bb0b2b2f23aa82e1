// Package sched implements Scarlet's task scheduler: the per-CPU run
// queues, the context-switch dispatcher, wait-queue wakers, and event
// delivery, all held as per-Manager state so a test can construct an
// independent scheduler instance rather than reaching for a singleton.
package sched

import (
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/scarletkernel/scarlet/arch"
	"github.com/scarletkernel/scarlet/kernel/object"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vm"
)

// TaskState is the task's scheduling state.
type TaskState int

const (
	Ready TaskState = iota
	Running
	BlockedInterruptible
	BlockedUninterruptible
	Zombie
	Terminated
)

func (s TaskState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case BlockedInterruptible:
		return "blocked(interruptible)"
	case BlockedUninterruptible:
		return "blocked(uninterruptible)"
	case Zombie:
		return "zombie"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// AbiModule is the contract every pluggable ABI implements. Defined here
// (the consumer) rather than in kernel/abi so kernel/sched never needs to
// import kernel/abi: kernel/abi imports kernel/sched instead, the
// direction that actually needs the dependency.
type AbiModule interface {
	Name() string
	CloneBoxed() AbiModule
	HandleSyscall(t *Task, tf arch.Trapframe) error
	CanExecuteBinary(file vfs.FileObject, path string, currentAbi string) (score int, ok bool)
	ExecuteBinary(file vfs.FileObject, argv, envp []string, t *Task, tf arch.Trapframe) error
	InitializeFromExistingHandles(t *Task) error
	SetupOverlayEnvironment(cleanVfs, baseVfs *vfs.VfsManager, systemPath, configPath string) error
	SetupSharedResources(cleanVfs, baseVfs *vfs.VfsManager) error
	DefaultCwd() string
}

// MemorySizes tracks the byte extents of a task's text/data/stack
// regions, snapshotted and restored around a failed execve.
type MemorySizes struct {
	Text  uint64
	Data  uint64
	Stack uint64
}

// Task is one schedulable unit of execution.
type Task struct {
	mu sync.Mutex

	ID   uint64
	Name string

	Trapframe arch.Trapframe
	VM        *vm.Manager
	Handles   *object.HandleTable
	Abi       AbiModule

	// BaseVfs is the globally shared root namespace; Vfs is the task's
	// active, possibly-overlayed namespace (they're the same manager
	// unless the task's ABI has built a private overlay environment).
	BaseVfs *vfs.VfsManager
	Vfs     *vfs.VfsManager
	Cwd     *vfs.Entry

	State TaskState

	// lastScheduled records when the dispatcher last selected this task
	// to run, stamped from the owning Manager's clock.Clock so fairness
	// tests can inject a fake clock instead of depending on wall time.
	lastScheduled time.Time

	ManagedPages []uint64
	Sizes        MemorySizes

	Parent   *Task
	Children []*Task

	pending      []Event
	actions      map[EventType]Action
	blockEvents  bool
}

// NewTask constructs a task with an empty handle table and address
// space, ready to be scheduled.
func NewTask(id uint64, name string, tf arch.Trapframe, baseVfs *vfs.VfsManager, cwd *vfs.Entry) *Task {
	return &Task{
		ID:        id,
		Name:      name,
		Trapframe: tf,
		VM:        vm.NewManager(),
		Handles:   object.NewHandleTable(),
		BaseVfs:   baseVfs,
		Vfs:       baseVfs,
		Cwd:       cwd,
		State:     Ready,
		actions:   make(map[EventType]Action),
	}
}

// SetState transitions the task's scheduling state.
func (t *Task) SetState(s TaskState) {
	t.mu.Lock()
	t.State = s
	t.mu.Unlock()
}

// GetState returns the task's current scheduling state.
func (t *Task) GetState() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

// LastScheduled returns when the dispatcher last selected this task to
// run, or the zero time if it has never been scheduled.
func (t *Task) LastScheduled() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastScheduled
}

func (t *Task) markScheduled(now time.Time) {
	t.mu.Lock()
	t.lastScheduled = now
	t.mu.Unlock()
}

// Snapshot captures the fields a failed execve must be able to restore:
// managed pages, the VM manager pointer (Restore reinstates the same
// *vm.Manager; its mappings are not copied), sizes,
// name, a clone of the trap frame, and the active namespace (Vfs) and
// working directory (Cwd) an ABI-changing execve may replace in
// buildEnvironment before later failing. Cwd carries a pinned strong
// reference (see Snapshot) that either Restore or ReleaseCwd must
// dispose of exactly once.
type Snapshot struct {
	ManagedPages []uint64
	VM           *vm.Manager
	Sizes        MemorySizes
	Name         string
	Trapframe    arch.Trapframe
	Vfs          *vfs.VfsManager
	Cwd          *vfs.Entry
}

// Snapshot returns a point-in-time copy of the task's pre-execve state.
// ManagedPages and Sizes are plain value data deep-copied via
// mohae/deepcopy rather than by hand, since a failed execve must not see
// its rollback corrupted by the new ABI's in-progress mutations to the
// live slice/struct. Cwd is pinned with an extra IncRef: buildEnvironment
// may replace t.Cwd (releasing the task's own reference on the old entry)
// before later failing, and the pin keeps that old entry alive so Restore
// can still reinstate it.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	pages, _ := deepcopy.Copy(t.ManagedPages).([]uint64)
	sizes, _ := deepcopy.Copy(t.Sizes).(MemorySizes)
	if t.Cwd != nil {
		t.Cwd.IncRef()
	}
	return Snapshot{
		ManagedPages: pages,
		VM:           t.VM,
		Sizes:        sizes,
		Name:         t.Name,
		Trapframe:    t.Trapframe.Clone(),
		Vfs:          t.Vfs,
		Cwd:          t.Cwd,
	}
}

// ReleaseCwd drops the snapshot's pinned Cwd reference. Call this instead
// of Restore when the execve it was taken for succeeded, so the pin taken
// by Snapshot doesn't outlive its purpose.
func (s Snapshot) ReleaseCwd() {
	if s.Cwd != nil {
		s.Cwd.DecRef()
	}
}

// Restore reinstates a previously captured Snapshot, used when a
// transparent-executor execve fails after the point of no return. The
// task's current Cwd (possibly buildEnvironment's replacement) is
// released and s.Cwd's pinned reference becomes the task's new owned
// reference in its place.
func (t *Task) Restore(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ManagedPages = s.ManagedPages
	t.VM = s.VM
	t.Sizes = s.Sizes
	t.Name = s.Name
	t.Trapframe = s.Trapframe
	if t.Cwd != nil {
		t.Cwd.DecRef()
	}
	t.Cwd = s.Cwd
	t.Vfs = s.Vfs
}
