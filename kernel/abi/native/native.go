package native

import (
	"context"
	"strings"

	"github.com/scarletkernel/scarlet/arch"
	"github.com/scarletkernel/scarlet/kernel/abi"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/overlay"
	"github.com/scarletkernel/scarlet/kernel/vm"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

const abiName = "native"

func init() {
	abi.Register(abiName, func() sched.AbiModule { return New() })
}

// Module is Scarlet's own ABI: native ELF64 loading, a syscall table
// keyed directly on the task's syscall number with no errno translation.
type Module struct {
	syscalls map[uintptr]SyscallFunc
}

// SyscallFunc handles one native syscall number.
type SyscallFunc func(t *sched.Task, tf arch.Trapframe) error

// New returns a Module with an empty syscall table; concrete syscalls are
// installed via RegisterSyscall, mirroring how each ABI owns its own dispatch
// table per the ABI module contract.
func New() *Module {
	return &Module{syscalls: make(map[uintptr]SyscallFunc)}
}

// RegisterSyscall installs fn as the handler for syscall number no.
func (m *Module) RegisterSyscall(no uintptr, fn SyscallFunc) {
	m.syscalls[no] = fn
}

func (m *Module) Name() string { return abiName }

func (m *Module) CloneBoxed() sched.AbiModule {
	clone := New()
	for no, fn := range m.syscalls {
		clone.syscalls[no] = fn
	}
	return clone
}

// HandleSyscall dispatches to the registered handler for tf's syscall
// number; an unregistered number returns the ABI's native
// not-implemented sentinel rather than panicking.
func (m *Module) HandleSyscall(t *sched.Task, tf arch.Trapframe) error {
	fn, ok := m.syscalls[tf.SyscallNo()]
	if !ok {
		return kerr.ErrNotSupported
	}
	return fn(t, tf)
}

// CanExecuteBinary scores a file as a native-ABI candidate: ELF64 magic
// match is the dominant signal, with a small bonus for staying on the
// currently active ABI (continuity) and for a path hint under
// /system/native.
func (m *Module) CanExecuteBinary(file vfs.FileObject, path string, currentAbi string) (int, bool) {
	magic := make([]byte, 4)
	if _, err := file.Seek(0, 0); err != nil {
		return 0, false
	}
	n, err := file.Read(magic)
	if err != nil || n < 4 {
		return 0, false
	}
	if magic[0] != elfMagic[0] || magic[1] != elfMagic[1] || magic[2] != elfMagic[2] || magic[3] != elfMagic[3] {
		return 0, false
	}
	score := 70
	if currentAbi == abiName {
		score += 10
	}
	if strings.Contains(path, "/system/native/") {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score, true
}

// ExecuteBinary reads file's PT_LOAD segments and records each segment's
// virtual address in t.ManagedPages and its size in t.Sizes; the segments
// themselves are not mapped through VM.MemoryMap. It then maps an
// anonymous stack with VM.MemoryMap and rewrites tf's entry point and
// stack pointer.
func (m *Module) ExecuteBinary(file vfs.FileObject, argv, envp []string, t *sched.Task, tf arch.Trapframe) error {
	entry, segments, err := Load(file)
	if err != nil {
		return kerr.ExecutionFailed("elf load: " + err.Error())
	}

	var textSize, dataSize uint64
	for _, seg := range segments {
		t.ManagedPages = append(t.ManagedPages, seg.Vaddr)
		if seg.Flags&SegmentExec != 0 {
			textSize += seg.Memsz
		} else {
			dataSize += seg.Memsz
		}
	}
	t.Sizes.Text = textSize
	t.Sizes.Data = dataSize

	stackTop, err := t.VM.MemoryMap(nil, 0, defaultStackSize, vm.ProtRead|vm.ProtWrite, vm.FlagAnonymous, 0)
	if err != nil {
		return kerr.ResourceAllocationFailed(err)
	}
	t.Sizes.Stack = defaultStackSize

	tf.SetIP(uintptr(entry))
	tf.SetStack(uintptr(stackTop + defaultStackSize))
	return nil
}

const defaultStackSize = 8 * 1024 * 1024

// InitializeFromExistingHandles keeps the task's existing handle table
// as-is: the native ABI has no reason to translate or discard handles
// across an execve within itself.
func (m *Module) InitializeFromExistingHandles(t *sched.Task) error { return nil }

// SetupOverlayEnvironment checks that systemPath and configPath exist in
// baseVfs, then mounts at cleanVfs's "/" an overlay whose upper layer is
// the filesystem backing cleanVfs's root and whose lowers are the
// filesystems holding systemPath and configPath, in that order, so the
// system layer shadows the config layer. Every layer is used from its
// filesystem's root: the overlay is not confined to the two subtrees.
func (m *Module) SetupOverlayEnvironment(cleanVfs, baseVfs *vfs.VfsManager, systemPath, configPath string) error {
	systemEntry, err := baseVfs.PathWalk(context.Background(), systemPath, nil)
	if err != nil {
		return kerr.ExecutionFailed("please prepare ABI environment first: " + systemPath)
	}
	defer systemEntry.DecRef()
	configEntry, err := baseVfs.PathWalk(context.Background(), configPath, nil)
	if err != nil {
		return kerr.ExecutionFailed("please prepare ABI environment first: " + configPath)
	}
	defer configEntry.DecRef()

	upper := cleanVfs.Root().Node().FS
	lowers := []vfs.FileSystemOperations{systemEntry.Node().FS, configEntry.Node().FS}
	overlayFS, err := overlay.New(upper, lowers)
	if err != nil {
		return err
	}
	return cleanVfs.OverlayMountAt(context.Background(), "/", nil, overlayFS)
}

// SetupSharedResources is a no-op for the native ABI: nothing beyond the
// overlay environment needs wiring between clean and base namespaces.
func (m *Module) SetupSharedResources(cleanVfs, baseVfs *vfs.VfsManager) error { return nil }

// DefaultCwd returns the native ABI's default working directory.
func (m *Module) DefaultCwd() string { return "/" }

var _ sched.AbiModule = (*Module)(nil)
