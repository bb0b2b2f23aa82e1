package linuxriscv64

import (
	"strings"

	"github.com/scarletkernel/scarlet/arch"
	"github.com/scarletkernel/scarlet/kernel/abi"
	"github.com/scarletkernel/scarlet/kernel/abi/native"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vm"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

const abiName = "linux-riscv64"

func init() {
	abi.Register(abiName, func() sched.AbiModule { return New() })
}

// Module is the Linux-riscv64 ABI: native ELF64 loading reused from the
// native ABI (the binary format doesn't change, only the syscall
// contract), a syscall table keyed on the Linux riscv64 syscall numbers,
// and errno translation on every return path.
type Module struct {
	syscalls map[uintptr]SyscallFunc
}

// SyscallFunc handles one Linux riscv64 syscall number. Returning a kerr
// sentinel is translated to a negated errno by HandleSyscall; the
// handler itself never writes the return register directly on failure.
type SyscallFunc func(t *sched.Task, tf arch.Trapframe) (uintptr, error)

// New returns a Module with an empty syscall table.
func New() *Module {
	return &Module{syscalls: make(map[uintptr]SyscallFunc)}
}

// RegisterSyscall installs fn as the handler for Linux syscall number no.
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

// HandleSyscall dispatches to the registered handler, writes its result
// to tf's return register on success, and writes the negated errno on
// either an unregistered syscall number or a handler-returned kerr
// sentinel.
func (m *Module) HandleSyscall(t *sched.Task, tf arch.Trapframe) error {
	fn, ok := m.syscalls[tf.SyscallNo()]
	if !ok {
		tf.SetReturn(negatedErrno(kerr.ErrNotSupported))
		return kerr.ErrNotSupported
	}
	ret, err := fn(t, tf)
	if err != nil {
		tf.SetReturn(negatedErrno(err))
		return err
	}
	tf.SetReturn(ret)
	return nil
}

// CanExecuteBinary uses the same ELF64 magic check as the native ABI (the
// wire format is the same) with a lower base score (60 against native's
// 70), adds 10 for continuity only when this ABI is already active, and
// adds 20 for a path hint under /system/linux/.
func (m *Module) CanExecuteBinary(file vfs.FileObject, path string, currentAbi string) (int, bool) {
	magic := make([]byte, 4)
	if _, err := file.Seek(0, 0); err != nil {
		return 0, false
	}
	n, err := file.Read(magic)
	if err != nil || n < 4 {
		return 0, false
	}
	if magic[0] != 0x7F || magic[1] != 'E' || magic[2] != 'L' || magic[3] != 'F' {
		return 0, false
	}
	score := 60
	if currentAbi == abiName {
		score += 10
	}
	if strings.Contains(path, "/system/linux/") {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score, true
}

// ExecuteBinary reuses the native ABI's ELF64 loader (the load mechanics
// don't depend on which syscall table the loaded binary will call into),
// then installs this Module as t.Abi so subsequent syscalls route through
// the Linux syscall table and errno translation.
func (m *Module) ExecuteBinary(file vfs.FileObject, argv, envp []string, t *sched.Task, tf arch.Trapframe) error {
	entry, segments, err := native.Load(file)
	if err != nil {
		return kerr.ExecutionFailed("elf load: " + err.Error())
	}

	var textSize, dataSize uint64
	for _, seg := range segments {
		t.ManagedPages = append(t.ManagedPages, seg.Vaddr)
		if seg.Flags&native.SegmentExec != 0 {
			textSize += seg.Memsz
		} else {
			dataSize += seg.Memsz
		}
	}
	t.Sizes.Text = textSize
	t.Sizes.Data = dataSize

	const stackSize = 8 * 1024 * 1024
	stackTop, err := t.VM.MemoryMap(nil, 0, stackSize, vm.ProtRead|vm.ProtWrite, vm.FlagAnonymous, 0)
	if err != nil {
		return kerr.ResourceAllocationFailed(err)
	}
	t.Sizes.Stack = stackSize

	tf.SetIP(uintptr(entry))
	tf.SetStack(uintptr(stackTop + stackSize))
	return nil
}

// InitializeFromExistingHandles leaves stdio handles untouched: Linux
// riscv64 binaries expect fds 0/1/2 wired the same way the native ABI
// left them.
func (m *Module) InitializeFromExistingHandles(t *sched.Task) error { return nil }

// SetupOverlayEnvironment is a no-op: the Linux-riscv64 ABI uses its
// /system/linux-riscv64 and /data/config/linux-riscv64 trees as the boot
// image populated them rather than layering an overlay at execve time.
func (m *Module) SetupOverlayEnvironment(cleanVfs, baseVfs *vfs.VfsManager, systemPath, configPath string) error {
	return nil
}

// SetupSharedResources is a no-op for this ABI.
func (m *Module) SetupSharedResources(cleanVfs, baseVfs *vfs.VfsManager) error { return nil }

// DefaultCwd returns the Linux-riscv64 ABI's default working directory.
func (m *Module) DefaultCwd() string { return "/" }

var _ sched.AbiModule = (*Module)(nil)
