// Package wasi implements a WASI preview1 stub ABI: enough surface for
// detect_best_abi to recognize a wasm binary by its magic number and
// route it somewhere, without a real WebAssembly interpreter (out of
// scope). The syscall table shape mirrors the native and linuxriscv64 ABI
// modules; the binary-format sniff, a fixed score of 0 and the absence of
// a loader differ.
package wasi

import (
	"github.com/scarletkernel/scarlet/arch"
	"github.com/scarletkernel/scarlet/kernel/abi"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

const abiName = "wasi-preview1"

var wasmMagic = [4]byte{0x00, 'a', 's', 'm'}

func init() {
	abi.Register(abiName, func() sched.AbiModule { return New() })
}

// Module is the WASI preview1 stub: it recognizes wasm binaries and owns
// a syscall table (preview1's import namespace maps onto syscall-style
// numbers here), but ExecuteBinary refuses to run anything since there is
// no interpreter behind it.
type Module struct {
	syscalls map[uintptr]SyscallFunc
}

// SyscallFunc handles one WASI preview1 import, keyed by the numbering
// this kernel assigns it (preview1 itself has no numeric syscall table;
// imports are named, so the native dispatch table here is this ABI's own
// invention for uniformity with the other two ABIs).
type SyscallFunc func(t *sched.Task, tf arch.Trapframe) error

// New returns a Module with an empty syscall table.
func New() *Module {
	return &Module{syscalls: make(map[uintptr]SyscallFunc)}
}

// RegisterSyscall installs fn as the handler for import number no.
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

func (m *Module) HandleSyscall(t *sched.Task, tf arch.Trapframe) error {
	fn, ok := m.syscalls[tf.SyscallNo()]
	if !ok {
		return kerr.ErrNotSupported
	}
	return fn(t, tf)
}

// CanExecuteBinary recognizes the wasm binary magic (\0asm) and nothing
// else; the score sits below DefaultConfidenceThreshold by default so an
// accidental wasm file doesn't get selected until a real interpreter
// backs ExecuteBinary, at which point this should be raised.
func (m *Module) CanExecuteBinary(file vfs.FileObject, path string, currentAbi string) (int, bool) {
	magic := make([]byte, 4)
	if _, err := file.Seek(0, 0); err != nil {
		return 0, false
	}
	n, err := file.Read(magic)
	if err != nil || n < 4 {
		return 0, false
	}
	if magic[0] != wasmMagic[0] || magic[1] != wasmMagic[1] || magic[2] != wasmMagic[2] || magic[3] != wasmMagic[3] {
		return 0, false
	}
	return 0, true
}

// ExecuteBinary always fails: there is no WebAssembly interpreter behind
// this stub, only binary-format recognition.
func (m *Module) ExecuteBinary(file vfs.FileObject, argv, envp []string, t *sched.Task, tf arch.Trapframe) error {
	return kerr.ExecutionFailed("wasi preview1 interpreter not implemented")
}

func (m *Module) InitializeFromExistingHandles(t *sched.Task) error { return nil }

func (m *Module) SetupOverlayEnvironment(cleanVfs, baseVfs *vfs.VfsManager, systemPath, configPath string) error {
	return nil
}

func (m *Module) SetupSharedResources(cleanVfs, baseVfs *vfs.VfsManager) error { return nil }

func (m *Module) DefaultCwd() string { return "/" }

var _ sched.AbiModule = (*Module)(nil)
