package executor_test

import (
	"context"
	"encoding/binary"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/arch/riscv64"
	_ "github.com/scarletkernel/scarlet/kernel/abi/native"
	"github.com/scarletkernel/scarlet/kernel/executor"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
)

// minimalELF64 builds a valid-enough ELF64 header with zero program
// headers: the native loader only needs a parseable header and an entry
// point for this test, not a runnable payload.
func minimalELF64(entry uint64) []byte {
	buf := make([]byte, 64)
	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	binary.LittleEndian.PutUint64(buf[24:32], entry)
	binary.LittleEndian.PutUint64(buf[32:40], 64) // PhOff
	binary.LittleEndian.PutUint16(buf[54:56], 56) // PhEntSize
	binary.LittleEndian.PutUint16(buf[56:58], 0)  // PhNum
	return buf
}

func newTestTask(t *testing.T) (*sched.Task, *vfs.VfsManager) {
	t.Helper()
	ctx := context.Background()
	fs := tmpfs.New("base")
	baseVfs := vfs.NewVfsManager(fs)

	for _, dir := range []string{"/system", "/system/native", "/data", "/data/config", "/data/config/native", "/bin"} {
		_, err := baseVfs.CreateDir(ctx, dir, nil, 0o755)
		assert.NilError(t, err)
	}
	_, err := baseVfs.Create(ctx, "/bin/app", nil, vfs.Regular, 0o755)
	assert.NilError(t, err)
	wf, err := baseVfs.Open(ctx, "/bin/app", nil, vfs.OpenFlags{Write: true})
	assert.NilError(t, err)
	_, err = wf.FileObject.Write(minimalELF64(0x1000))
	assert.NilError(t, err)
	wf.Release()

	tf := riscv64.New()
	task := sched.NewTask(1, "init", tf, baseVfs, nil)
	return task, baseVfs
}

func TestExecuteSwitchesAbiAndRewritesEntryPoint(t *testing.T) {
	task, _ := newTestTask(t)
	err := executor.Execute(context.Background(), task, "/bin/app", nil, nil, "native")
	assert.NilError(t, err)
	assert.Equal(t, task.Trapframe.IP(), uintptr(0x1000))
	assert.Equal(t, task.Abi.Name(), "native")
}

func TestExecuteRestoresSnapshotOnMissingAbiEnvironment(t *testing.T) {
	ctx := context.Background()
	fs := tmpfs.New("base")
	baseVfs := vfs.NewVfsManager(fs)
	_, err := baseVfs.CreateDir(ctx, "/bin", nil, 0o755)
	assert.NilError(t, err)
	_, err = baseVfs.Create(ctx, "/bin/app", nil, vfs.Regular, 0o755)
	assert.NilError(t, err)
	wf, err := baseVfs.Open(ctx, "/bin/app", nil, vfs.OpenFlags{Write: true})
	assert.NilError(t, err)
	_, err = wf.FileObject.Write(minimalELF64(0x2000))
	assert.NilError(t, err)
	wf.Release()

	tf := riscv64.New()
	tf.SetIP(0x500)
	task := sched.NewTask(1, "init", tf, baseVfs, nil)

	err = executor.Execute(ctx, task, "/bin/app", nil, nil, "native")
	if err == nil {
		t.Fatalf("expected failure: /system/native and /data/config/native were never prepared")
	}
	if task.Trapframe.IP() != 0x500 {
		t.Fatalf("expected trap frame restored to pre-execve IP, got %#x", task.Trapframe.IP())
	}
	if task.Abi != nil {
		t.Fatalf("expected task.Abi to remain unset after a failed execve")
	}
}

func TestExecuteDetectsAbiWithoutExplicitName(t *testing.T) {
	task, _ := newTestTask(t)
	err := executor.Execute(context.Background(), task, "/bin/app", nil, nil, "")
	assert.NilError(t, err)
	assert.Equal(t, task.Abi.Name(), "native")
}

// TestExecuteRestoresVfsAndCwdOnFailureAfterBuildEnvironment exercises a
// failure that happens *after* buildEnvironment has already installed a
// clean overlay Vfs and reset Cwd to the new ABI's default: the ABI's ELF
// header is malformed, so step 4 (ExecuteBinary) fails once the
// environment swap from step 3 has already landed. Execute must leave the
// task's Vfs/Cwd exactly as they were before the call, with Cwd's
// reference count unchanged.
func TestExecuteRestoresVfsAndCwdOnFailureAfterBuildEnvironment(t *testing.T) {
	ctx := context.Background()
	task, baseVfs := newTestTask(t)

	// Corrupt the binary after newTestTask wrote a valid header: replace
	// it with four zero bytes so reading the ELF header in step 4 fails,
	// well after step 3 has mutated t.Vfs/t.Cwd.
	wf, err := baseVfs.Open(ctx, "/bin/app", nil, vfs.OpenFlags{Write: true})
	assert.NilError(t, err)
	assert.NilError(t, wf.FileObject.Truncate(0))
	_, err = wf.FileObject.Write([]byte{0, 0, 0, 0})
	assert.NilError(t, err)
	wf.Release()

	cwdEntry, err := baseVfs.PathWalk(ctx, "/bin", nil)
	assert.NilError(t, err)
	task.Cwd = cwdEntry
	preRefCount := cwdEntry.RefCount()
	preVfs := task.Vfs
	preCwd := task.Cwd

	err = executor.Execute(ctx, task, "/bin/app", nil, nil, "native")
	if err == nil {
		t.Fatalf("expected failure from malformed ELF header")
	}
	if task.Vfs != preVfs {
		t.Fatalf("expected Vfs restored to the pre-execve manager")
	}
	if task.Cwd != preCwd {
		t.Fatalf("expected Cwd restored to the pre-execve entry")
	}
	if task.Cwd.RefCount() != preRefCount {
		t.Fatalf("expected Cwd ref count unchanged by the failed execve, got %d want %d", task.Cwd.RefCount(), preRefCount)
	}
	if task.Abi != nil {
		t.Fatalf("expected task.Abi to remain unset after a failed execve")
	}
}
