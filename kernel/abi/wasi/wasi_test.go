package wasi

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
)

func openBytes(t *testing.T, data []byte) vfs.FileObject {
	t.Helper()
	fs := tmpfs.New("test")
	m := vfs.NewVfsManager(fs)
	ctx := context.Background()

	_, err := m.Create(ctx, "/app", nil, vfs.Regular, 0o644)
	assert.NilError(t, err)

	wf, err := m.Open(ctx, "/app", nil, vfs.OpenFlags{Write: true})
	assert.NilError(t, err)
	_, err = wf.FileObject.Write(data)
	assert.NilError(t, err)
	wf.Release()

	rf, err := m.Open(ctx, "/app", nil, vfs.OpenFlags{Read: true})
	assert.NilError(t, err)
	return rf.FileObject
}

func TestCanExecuteBinaryRecognizesWasmMagic(t *testing.T) {
	f := openBytes(t, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00})
	m := New()
	score, ok := m.CanExecuteBinary(f, "/app", "")
	if !ok {
		t.Fatalf("expected wasm magic to be recognized")
	}
	if score >= 30 {
		t.Fatalf("stub interpreter should score below the selection threshold, got %d", score)
	}
}

func TestCanExecuteBinaryRejectsNonWasm(t *testing.T) {
	f := openBytes(t, []byte{0x7F, 'E', 'L', 'F'})
	m := New()
	if _, ok := m.CanExecuteBinary(f, "/app", ""); ok {
		t.Fatalf("expected ELF magic to be rejected")
	}
}

func TestExecuteBinaryAlwaysFails(t *testing.T) {
	f := openBytes(t, []byte{0x00, 'a', 's', 'm'})
	m := New()
	if err := m.ExecuteBinary(f, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected stub interpreter to refuse execution")
	}
}
