package vfs_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
)

func TestEntryRefCountEvictsOnZero(t *testing.T) {
	fs := tmpfs.New("tmpfs")
	m := vfs.NewVfsManager(fs)
	root := m.Root()
	defer root.DecRef()

	dir, err := m.CreateDir(ctxBG(), "/dir", root, 0o755)
	assert.NilError(t, err)
	// Drop Create's own reference so the walks below hold the only ones.
	dir.DecRef()

	child, err := m.PathWalk(ctxBG(), "/dir", root)
	assert.NilError(t, err)
	assert.Equal(t, child.RefCount(), int32(1))

	again, err := m.PathWalk(ctxBG(), "/dir", root)
	assert.NilError(t, err)
	assert.Equal(t, child.RefCount(), int32(2))

	again.DecRef()
	assert.Equal(t, child.RefCount(), int32(1))

	child.DecRef()
	// Evicted entries aren't reused: a fresh walk builds a new Entry.
	fresh, err := m.PathWalk(ctxBG(), "/dir", root)
	assert.NilError(t, err)
	defer fresh.DecRef()
	assert.Equal(t, fresh.RefCount(), int32(1))
}
