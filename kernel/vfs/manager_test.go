package vfs_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

func TestPathWalkAbsoluteAndRelative(t *testing.T) {
	fs := tmpfs.New("tmpfs")
	m := vfs.NewVfsManager(fs)
	root := m.Root()
	defer root.DecRef()

	_, err := m.CreateDir(ctxBG(), "/a", root, 0o755)
	assert.NilError(t, err)
	a, err := m.PathWalk(ctxBG(), "/a", root)
	assert.NilError(t, err)
	defer a.DecRef()

	_, err = m.CreateDir(ctxBG(), "/a/b", root, 0o755)
	assert.NilError(t, err)

	viaAbsolute, err := m.PathWalk(ctxBG(), "/a/b", root)
	assert.NilError(t, err)
	defer viaAbsolute.DecRef()

	viaRelative, err := m.PathWalk(ctxBG(), "b", a)
	assert.NilError(t, err)
	defer viaRelative.DecRef()

	assert.Equal(t, viaAbsolute.Node().ID, viaRelative.Node().ID)
}

func TestPathWalkDotDotAboveRootFails(t *testing.T) {
	fs := tmpfs.New("tmpfs")
	m := vfs.NewVfsManager(fs)
	root := m.Root()
	defer root.DecRef()

	_, err := m.PathWalk(ctxBG(), "/..", root)
	assert.ErrorIs(t, err, kerr.ErrInvalidPath)

	_, err = m.PathWalk(ctxBG(), "../../x", root)
	assert.ErrorIs(t, err, kerr.ErrInvalidPath)
}

func TestPathWalkThroughNonDirectoryFails(t *testing.T) {
	fs := tmpfs.New("tmpfs")
	m := vfs.NewVfsManager(fs)
	root := m.Root()
	defer root.DecRef()

	_, err := m.Create(ctxBG(), "/file", root, vfs.Regular, 0o644)
	assert.NilError(t, err)

	_, err = m.PathWalk(ctxBG(), "/file/child", root)
	assert.ErrorIs(t, err, kerr.ErrNotADirectory)
}

func TestPathWalkTrailingSlashRequiresDirectory(t *testing.T) {
	fs := tmpfs.New("tmpfs")
	m := vfs.NewVfsManager(fs)
	root := m.Root()
	defer root.DecRef()

	_, err := m.Create(ctxBG(), "/file", root, vfs.Regular, 0o644)
	assert.NilError(t, err)

	_, err = m.PathWalk(ctxBG(), "/file/", root)
	assert.ErrorIs(t, err, kerr.ErrNotADirectory)
}
