package cpio_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	ucpio "github.com/u-root/u-root/pkg/cpio"

	"github.com/scarletkernel/scarlet/boot/cpio"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
)

func writeArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "initramfs.cpio")

	f, err := os.Create(archivePath)
	assert.NilError(t, err)
	defer f.Close()

	archiver, err := ucpio.Format("newc")
	assert.NilError(t, err)
	rw := archiver.Writer(f)

	records := []ucpio.Record{
		ucpio.Directory("bin", 0755),
		ucpio.StaticFile("bin/init", "#!/bin/sh\necho hi\n", 0755),
		ucpio.StaticFile("etc/motd", "welcome", 0644),
	}
	for _, rec := range records {
		assert.NilError(t, rw.WriteRecord(rec))
	}
	assert.NilError(t, ucpio.WriteTrailer(rw))
	return archivePath
}

func TestExtractPopulatesVfsManager(t *testing.T) {
	archivePath := writeArchive(t)

	fs := tmpfs.New("root")
	mgr := vfs.NewVfsManager(fs)
	ctx := context.Background()

	assert.NilError(t, cpio.Extract(ctx, archivePath, mgr))

	of, err := mgr.Open(ctx, "/bin/init", nil, vfs.OpenFlags{Read: true})
	assert.NilError(t, err)
	defer of.Release()
	buf := make([]byte, 64)
	n, err := of.FileObject.Read(buf)
	assert.NilError(t, err)
	assert.Equal(t, string(buf[:n]), "#!/bin/sh\necho hi\n")

	of2, err := mgr.Open(ctx, "/etc/motd", nil, vfs.OpenFlags{Read: true})
	assert.NilError(t, err)
	defer of2.Release()
	buf2 := make([]byte, 64)
	n2, err := of2.FileObject.Read(buf2)
	assert.NilError(t, err)
	assert.Equal(t, string(buf2[:n2]), "welcome")
}

func TestExtractCopiesModTimeFromArchive(t *testing.T) {
	archivePath := writeArchive(t)

	fs := tmpfs.New("root")
	mgr := vfs.NewVfsManager(fs)
	ctx := context.Background()

	assert.NilError(t, cpio.Extract(ctx, archivePath, mgr))

	entry, err := mgr.PathWalk(ctx, "/etc/motd", nil)
	assert.NilError(t, err)
	defer entry.DecRef()

	assert.Assert(t, !entry.Node().Metadata().ModTime.IsZero())
}
