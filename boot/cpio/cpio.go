// Package cpio unpacks a newc-format cpio archive (the initramfs format
// boot hands to the kernel) directly into a vfs.VfsManager, using
// u-root's cpio record reader rather than hand-rolling the newc header
// layout ourselves.
package cpio

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/u-root/u-root/pkg/cpio"

	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/pkg/kerr"
	"github.com/scarletkernel/scarlet/pkg/log"
)

const (
	modeTypeMask = 0170000
	modeDir      = 0040000
	modeRegular  = 0100000
)

// Extract reads the newc-format archive at archivePath and replays it
// into mgr in archive order: directories are created as they appear, and
// each regular file first gets any missing ancestor directories created
// and then has its content copied in.
// Symlinks, devices, and other special entry types are logged and
// skipped; an initramfs is not expected to carry them for this kernel.
func Extract(ctx context.Context, archivePath string, mgr *vfs.VfsManager) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return kerr.ExecutionFailed("open cpio archive: " + err.Error())
	}
	defer f.Close()

	archiver, err := cpio.Format("newc")
	if err != nil {
		return kerr.ExecutionFailed("cpio format: " + err.Error())
	}
	rr, err := archiver.NewFileReader(f)
	if err != nil {
		return kerr.ExecutionFailed("cpio reader: " + err.Error())
	}
	records, err := cpio.ReadAllRecords(rr)
	if err != nil {
		return kerr.ExecutionFailed("cpio read records: " + err.Error())
	}

	for _, rec := range records {
		name := normalizeName(rec.Name)
		if name == "" || name == "." {
			continue
		}
		switch uint64(rec.Mode) & modeTypeMask {
		case modeDir:
			if _, err := mgr.CreateDir(ctx, name, nil, uint32(rec.Mode)&0777); err != nil && !errors.Is(err, kerr.ErrAlreadyExists) {
				return kerr.ExecutionFailed("cpio mkdir " + name + ": " + err.Error())
			}
		case modeRegular:
			if err := extractFile(ctx, mgr, name, rec); err != nil {
				return err
			}
		default:
			log.Warningf("cpio: skipping unsupported entry %q (mode %#o)", name, rec.Mode)
		}
	}
	return nil
}

func extractFile(ctx context.Context, mgr *vfs.VfsManager, name string, rec cpio.Record) error {
	if err := ensureParentDirs(ctx, mgr, name); err != nil {
		return err
	}
	entry, err := mgr.Create(ctx, name, nil, vfs.Regular, uint32(rec.Mode)&0777)
	if err != nil {
		return kerr.ExecutionFailed("cpio create " + name + ": " + err.Error())
	}
	defer entry.DecRef()

	of, err := mgr.Open(ctx, name, nil, vfs.OpenFlags{Write: true})
	if err != nil {
		return kerr.ExecutionFailed("cpio open " + name + ": " + err.Error())
	}
	defer of.Release()

	buf := make([]byte, rec.FileSize)
	if rec.FileSize > 0 {
		if _, err := rec.ReadAt(buf, 0); err != nil {
			return kerr.ExecutionFailed("cpio read " + name + ": " + err.Error())
		}
	}
	if _, err := of.FileObject.Write(buf); err != nil {
		return kerr.ExecutionFailed("cpio write " + name + ": " + err.Error())
	}

	meta := entry.Node().Metadata()
	meta.ModTime = mtimeFromRecord(rec)
	entry.Node().SetMetadata(meta)
	return nil
}

// mtimeFromRecord converts a cpio record's mtime (whole seconds since
// the epoch) into a time.Time by way of unix.Timespec, the same
// seconds-plus-nanoseconds shape stat(2) hands back, rather than
// assuming a bare time.Unix(sec, 0) call is always how that conversion
// is done elsewhere in this codebase.
func mtimeFromRecord(rec cpio.Record) time.Time {
	ts := unix.Timespec{Sec: int64(rec.MTime), Nsec: 0}
	return time.Unix(ts.Sec, ts.Nsec)
}

// ensureParentDirs creates any missing ancestor directories of name,
// since cpio archives don't always list a directory entry before the
// first file that lives in it.
func ensureParentDirs(ctx context.Context, mgr *vfs.VfsManager, name string) error {
	dir := path.Dir(name)
	if dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(dir, "/"), "/")
	cur := ""
	for _, p := range parts {
		cur = cur + "/" + p
		_, err := mgr.CreateDir(ctx, cur, nil, 0755)
		if err != nil && !errors.Is(err, kerr.ErrAlreadyExists) {
			return kerr.ExecutionFailed("cpio mkdir " + cur + ": " + err.Error())
		}
	}
	return nil
}

func normalizeName(name string) string {
	name = strings.TrimPrefix(name, ".")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return path.Clean(name)
}
