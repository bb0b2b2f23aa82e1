package vfs

import (
	"context"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// MountAt mounts fs at path.
func (m *VfsManager) MountAt(ctx context.Context, path string, cwd *Entry, fs FileSystemOperations, flags MountFlags) error {
	at, err := m.PathWalk(ctx, path, cwd)
	if err != nil {
		return err
	}
	if at.IsMountPoint() {
		at.DecRef()
		return kerr.ErrBusy
	}
	if !at.Node().IsDir() {
		at.DecRef()
		return kerr.ErrNotADirectory
	}
	root := NewRootEntry(fs.RootNode())
	mp := &MountPoint{FS: fs, Flags: flags, Path: path, Kind: MountNormal, root: root, at: at}
	if err := m.mounts.Insert(mp); err != nil {
		at.DecRef()
		root.DecRef()
		return err
	}
	at.setMount(mp)
	return nil
}

// OverlayMountAt mounts an overlay FileSystemOperations at path, tagging
// the mount as MountOverlay for introspection.
func (m *VfsManager) OverlayMountAt(ctx context.Context, path string, cwd *Entry, fs FileSystemOperations) error {
	at, err := m.PathWalk(ctx, path, cwd)
	if err != nil {
		return err
	}
	if at.IsMountPoint() {
		at.DecRef()
		return kerr.ErrBusy
	}
	root := NewRootEntry(fs.RootNode())
	mp := &MountPoint{FS: fs, Path: path, Kind: MountOverlay, root: root, at: at}
	if err := m.mounts.Insert(mp); err != nil {
		at.DecRef()
		root.DecRef()
		return err
	}
	at.setMount(mp)
	return nil
}

// BindMount mounts sourcePath onto targetPath within the same namespace,
// Binding a path onto a descendant of itself (or onto itself) is
// rejected before insertion.
func (m *VfsManager) BindMount(ctx context.Context, sourcePath, targetPath string, cwd *Entry) error {
	if isAncestorPath(sourcePath, targetPath) {
		return kerr.ErrInvalidOperation
	}
	source, err := m.PathWalk(ctx, sourcePath, cwd)
	if err != nil {
		return err
	}
	at, err := m.PathWalk(ctx, targetPath, cwd)
	if err != nil {
		source.DecRef()
		return err
	}
	if at.IsMountPoint() {
		source.DecRef()
		at.DecRef()
		return kerr.ErrBusy
	}
	mp := &MountPoint{Path: targetPath, Kind: MountBind, root: source, at: at}
	if err := m.mounts.Insert(mp); err != nil {
		source.DecRef()
		at.DecRef()
		return err
	}
	at.setMount(mp)
	return nil
}

// CrossNamespaceBind mounts sourcePath from sourceMgr onto targetPath in
// m. sourceMgr must have been previously registered via
// RegisterCrossNamespaceRef: only the target manager needs to hold the
// weak VfsManager reference, so registration happens on m.
func (m *VfsManager) CrossNamespaceBind(ctx context.Context, sourceMgr *VfsManager, sourcePath, targetPath string, cwd *Entry) error {
	if sourceMgr.id == m.id {
		return kerr.ErrInvalidOperation
	}
	m.mu.RLock()
	weakRef, ok := m.registeredSources[sourceMgr.id]
	m.mu.RUnlock()
	if !ok {
		return kerr.ErrPermissionDenied
	}
	at, err := m.PathWalk(ctx, targetPath, cwd)
	if err != nil {
		return err
	}
	if at.IsMountPoint() {
		at.DecRef()
		return kerr.ErrBusy
	}
	mp := &MountPoint{
		Path:         targetPath,
		Kind:         MountCrossNamespace,
		at:           at,
		crossManager: weakRef,
		crossPath:    sourcePath,
	}
	if err := m.mounts.Insert(mp); err != nil {
		at.DecRef()
		return err
	}
	at.setMount(mp)
	return nil
}

// Unmount removes the mount registered at exactly path.
func (m *VfsManager) Unmount(path string) error {
	mp, ok := m.mounts.Get(path)
	if !ok {
		return kerr.ErrNotFound
	}
	m.mounts.Remove(path)
	mp.at.clearMount()
	mp.at.DecRef()
	if mp.root != nil && mp.Kind != MountCrossNamespace {
		mp.root.DecRef()
	}
	return nil
}
