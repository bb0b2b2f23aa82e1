package vfs

import (
	"context"
	"strings"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// Create splits path into (parent, name), walks to parent, calls
// FileSystemOperations.Create, then installs the new Entry under name in
// the parent's cache.
func (m *VfsManager) Create(ctx context.Context, path string, cwd *Entry, ftype FileType, mode uint32) (*Entry, error) {
	parentPath, name, err := splitParentName(path)
	if err != nil {
		return nil, err
	}
	parent, err := m.PathWalk(ctx, parentPath, cwd)
	if err != nil {
		return nil, err
	}
	defer parent.DecRef()

	if !parent.Node().IsDir() {
		return nil, kerr.ErrNotADirectory
	}
	if parent.Node().FS.IsReadOnly() {
		return nil, kerr.ErrReadOnly
	}
	if _, ok := parent.GetChild(name); ok {
		return nil, kerr.ErrAlreadyExists
	}

	node, err := parent.Node().FS.Create(ctx, parent.Node(), name, ftype, mode)
	if err != nil {
		return nil, err
	}
	child := newChildEntry(parent, name, node)
	if !parent.cacheChild(name, child) {
		return nil, kerr.ErrAlreadyExists
	}
	return child, nil
}

// CreateDir is sugar over Create with Directory.
func (m *VfsManager) CreateDir(ctx context.Context, path string, cwd *Entry, mode uint32) (*Entry, error) {
	return m.Create(ctx, path, cwd, Directory, mode)
}

// Remove unlinks the file at path.
func (m *VfsManager) Remove(ctx context.Context, path string, cwd *Entry) error {
	parentPath, name, err := splitParentName(path)
	if err != nil {
		return err
	}
	parent, err := m.PathWalk(ctx, parentPath, cwd)
	if err != nil {
		return err
	}
	defer parent.DecRef()

	child, ok := parent.GetChild(name)
	if !ok {
		node, lookupErr := parent.Node().FS.Lookup(ctx, parent.Node(), name)
		if lookupErr != nil {
			return lookupErr
		}
		child = newChildEntry(parent, name, node)
		parent.cacheChild(name, child)
		defer child.DecRef()
	}

	if child.IsMountPoint() {
		return kerr.ErrBusy
	}
	if child.hasLiveChildren() {
		return kerr.ErrDirectoryNotEmpty
	}
	if _, mounted := m.mounts.Get(path); mounted {
		// Something is mounted at path itself.
		return kerr.ErrBusy
	}
	for _, p := range m.mounts.List() {
		// path backs the source of a live bind mount elsewhere in the tree.
		if mp, ok := m.mounts.Get(p); ok && mp.Kind == MountBind && mp.root.Node() == child.Node() {
			return kerr.ErrBusy
		}
	}
	if parent.Node().FS.IsReadOnly() {
		return kerr.ErrReadOnly
	}

	if err := parent.Node().FS.Remove(ctx, parent.Node(), name); err != nil {
		return err
	}
	child.markDead()
	parent.forgetChild(name)
	return nil
}

// Open returns a wrapped FileObject that retains its Entry, MountPoint,
// and open path.
func (m *VfsManager) Open(ctx context.Context, path string, cwd *Entry, flags OpenFlags) (*OpenFile, error) {
	entry, err := m.PathWalk(ctx, path, cwd)
	if err != nil {
		return nil, err
	}
	if flags.WriteCapable() && entry.Node().FS.IsReadOnly() {
		entry.DecRef()
		return nil, kerr.ErrReadOnly
	}
	fobj, err := entry.Node().FS.Open(ctx, entry.Node(), flags)
	if err != nil {
		entry.DecRef()
		return nil, err
	}
	return &OpenFile{
		FileObject: fobj,
		Entry:      entry,
		Mount:      entry.mountPoint(),
		Path:       path,
	}, nil
}

// Release releases the Entry reference an OpenFile holds. Callers must call
// this exactly once after closing the underlying FileObject.
func (f *OpenFile) Release() {
	f.Entry.DecRef()
}

// Metadata walks and returns node metadata without opening.
func (m *VfsManager) Metadata(ctx context.Context, path string, cwd *Entry) (Metadata, error) {
	entry, err := m.PathWalk(ctx, path, cwd)
	if err != nil {
		return Metadata{}, err
	}
	defer entry.DecRef()
	return entry.Node().Metadata(), nil
}

// Readdir lists the directory at path, synthesizing "." and ".."
// exactly once each. On bind-mounted directories the entries come
// exclusively from the bind source (Entry.Node() already is the source
// node by the time we reach here, since PathWalk resolved the mount), so
// no extra handling is needed here beyond the "..", which dotdotTarget
// resolves to the mount's parent in the mount tree rather than the source
// filesystem's parent.
func (m *VfsManager) Readdir(ctx context.Context, path string, cwd *Entry) ([]Dirent, error) {
	entry, err := m.PathWalk(ctx, path, cwd)
	if err != nil {
		return nil, err
	}
	defer entry.DecRef()

	if !entry.Node().IsDir() {
		return nil, kerr.ErrNotADirectory
	}
	children, err := entry.Node().FS.Readdir(ctx, entry.Node())
	if err != nil {
		return nil, err
	}

	out := make([]Dirent, 0, len(children)+2)
	out = append(out, Dirent{Name: ".", Type: Directory, ID: entry.Node().ID})

	parentEntry := dotdotTarget(entry)
	if parentEntry != nil {
		out = append(out, Dirent{Name: "..", Type: Directory, ID: parentEntry.Node().ID})
	} else {
		out = append(out, Dirent{Name: "..", Type: Directory, ID: entry.Node().ID})
	}
	out = append(out, children...)
	return out, nil
}

// dotdotTarget returns the entry ".." should resolve to. A mount root
// carries a mountTreeParent recorded by resolveMountsAndSymlinks when
// path walk crossed into it, pointing at the mount point's own parent in
// the mount tree; that takes precedence over Entry.Parent(), which for a
// mount root belongs to the mounted filesystem's own internal hierarchy
// rather than the namespace that mounted it.
func dotdotTarget(e *Entry) *Entry {
	if p := e.mountTreeParent(); p != nil {
		return p
	}
	if e.Parent() != nil {
		return e.Parent()
	}
	return nil
}

// isAncestorPath reports whether ancestor is a path prefix of path at a
// component boundary.
func isAncestorPath(ancestor, path string) bool {
	if ancestor == "/" {
		return true
	}
	if !strings.HasPrefix(path, ancestor) {
		return false
	}
	rest := path[len(ancestor):]
	return rest == "" || strings.HasPrefix(rest, "/")
}
