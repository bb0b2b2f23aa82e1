// Package tmpfs provides a pure in-memory FileSystemOperations
// implementation: every node lives only in the process heap, with no
// backing store. It is the default root filesystem and the default
// source for bind mounts and overlay layers in tests, grounded on the
// shape of gVisor's in-memory kernfs/tmpfs filesystems (pkg/sentry/fsimpl).
package tmpfs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scarletkernel/scarlet/pkg/kerr"

	"github.com/scarletkernel/scarlet/kernel/vfs"
)

var nodeIDCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&nodeIDCounter, 1)
}

// inode is a tmpfs file's storage: a byte buffer for regular files, a name
// table for directories. Directories and regular files share this struct
// so FS methods don't need a type switch beyond vfs.FileType.
type inode struct {
	mu       sync.Mutex
	ftype    vfs.FileType
	mode     uint32
	data     []byte
	children map[string]*vfs.VfsNode
	nlink    uint32
	modTime  time.Time
}

// FS is an in-memory FileSystemOperations. The zero value is not usable;
// construct with New.
type FS struct {
	vfs.NoHardlinkSupport

	name     string
	readOnly bool

	mu    sync.RWMutex
	nodes map[uint64]*inode
	root  *vfs.VfsNode
}

// New constructs an empty tmpfs with a single root directory.
func New(name string) *FS {
	fs := &FS{name: name, nodes: make(map[uint64]*inode)}
	rootInode := &inode{ftype: vfs.Directory, mode: 0o755, children: make(map[string]*vfs.VfsNode), nlink: 2, modTime: fs.now()}
	id := nextID()
	fs.nodes[id] = rootInode
	fs.root = vfs.NewNode(id, fs, metadataOf(rootInode))
	return fs
}

// ReadOnly marks the filesystem (and every mount of it) read-only after
// construction, for building read-only lower layers.
func (fs *FS) ReadOnly() *FS {
	fs.readOnly = true
	return fs
}

func (fs *FS) now() time.Time { return time.Time{} }

func metadataOf(n *inode) vfs.Metadata {
	return vfs.Metadata{
		Type:    n.ftype,
		Size:    int64(len(n.data)),
		Mode:    n.mode,
		Nlink:   n.nlink,
		ModTime: n.modTime,
		AccTime: n.modTime,
		ChgTime: n.modTime,
	}
}

func (fs *FS) Name() string       { return fs.name }
func (fs *FS) IsReadOnly() bool   { return fs.readOnly }
func (fs *FS) RootNode() *vfs.VfsNode { return fs.root }

func (fs *FS) inodeOf(node *vfs.VfsNode) *inode {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.nodes[node.ID]
}

// Lookup implements vfs.FileSystemOperations.
func (fs *FS) Lookup(ctx context.Context, dir *vfs.VfsNode, name string) (*vfs.VfsNode, error) {
	parent := fs.inodeOf(dir)
	if parent == nil {
		return nil, kerr.ErrNotFound
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	child, ok := parent.children[name]
	if !ok {
		return nil, kerr.ErrNotFound
	}
	return child, nil
}

// Create implements vfs.FileSystemOperations.
func (fs *FS) Create(ctx context.Context, dir *vfs.VfsNode, name string, ftype vfs.FileType, mode uint32) (*vfs.VfsNode, error) {
	if fs.readOnly {
		return nil, kerr.ErrReadOnly
	}
	parentInode := fs.inodeOf(dir)
	if parentInode == nil {
		return nil, kerr.ErrNotFound
	}
	parentInode.mu.Lock()
	defer parentInode.mu.Unlock()
	if _, exists := parentInode.children[name]; exists {
		return nil, kerr.ErrAlreadyExists
	}

	child := &inode{ftype: ftype, mode: mode, modTime: fs.now()}
	if ftype == vfs.Directory {
		child.children = make(map[string]*vfs.VfsNode)
		child.nlink = 2
	} else {
		child.nlink = 1
	}
	id := nextID()
	fs.mu.Lock()
	fs.nodes[id] = child
	fs.mu.Unlock()

	node := vfs.NewNode(id, fs, metadataOf(child))
	parentInode.children[name] = node
	return node, nil
}

// Remove implements vfs.FileSystemOperations.
func (fs *FS) Remove(ctx context.Context, dir *vfs.VfsNode, name string) error {
	if fs.readOnly {
		return kerr.ErrReadOnly
	}
	parentInode := fs.inodeOf(dir)
	if parentInode == nil {
		return kerr.ErrNotFound
	}
	parentInode.mu.Lock()
	defer parentInode.mu.Unlock()
	victim, ok := parentInode.children[name]
	if !ok {
		return kerr.ErrNotFound
	}
	victimInode := fs.inodeOf(victim)
	if victimInode != nil && victimInode.ftype == vfs.Directory && len(victimInode.children) > 0 {
		return kerr.ErrDirectoryNotEmpty
	}
	delete(parentInode.children, name)

	fs.mu.Lock()
	delete(fs.nodes, victim.ID)
	fs.mu.Unlock()
	return nil
}

// Readdir implements vfs.FileSystemOperations.
func (fs *FS) Readdir(ctx context.Context, dir *vfs.VfsNode) ([]vfs.Dirent, error) {
	parentInode := fs.inodeOf(dir)
	if parentInode == nil {
		return nil, kerr.ErrNotFound
	}
	parentInode.mu.Lock()
	defer parentInode.mu.Unlock()
	out := make([]vfs.Dirent, 0, len(parentInode.children))
	for name, node := range parentInode.children {
		childInode := fs.inodeOf(node)
		out = append(out, vfs.Dirent{Name: name, Type: childInode.ftype, ID: node.ID})
	}
	return out, nil
}

// Open implements vfs.FileSystemOperations, returning a handle onto the
// inode's byte buffer.
func (fs *FS) Open(ctx context.Context, node *vfs.VfsNode, flags vfs.OpenFlags) (vfs.FileObject, error) {
	in := fs.inodeOf(node)
	if in == nil {
		return nil, kerr.ErrNotFound
	}
	if flags.Truncate && flags.WriteCapable() {
		in.mu.Lock()
		in.data = nil
		in.mu.Unlock()
	}
	return &fileHandle{fs: fs, node: node, in: in, appendOnly: flags.Append}, nil
}
