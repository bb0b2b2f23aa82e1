package vfs

import (
	"context"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// OpenFlags mirrors the handful of open(2)-style flags the core and its
// filesystems need to agree on. It is intentionally a small, ABI-neutral
// set; each AbiModule translates its own native flag bits into this set
// before calling into the VFS.
type OpenFlags struct {
	Read     bool
	Write    bool
	Append   bool
	Create   bool
	Truncate bool
	Excl     bool
}

// WriteCapable reports whether flags request a write-capable open, which
// triggers overlay copy-up.
func (f OpenFlags) WriteCapable() bool {
	return f.Write || f.Append
}

// Dirent is one entry returned by FileSystemOperations.Readdir.
type Dirent struct {
	Name string
	Type FileType
	ID   uint64
}

// FileSystemOperations is the driver contract every concrete filesystem
// (tmpfs, overlay, a bind-mount shim) implements.
// Required methods must all be implemented; CreateHardlink is optional and
// filesystems that don't support hard links should embed
// NoHardlinkSupport to get the default NotSupported behavior for free,
// mirroring how gVisor's FilesystemImpl gives default "unsupported"
// behavior for rarely-implemented optional operations.
type FileSystemOperations interface {
	// Lookup resolves name within parent, returning the child node.
	Lookup(ctx context.Context, parent *VfsNode, name string) (*VfsNode, error)

	// Open returns a stateful open instance for node.
	Open(ctx context.Context, node *VfsNode, flags OpenFlags) (FileObject, error)

	// Create makes a new node of the given type under parent.
	Create(ctx context.Context, parent *VfsNode, name string, ftype FileType, mode uint32) (*VfsNode, error)

	// Remove unlinks name from parent.
	Remove(ctx context.Context, parent *VfsNode, name string) error

	// Readdir lists the direct children of node, a directory.
	Readdir(ctx context.Context, node *VfsNode) ([]Dirent, error)

	// RootNode returns this filesystem's root node.
	RootNode() *VfsNode

	// Name identifies the filesystem type (e.g. "tmpfs", "overlay").
	Name() string

	// IsReadOnly reports whether mutating operations are rejected.
	IsReadOnly() bool

	// CreateHardlink links targetNode under linkParent as linkName.
	// Filesystems that don't support hard links should embed
	// NoHardlinkSupport.
	CreateHardlink(ctx context.Context, linkParent *VfsNode, linkName string, targetNode *VfsNode) (*VfsNode, error)
}

// NoHardlinkSupport can be embedded by a FileSystemOperations
// implementation to satisfy CreateHardlink with the default behavior:
// fail with NotSupported.
type NoHardlinkSupport struct{}

// CreateHardlink implements FileSystemOperations.CreateHardlink.
func (NoHardlinkSupport) CreateHardlink(ctx context.Context, linkParent *VfsNode, linkName string, targetNode *VfsNode) (*VfsNode, error) {
	return nil, kerr.ErrNotSupported
}
