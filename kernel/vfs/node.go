// Package vfs implements Scarlet's virtual file system v2: a path-walk
// resolver, a dentry-style entry cache with weak-parent discipline, and a
// mount tree supporting bind, overlay, and cross-namespace mounts. The
// package is modeled on gVisor's pkg/sentry/vfs (in particular
// pkg/sentry/vfs/dentry.go's cache-not-authoritative discipline), adapted
// from gVisor's fully reference-counted, inode-less Dentry to the simpler
// single-namespace-tree-per-manager model used here.
package vfs

import (
	"time"
)

// FileType identifies the kind of file a VfsNode represents.
type FileType int

const (
	// Regular is a plain data file.
	Regular FileType = iota
	// Directory is a directory.
	Directory
	// Symlink is a symbolic link; its payload is the target path.
	Symlink
	// CharDevice is a character device node.
	CharDevice
	// BlockDevice is a block device node.
	BlockDevice
	// Pipe is a named pipe backing object (FIFO on disk).
	Pipe
	// Fifo is an alias kept distinct from Pipe for filesystems that
	// distinguish the on-disk FIFO special file from the in-kernel pipe
	// object it opens onto.
	Fifo
)

func (t FileType) String() string {
	switch t {
	case Regular:
		return "regular"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case CharDevice:
		return "chardev"
	case BlockDevice:
		return "blockdev"
	case Pipe:
		return "pipe"
	case Fifo:
		return "fifo"
	default:
		return "unknown"
	}
}

// Metadata describes a VfsNode's attributes, independent of any particular
// open instance.
type Metadata struct {
	Type    FileType
	Size    int64
	Mode    uint32
	Nlink   uint32
	ModTime time.Time
	AccTime time.Time
	ChgTime time.Time
}

// VfsNode is a file entity: a unique id within its owning filesystem, plus
// metadata. A VfsNode is never itself a cache entry — it is owned by the
// filesystem that created it and
// outlives any VfsEntry that happens to reference it.
type VfsNode struct {
	// ID is unique within the owning filesystem. The pair (fs, ID)
	// globally identifies a node.
	ID uint64

	// FS is the filesystem that owns this node. It is a plain reference,
	// not reference-counted: a VfsNode cannot outlive the FileSystemOperations
	// that allocated it because filesystems are torn down only at unmount,
	// which the mount-busy rules already prevent while nodes are live.
	FS FileSystemOperations

	// SymlinkTarget is the payload for Symlink nodes; empty otherwise.
	SymlinkTarget string

	meta Metadata
}

// NewNode constructs a VfsNode with the given id, owner, and initial
// metadata.
func NewNode(id uint64, fs FileSystemOperations, meta Metadata) *VfsNode {
	return &VfsNode{ID: id, FS: fs, meta: meta}
}

// Metadata returns a snapshot of the node's metadata.
func (n *VfsNode) Metadata() Metadata {
	return n.meta
}

// SetMetadata replaces the node's metadata wholesale. Filesystems call this
// after mutating operations (write extending size, utimes, etc.).
func (n *VfsNode) SetMetadata(meta Metadata) {
	n.meta = meta
}

// IsDir reports whether this node is a directory.
func (n *VfsNode) IsDir() bool {
	return n.meta.Type == Directory
}
