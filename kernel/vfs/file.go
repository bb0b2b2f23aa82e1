package vfs

// StreamOps is the read/write capability.
type StreamOps interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// PositionalOps is the seek/truncate/metadata capability.
type PositionalOps interface {
	Seek(offset int64, whence int) (int64, error)
	Truncate(size int64) error
	Stat() (Metadata, error)
}

// MemoryMappingOps is the optional mmap capability a FileObject may
// present; callers discover it via a type assertion, mirroring how
// gVisor's FileDescription capabilities are discovered: by asking the
// object whether it presents the capability, not by a fixed interface.
type MemoryMappingOps interface {
	// SupportsMmap reports whether Mmap/Munmap may be called.
	SupportsMmap() bool
	Mmap(vaddr, length uint64, prot, flags uint32, offset int64) (uint64, error)
	Munmap(vaddr, length uint64) error
}

// FileObject is a stateful open instance: position and flags live here,
// not on the VfsNode. Every FileSystemOperations.Open
// implementation returns one of these.
type FileObject interface {
	StreamOps
	PositionalOps
	Close() error
}

// OpenFile is the VFS-level wrapper returned by Manager.Open: it retains
// the FileObject plus the VfsEntry, MountPoint, and path text used to open
// it, so that later operations (e.g. re-deriving the owning filesystem for
// copy-up, or reporting the open path) don't need a second path walk.
type OpenFile struct {
	FileObject
	Entry *Entry
	Mount *MountPoint
	Path  string
}
