package vfs

import (
	"sync"
	"sync/atomic"
)

// Entry is a VfsEntry: a cache node in the path hierarchy. It holds a
// strong reference to its VfsNode, a weak (non-reference-counted) back
// reference to its parent, and weak references to its children. An Entry
// is a cache, never authoritative: it may be evicted whenever no strong
// references remain, and evicting it never destroys the underlying
// VfsNode.
//
// "Weak" here, as in gVisor's Dentry, does not mean a GC weak pointer: it
// means the edge does not hold a reference count. A child is kept alive by
// whoever holds a strong reference to it (a mount point, an open file, an
// in-flight path walk) via IncRef/DecRef; the parent's children map is a
// navigational cache, and an entry with refCount 0 is eligible for
// eviction from that map at any time.
type Entry struct {
	mu sync.Mutex

	// refCount counts strong references: mount points, open files,
	// in-flight walks. Protected via atomic ops so IncRef/DecRef don't
	// need the full mutex.
	refCount int32

	// node is the VfsNode this entry names. Immutable after Init.
	node *VfsNode

	// parent is a weak back-reference: set at construction, never
	// reference-counted. nil for the root of a filesystem.
	parent *Entry

	// name is this entry's simple name within parent. Empty for roots.
	name string

	// children caches name -> child Entry. Entries here are weakly held:
	// presence in this map does not keep a child's refCount above zero.
	children map[string]*Entry

	// mount is non-nil if a MountPoint is mounted at this entry (i.e.
	// this entry is a mount point in the namespace that reached it).
	mount *MountPoint

	// mountParent is set, weakly, on an entry that path walk jumped to by
	// crossing a mount: the parent (in the mount tree, at the mount point
	// it replaced) that ".." should resolve to instead of this entry's
	// own Parent(), which belongs to the mounted filesystem's internal
	// hierarchy rather than the namespace that mounted it.
	mountParent *Entry

	// dead marks an entry whose underlying file has been removed; kept
	// for parity with the "cache raced with eviction" invariant.
	dead bool
}

// NewRootEntry constructs the root Entry for a filesystem: no parent, no
// name, wrapping the filesystem's root node. The caller holds the single
// implicit strong reference (refCount starts at 1).
func NewRootEntry(node *VfsNode) *Entry {
	return &Entry{node: node, refCount: 1, children: make(map[string]*Entry)}
}

// newChildEntry wraps node as name under parent with one strong reference
// (owned by the caller, typically the path walk that just looked it up).
func newChildEntry(parent *Entry, name string, node *VfsNode) *Entry {
	return &Entry{
		parent:   parent,
		name:     name,
		node:     node,
		refCount: 1,
		children: make(map[string]*Entry),
	}
}

// Node returns the VfsNode this entry names.
func (e *Entry) Node() *VfsNode { return e.node }

// Name returns the entry's simple name, empty for a filesystem root.
func (e *Entry) Name() string { return e.name }

// Parent returns the weak parent reference. The caller must not assume
// this pointer stays valid forever; it is valid for as long as the
// caller's own strong reference on e is held, since an entry's parent
// field is immutable after construction (an entry is never re-parented
// in place; renames create/replace entries instead).
func (e *Entry) Parent() *Entry {
	return e.parent
}

// IncRef adds a strong reference.
func (e *Entry) IncRef() {
	atomic.AddInt32(&e.refCount, 1)
}

// DecRef releases a strong reference. When the count reaches zero, the
// entry is immediately evicted from its parent's child cache: eviction is
// eager rather than lazy, which keeps cache state deterministic for tests
// and for mount-busy checks.
func (e *Entry) DecRef() {
	if atomic.AddInt32(&e.refCount, -1) == 0 {
		e.evict()
	}
}

// RefCount returns the current strong reference count, chiefly for tests.
func (e *Entry) RefCount() int32 {
	return atomic.LoadInt32(&e.refCount)
}

func (e *Entry) evict() {
	p := e.parent
	if p == nil {
		return
	}
	p.mu.Lock()
	if existing, ok := p.children[e.name]; ok && existing == e {
		delete(p.children, e.name)
	}
	p.mu.Unlock()
}

// GetChild looks up name in the entry's cache. It returns (nil, false) on
// a cache miss, which the path walker resolves via FileSystemOperations.Lookup.
func (e *Entry) GetChild(name string) (*Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.children[name]
	return child, ok
}

// cacheChild installs child under name, taking no reference on it (the
// cache entry is weak); it returns false without modifying the map if a
// *different* live entry is already cached under that name, preserving
// so a failed insert never leaves the parent child-map inconsistent.
func (e *Entry) cacheChild(name string, child *Entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.children[name]; ok && existing != child {
		return false
	}
	e.children[name] = child
	return true
}

// forgetChild removes name from the cache unconditionally (used by
// remove/rename).
func (e *Entry) forgetChild(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.children, name)
}

// hasLiveChildren reports whether any cached child currently exists,
// used by remove's "no live children" precondition.
func (e *Entry) hasLiveChildren() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.children) > 0
}

// IsMountPoint reports whether a MountPoint is currently mounted at e.
func (e *Entry) IsMountPoint() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mount != nil
}

func (e *Entry) setMount(mp *MountPoint) {
	e.mu.Lock()
	e.mount = mp
	e.mu.Unlock()
}

func (e *Entry) clearMount() {
	e.mu.Lock()
	e.mount = nil
	e.mu.Unlock()
}

func (e *Entry) mountPoint() *MountPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mount
}

// setMountTreeParent records parent as where ".." should resolve to for e,
// called when path walk crosses a mount and replaces the mount point entry
// with e. parent is held weakly, the same as the ordinary parent field.
func (e *Entry) setMountTreeParent(parent *Entry) {
	e.mu.Lock()
	e.mountParent = parent
	e.mu.Unlock()
}

// mountTreeParent returns the mount-tree parent set by setMountTreeParent,
// or nil if e was never reached by crossing a mount.
func (e *Entry) mountTreeParent() *Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mountParent
}

// IsDead reports whether the file this entry named has been removed.
func (e *Entry) IsDead() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dead
}

func (e *Entry) markDead() {
	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
}
