package vfs

import (
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// MountKind distinguishes the four mount flavors the core supports.
type MountKind int

const (
	// MountNormal mounts a fresh FileSystemOperations.
	MountNormal MountKind = iota
	// MountBind redirects to an existing entry in the same namespace.
	MountBind
	// MountOverlay mounts an overlay filesystem (upper + lowers).
	MountOverlay
	// MountCrossNamespace redirects into a different VfsManager's tree.
	MountCrossNamespace
)

// MountFlags are the handful of mount(2)-style flags the core cares
// about.
type MountFlags struct {
	ReadOnly bool
	NoExec   bool
	NoDev    bool
	NoSUID   bool
	NoATime  bool
}

// MountPoint is one node in the mount tree rooted at "/".
type MountPoint struct {
	// FS is the mounted filesystem. nil for bind and cross-namespace
	// mounts, which redirect instead of owning a filesystem.
	FS FileSystemOperations

	Flags MountFlags
	Path  string
	Kind  MountKind

	// root is the Entry path walk jumps to when it crosses this mount:
	// the mounted filesystem's root entry for MountNormal/MountOverlay,
	// the source entry for MountBind, and the (lazily resolved) source
	// entry in the other namespace for MountCrossNamespace.
	root *Entry

	// at is the entry this mount is anchored on (the "mount point" in
	// the parent namespace).
	at *Entry

	// crossManager is set only for MountCrossNamespace mounts: a weak
	// reference to the source VfsManager plus the path to walk there.
	crossManager *weakManagerRef
	crossPath    string
}

// weakManagerRef is a non-reference-counted pointer to a VfsManager,
// registered explicitly via RegisterCrossNamespaceRef. It
// models "Weak<VfsManager>": upgrading it fails once the manager's Close
// has expired it, at which point descendant
// lookups resolve to NotFound until CleanupCrossVfsRefs reaps the mount.
type weakManagerRef struct {
	mu     sync.Mutex
	target *VfsManager
}

func (w *weakManagerRef) upgrade() *VfsManager {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

func (w *weakManagerRef) expire() {
	w.mu.Lock()
	w.target = nil
	w.mu.Unlock()
}

// MountTree indexes a namespace's mounts by absolute path for
// administrative operations (umount, enumerate-under-prefix). It is
// backed by a google/btree ordered set keyed on absolute path and offers
// exact-path lookup, ordered listing and a below-prefix query; path walk
// does not consult it, since it follows the mount recorded on each Entry.
type MountTree struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

type mountTreeItem struct {
	path string
	mp   *MountPoint
}

func (i mountTreeItem) Less(than btree.Item) bool {
	return i.path < than.(mountTreeItem).path
}

// NewMountTree constructs an empty mount tree.
func NewMountTree() *MountTree {
	return &MountTree{tree: btree.New(16)}
}

// Insert registers mp at its Path. It fails with ErrBusy if a mount is
// already registered at that exact path.
func (t *MountTree) Insert(mp *MountPoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	item := mountTreeItem{path: mp.Path, mp: mp}
	if existing := t.tree.Get(item); existing != nil {
		return kerr.ErrBusy
	}
	t.tree.ReplaceOrInsert(item)
	return nil
}

// Remove unregisters the mount at path.
func (t *MountTree) Remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree.Delete(mountTreeItem{path: path})
}

// Get returns the mount registered at exactly path, if any.
func (t *MountTree) Get(path string) (*MountPoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item := t.tree.Get(mountTreeItem{path: path})
	if item == nil {
		return nil, false
	}
	return item.(mountTreeItem).mp, true
}

// HasDescendant reports whether any mount is registered strictly below
// prefix.
func (t *MountTree) HasDescendant(prefix string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	found := false
	boundary := prefix
	if !strings.HasSuffix(boundary, "/") {
		boundary += "/"
	}
	t.tree.AscendGreaterOrEqual(mountTreeItem{path: boundary}, func(item btree.Item) bool {
		p := item.(mountTreeItem).path
		if strings.HasPrefix(p, boundary) {
			found = true
			return false
		}
		return false
	})
	return found
}

// List returns every registered mount path, in ascending order.
func (t *MountTree) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	t.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(mountTreeItem).path)
		return true
	})
	return out
}
