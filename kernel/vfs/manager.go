package vfs

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

var managerIDCounter uint64

// VfsManager owns one mount namespace: a root Entry, a MountTree, and the
// set of other managers it's explicitly allowed to cross-namespace bind
// into. Each VfsManager gets a unique, monotonically
// increasing id at construction.
type VfsManager struct {
	id    uint64
	root  *Entry
	mounts *MountTree

	selfWeak *weakManagerRef

	mu                sync.RWMutex
	registeredSources map[uint64]*weakManagerRef
}

// NewVfsManager constructs a namespace rooted at rootFS.
func NewVfsManager(rootFS FileSystemOperations) *VfsManager {
	m := &VfsManager{
		id:                atomic.AddUint64(&managerIDCounter, 1),
		root:              NewRootEntry(rootFS.RootNode()),
		mounts:            NewMountTree(),
		registeredSources: make(map[uint64]*weakManagerRef),
	}
	m.selfWeak = &weakManagerRef{target: m}
	return m
}

// ID returns this manager's unique id.
func (m *VfsManager) ID() uint64 { return m.id }

// Root returns the namespace's root entry with an added strong reference;
// callers must DecRef it.
func (m *VfsManager) Root() *Entry {
	m.root.IncRef()
	return m.root
}

// Close tears down the manager: its weak self-reference is expired so any
// cross-namespace mount still pointing at it starts failing lookups with
// NotFound.
func (m *VfsManager) Close() {
	m.selfWeak.expire()
}

// RegisterCrossNamespaceRef allows source to be targeted by a
// cross-namespace bind mount created in m.
func (m *VfsManager) RegisterCrossNamespaceRef(source *VfsManager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registeredSources[source.id] = source.selfWeak
}

// CleanupCrossVfsRefs scans the mount tree for cross-namespace mounts
// whose source manager has expired and removes them.
func (m *VfsManager) CleanupCrossVfsRefs() {
	for _, path := range m.mounts.List() {
		mp, ok := m.mounts.Get(path)
		if !ok || mp.Kind != MountCrossNamespace {
			continue
		}
		if mp.crossManager.upgrade() == nil {
			m.mounts.Remove(path)
			mp.at.clearMount()
		}
	}
}

const maxSymlinkDepth = 40

// normalizePath splits path on "/", drops empty segments, resolves "."
// to a no-op, and pops on "..". Popping above the start (for either an
// absolute or a relative path) fails with ErrInvalidPath: popping above
// cwd is equivalent to popping above root, the same failure either way.
func normalizePath(path string) (components []string, absolute bool, err error) {
	absolute = strings.HasPrefix(path, "/")
	var stack []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return nil, absolute, kerr.ErrInvalidPath
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}
	return stack, absolute, nil
}

func hasComponents(components []string) bool {
	return len(components) > 0
}

// PathWalk resolves path to an Entry, starting from the namespace root if
// path is absolute or from cwd if relative. The
// returned Entry carries one strong reference that the caller must
// DecRef.
func (m *VfsManager) PathWalk(ctx context.Context, path string, cwd *Entry) (*Entry, error) {
	depth := 0
	return m.pathWalkInternal(ctx, path, cwd, &depth)
}

func (m *VfsManager) pathWalkInternal(ctx context.Context, path string, cwd *Entry, depth *int) (*Entry, error) {
	components, absolute, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	trailingSlash := strings.HasSuffix(path, "/") && path != "/" && path != ""

	var current *Entry
	switch {
	case absolute:
		current = m.root
		current.IncRef()
	case cwd != nil:
		if !hasComponents(components) && path != "" {
			// "" and "." resolve to cwd itself; anything requiring a
			// non-empty relative walk without cwd is an error, handled
			// below.
		}
		current = cwd
		current.IncRef()
	default:
		return nil, kerr.ErrInvalidPath
	}

	current, err = m.resolveMountsAndSymlinks(ctx, current, depth)
	if err != nil {
		return nil, err
	}

	for i, name := range components {
		next, stepErr := m.step(ctx, current, name)
		current.DecRef()
		if stepErr != nil {
			return nil, stepErr
		}
		current = next
		current, err = m.resolveMountsAndSymlinks(ctx, current, depth)
		if err != nil {
			return nil, err
		}
		if i == len(components)-1 && trailingSlash && !current.Node().IsDir() {
			current.DecRef()
			return nil, kerr.ErrNotADirectory
		}
	}
	return current, nil
}

// step resolves one path component against parent's cache, falling back
// to FileSystemOperations.Lookup on a miss and installing the result in
// the cache.
func (m *VfsManager) step(ctx context.Context, parent *Entry, name string) (*Entry, error) {
	if !parent.Node().IsDir() {
		return nil, kerr.ErrNotADirectory
	}
	if child, ok := parent.GetChild(name); ok {
		child.IncRef()
		return child, nil
	}
	node, err := parent.Node().FS.Lookup(ctx, parent.Node(), name)
	if err != nil {
		return nil, err
	}
	child := newChildEntry(parent, name, node)
	if !parent.cacheChild(name, child) {
		if existing, ok := parent.GetChild(name); ok {
			existing.IncRef()
			return existing, nil
		}
	}
	return child, nil
}

// resolveMountsAndSymlinks applies the two transparent resolutions from
// in fixed order (mount traversal, then symlink resolution),
// repeating until neither applies: a mount may be anchored on a symlink,
// and a symlink target may itself land on a mount point.
func (m *VfsManager) resolveMountsAndSymlinks(ctx context.Context, e *Entry, depth *int) (*Entry, error) {
	for {
		if mp := e.mountPoint(); mp != nil {
			next, err := m.crossMountTarget(ctx, mp)
			if err != nil {
				e.DecRef()
				return nil, err
			}
			next.setMountTreeParent(e.Parent())
			next.IncRef()
			e.DecRef()
			e = next
			continue
		}
		if e.Node().Metadata().Type == Symlink {
			*depth++
			if *depth > maxSymlinkDepth {
				e.DecRef()
				return nil, kerr.ErrSymlinkLoop
			}
			target := e.Node().SymlinkTarget
			parent := e.Parent()
			resolved, err := m.pathWalkInternal(ctx, target, parent, depth)
			e.DecRef()
			if err != nil {
				return nil, err
			}
			e = resolved
			continue
		}
		return e, nil
	}
}

// crossMountTarget resolves mp to the Entry its mount point should be
// replaced with. The result is always returned un-reffed: the caller in
// resolveMountsAndSymlinks takes the one strong reference it keeps via a
// single shared IncRef after this returns.
func (m *VfsManager) crossMountTarget(ctx context.Context, mp *MountPoint) (*Entry, error) {
	switch mp.Kind {
	case MountNormal, MountOverlay:
		return mp.root, nil
	case MountBind:
		return mp.root, nil
	case MountCrossNamespace:
		srcMgr := mp.crossManager.upgrade()
		if srcMgr == nil {
			return nil, kerr.ErrNotFound
		}
		depth := 0
		entry, err := srcMgr.pathWalkInternal(ctx, mp.crossPath, nil, &depth)
		if err != nil {
			return nil, err
		}
		// pathWalkInternal hands back a strong-ref'd entry; drop it back
		// to un-reffed so every mount kind shares the same convention.
		entry.DecRef()
		return entry, nil
	default:
		return nil, kerr.ErrInvalidOperation
	}
}

// splitParentName splits an absolute or cwd-relative path into its
// containing directory path and final component name.
func splitParentName(path string) (parentPath, name string, err error) {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "", "", kerr.ErrInvalidPath
	}
	name = trimmed[idx+1:]
	if name == "" {
		return "", "", kerr.ErrInvalidPath
	}
	if idx == 0 {
		parentPath = "/"
	} else {
		parentPath = trimmed[:idx]
	}
	return parentPath, name, nil
}
