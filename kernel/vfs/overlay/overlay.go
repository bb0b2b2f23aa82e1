// Package overlay implements an overlay FileSystemOperations: an upper,
// writable layer stacked on top of one or more read-only lower layers.
// Lookup and Readdir merge the layers with upper-shadows-lower precedence;
// any write-capable operation against a node that lives only in a lower
// layer triggers copy-up into the upper layer first. Removing a name that
// a lower layer still has leaves behind a whiteout marker so it stays
// deleted. Grounded on the layered upper/lowers design of a conventional
// Linux-style overlayfs driver (copy-up on write, upper-only
// create/unlink, whiteout-on-delete).
package overlay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/scarletkernel/scarlet/pkg/kerr"

	"github.com/scarletkernel/scarlet/kernel/vfs"
)

// FS is an overlay filesystem: one writable upper plus N read-only lowers,
// searched in priority order (index 0 highest).
type FS struct {
	upper  vfs.FileSystemOperations // nil for a read-only overlay
	lowers []vfs.FileSystemOperations

	mu    sync.Mutex
	nodes map[uint64]*mergedDir
	root  *vfs.VfsNode

	// whiteouts records, per directory, names that have been removed and
	// must stay hidden even though a lower layer still has an entry under
	// that name: the in-memory equivalent of the character-device
	// whiteout files a real overlayfs upper uses for the same purpose.
	whiteouts map[*mergedDir]map[string]bool
}

// mergedDir tracks, for one overlay node, which underlying layer node
// backs it in each layer (nil where absent), plus enough of its own
// position (name within parent, parent merge record) to drive copy-up: an
// ancestor with no upper counterpart yet must itself be created in the
// upper layer before a descendant file can be.
type mergedDir struct {
	name   string
	parent *mergedDir

	upperNode  *vfs.VfsNode
	lowerNodes []*vfs.VfsNode
}

var overlayIDCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&overlayIDCounter, 1)
}

// New constructs an overlay over upper (may be nil for a read-only
// overlay) and lowers, highest priority first.
func New(upper vfs.FileSystemOperations, lowers []vfs.FileSystemOperations) (*FS, error) {
	if upper == nil && len(lowers) == 0 {
		return nil, kerr.ErrInvalidOperation
	}
	fs := &FS{upper: upper, lowers: lowers, nodes: make(map[uint64]*mergedDir), whiteouts: make(map[*mergedDir]map[string]bool)}

	root := &mergedDir{lowerNodes: make([]*vfs.VfsNode, len(lowers))}
	if upper != nil {
		root.upperNode = upper.RootNode()
	}
	for i, l := range lowers {
		root.lowerNodes[i] = l.RootNode()
	}
	id := nextID()
	fs.nodes[id] = root
	fs.root = vfs.NewNode(id, fs, rootMetadata())
	return fs, nil
}

func rootMetadata() vfs.Metadata {
	return vfs.Metadata{Type: vfs.Directory, Mode: 0o755, Nlink: 2}
}

func (fs *FS) Name() string           { return "overlay" }
func (fs *FS) IsReadOnly() bool       { return fs.upper == nil }
func (fs *FS) RootNode() *vfs.VfsNode { return fs.root }

func (fs *FS) mergedOf(node *vfs.VfsNode) *mergedDir {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.nodes[node.ID]
}

func (fs *FS) isWhiteout(parent *mergedDir, name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.whiteouts[parent][name]
}

func (fs *FS) setWhiteout(parent *mergedDir, name string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	names, ok := fs.whiteouts[parent]
	if !ok {
		names = make(map[string]bool)
		fs.whiteouts[parent] = names
	}
	names[name] = true
}

func (fs *FS) clearWhiteout(parent *mergedDir, name string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.whiteouts[parent], name)
}

func (fs *FS) register(m *mergedDir) *vfs.VfsNode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id := nextID()
	fs.nodes[id] = m
	meta := rootMetadata()
	switch {
	case m.upperNode != nil:
		meta = m.upperNode.Metadata()
	default:
		for _, l := range m.lowerNodes {
			if l != nil {
				meta = l.Metadata()
				break
			}
		}
	}
	return vfs.NewNode(id, fs, meta)
}

// Lookup resolves name within dir, preferring the upper layer, then lowers
// in priority order, and merges directory shadows when name resolves to a
// directory in more than one layer.
func (fs *FS) Lookup(ctx context.Context, dir *vfs.VfsNode, name string) (*vfs.VfsNode, error) {
	parent := fs.mergedOf(dir)
	if parent == nil {
		return nil, kerr.ErrNotFound
	}
	if fs.isWhiteout(parent, name) {
		return nil, kerr.ErrNotFound
	}

	result := &mergedDir{name: name, parent: parent, lowerNodes: make([]*vfs.VfsNode, len(parent.lowerNodes))}
	found := false
	var resolvedType vfs.FileType

	if parent.upperNode != nil {
		if child, err := fs.upper.Lookup(ctx, parent.upperNode, name); err == nil {
			result.upperNode = child
			resolvedType = child.Metadata().Type
			found = true
			if resolvedType != vfs.Directory {
				return fs.register(result), nil
			}
		}
	}

	for i, lowerDir := range parent.lowerNodes {
		if lowerDir == nil {
			continue
		}
		child, err := fs.lowers[i].Lookup(ctx, lowerDir, name)
		if err != nil {
			continue
		}
		if !found {
			resolvedType = child.Metadata().Type
			found = true
		}
		if resolvedType != vfs.Directory {
			// A non-directory upper hit already returned above; the
			// first lower hit for a non-directory wins and shadows the
			// rest.
			result.lowerNodes[i] = child
			return fs.register(result), nil
		}
		result.lowerNodes[i] = child
	}

	if !found {
		return nil, kerr.ErrNotFound
	}
	return fs.register(result), nil
}

// Readdir merges entries from every layer, upper shadowing lowers by name.
func (fs *FS) Readdir(ctx context.Context, dir *vfs.VfsNode) ([]vfs.Dirent, error) {
	merged := fs.mergedOf(dir)
	if merged == nil {
		return nil, kerr.ErrNotFound
	}

	fs.mu.Lock()
	whited := fs.whiteouts[merged]
	fs.mu.Unlock()

	seen := make(map[string]bool)
	var out []vfs.Dirent

	if merged.upperNode != nil {
		children, err := fs.upper.Readdir(ctx, merged.upperNode)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	for i, lowerDir := range merged.lowerNodes {
		if lowerDir == nil {
			continue
		}
		children, err := fs.lowers[i].Readdir(ctx, lowerDir)
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Name] || whited[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Create always targets the upper layer, copying dir up first if dir
// itself currently only exists in a lower layer.
func (fs *FS) Create(ctx context.Context, dir *vfs.VfsNode, name string, ftype vfs.FileType, mode uint32) (*vfs.VfsNode, error) {
	if fs.upper == nil {
		return nil, kerr.ErrReadOnly
	}
	dirMerged := fs.mergedOf(dir)
	if dirMerged == nil {
		return nil, kerr.ErrNotFound
	}
	upperDir, err := fs.ensureUpperDir(ctx, dirMerged)
	if err != nil {
		return nil, err
	}
	child, err := fs.upper.Create(ctx, upperDir, name, ftype, mode)
	if err != nil {
		return nil, err
	}
	fs.clearWhiteout(dirMerged, name)
	result := &mergedDir{name: name, parent: dirMerged, upperNode: child, lowerNodes: make([]*vfs.VfsNode, len(fs.lowers))}
	return fs.register(result), nil
}

// Remove deletes name from the upper layer and, if any lower layer still
// has an entry under that name, leaves behind a whiteout marker so the
// name stays deleted instead of the lower copy reappearing through
// Lookup/Readdir: the same upper-only delete a conventional overlayfs
// driver performs, recorded here since this in-memory upper has no
// on-disk character-device whiteout file of its own to persist it in.
func (fs *FS) Remove(ctx context.Context, dir *vfs.VfsNode, name string) error {
	if fs.upper == nil {
		return kerr.ErrReadOnly
	}
	dirMerged := fs.mergedOf(dir)
	if dirMerged == nil {
		return kerr.ErrNotFound
	}

	shadowedByLower := false
	for i, lowerDir := range dirMerged.lowerNodes {
		if lowerDir == nil {
			continue
		}
		if _, err := fs.lowers[i].Lookup(ctx, lowerDir, name); err == nil {
			shadowedByLower = true
			break
		}
	}

	upperDir, err := fs.ensureUpperDir(ctx, dirMerged)
	if err != nil {
		return err
	}
	err = fs.upper.Remove(ctx, upperDir, name)
	if err != nil && !(err == kerr.ErrNotFound && shadowedByLower) {
		return err
	}
	if shadowedByLower {
		fs.setWhiteout(dirMerged, name)
	}
	return nil
}

// Open dispatches to whichever layer currently backs the node, copying up
// first when the open is write-capable and the node has no upper copy yet.
func (fs *FS) Open(ctx context.Context, node *vfs.VfsNode, flags vfs.OpenFlags) (vfs.FileObject, error) {
	merged := fs.mergedOf(node)
	if merged == nil {
		return nil, kerr.ErrNotFound
	}
	if flags.WriteCapable() && merged.upperNode == nil {
		if err := fs.copyUp(ctx, node, merged); err != nil {
			return nil, err
		}
	}
	if merged.upperNode != nil {
		return fs.upper.Open(ctx, merged.upperNode, flags)
	}
	for i, lowerNode := range merged.lowerNodes {
		if lowerNode != nil {
			return fs.lowers[i].Open(ctx, lowerNode, flags)
		}
	}
	return nil, kerr.ErrNotFound
}

// ensureUpperDir returns merged's upper-layer node, creating it (and, if
// needed, every ancestor up to the upper root) first.
func (fs *FS) ensureUpperDir(ctx context.Context, merged *mergedDir) (*vfs.VfsNode, error) {
	if merged.upperNode != nil {
		return merged.upperNode, nil
	}
	if merged.parent == nil {
		// The overlay root always has an upper node once fs.upper != nil
		// (set at New); reaching here with a nil parent means upper was
		// nil, already rejected by callers.
		return nil, kerr.ErrReadOnly
	}
	upperParent, err := fs.ensureUpperDir(ctx, merged.parent)
	if err != nil {
		return nil, err
	}
	mode := uint32(0o755)
	for _, l := range merged.lowerNodes {
		if l != nil {
			mode = l.Metadata().Mode
			break
		}
	}
	created, err := fs.upper.Create(ctx, upperParent, merged.name, vfs.Directory, mode)
	if err != nil {
		return nil, err
	}
	merged.upperNode = created
	return created, nil
}

// copyUp materializes node's content into the upper layer. node must not
// be a directory (directory ancestors are copied up lazily by
// ensureUpperDir as part of resolving a descendant's upper parent).
func (fs *FS) copyUp(ctx context.Context, node *vfs.VfsNode, merged *mergedDir) error {
	if fs.upper == nil {
		return kerr.ErrReadOnly
	}
	if merged.parent == nil {
		return kerr.ErrInvalidOperation
	}
	meta := node.Metadata()
	if meta.Type == vfs.Directory {
		_, err := fs.ensureUpperDir(ctx, merged)
		return err
	}

	upperParent, err := fs.ensureUpperDir(ctx, merged.parent)
	if err != nil {
		return err
	}

	var source *vfs.VfsNode
	var sourceFS vfs.FileSystemOperations
	for i, l := range merged.lowerNodes {
		if l != nil {
			source, sourceFS = l, fs.lowers[i]
			break
		}
	}
	if source == nil {
		return kerr.ErrNotFound
	}

	created, err := fs.upper.Create(ctx, upperParent, merged.name, meta.Type, meta.Mode)
	if err != nil {
		return err
	}
	if err := copyBytes(ctx, sourceFS, source, fs.upper, created); err != nil {
		return err
	}
	merged.upperNode = created
	return nil
}

func copyBytes(ctx context.Context, srcFS vfs.FileSystemOperations, src *vfs.VfsNode, dstFS vfs.FileSystemOperations, dst *vfs.VfsNode) error {
	in, err := srcFS.Open(ctx, src, vfs.OpenFlags{Read: true})
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := dstFS.Open(ctx, dst, vfs.OpenFlags{Write: true, Truncate: true})
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, 4096)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			break
		}
	}
	return nil
}

// CreateHardlink implements vfs.FileSystemOperations; overlay does not
// support hard links across layers.
func (fs *FS) CreateHardlink(ctx context.Context, linkParent *vfs.VfsNode, linkName string, targetNode *vfs.VfsNode) (*vfs.VfsNode, error) {
	return nil, kerr.ErrNotSupported
}

var _ vfs.FileSystemOperations = (*FS)(nil)
