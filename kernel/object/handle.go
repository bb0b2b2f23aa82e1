package object

import (
	"sync"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// maxHandles is the fixed handle-table size: a fixed-size array of 1024
// optional slots rather than a growable map, so handle numbers stay
// small and dense.
const maxHandles = 1024

// Handle is an index into a HandleTable.
type Handle uint32

// StandardStream identifies which of the three inherited standard
// streams a HandleTypeStandard handle is.
type StandardStream int

const (
	Stdin StandardStream = iota
	Stdout
	Stderr
)

// HandleType classifies the role a handle plays, independent of which
// KernelObject kind backs it.
type HandleType int

const (
	// HandleTypeStandard marks one of the three inherited standard
	// streams.
	HandleTypeStandard HandleType = iota
	// HandleTypeIPCChannel marks a handle used for inter-task
	// communication (the default role inferred for a pipe endpoint).
	HandleTypeIPCChannel
	// HandleTypeRegular is the default role for anything else (the
	// default inferred for a plain file).
	HandleTypeRegular
	// HandleTypeSocket marks a handle backed by a net.Socket.
	HandleTypeSocket
)

// AccessMode records the read/write intent a handle was opened with,
// independent of what the underlying object itself allows.
type AccessMode int

const (
	AccessReadOnly AccessMode = iota
	AccessWriteOnly
	AccessReadWrite
)

// SpecialSemantics are orthogonal per-handle flags layered on top of
// HandleType/AccessMode.
type SpecialSemantics struct {
	CloseOnExec bool
	NonBlocking bool
	Append      bool
	Sync        bool
}

// HandleMetadata is the per-handle role record stored alongside each
// KernelObject in a HandleTable.
type HandleMetadata struct {
	Type             HandleType
	Standard         StandardStream // meaningful only when Type == HandleTypeStandard
	Access           AccessMode
	SpecialSemantics SpecialSemantics
}

// inferMetadataFromObject supplies HandleMetadata defaults for a bare
// Insert call: a pipe defaults to an IPC channel opened read-write, a
// file defaults to a regular, read-write handle with no special
// semantics set.
func inferMetadataFromObject(obj KernelObject) HandleMetadata {
	switch obj.Kind {
	case KindPipe:
		return HandleMetadata{Type: HandleTypeIPCChannel, Access: AccessReadWrite}
	case KindSocket:
		return HandleMetadata{Type: HandleTypeSocket, Access: AccessReadWrite}
	default:
		return HandleMetadata{Type: HandleTypeRegular, Access: AccessReadWrite}
	}
}

// KernelObjectInfo is the introspection snapshot returned for a handle:
// enough to answer "what is this and how was it opened" without handing
// out the KernelObject itself.
type KernelObjectInfo struct {
	Handle   Handle
	Kind     Kind
	Metadata HandleMetadata
}

type slot struct {
	obj      KernelObject
	metadata HandleMetadata
	occupied bool
}

// HandleTable is a per-task table mapping small integer Handles to
// KernelObjects, with O(1) insert/get/remove via a fixed-size array plus
// a free-handle stack, extended with per-handle HandleMetadata tracking.
type HandleTable struct {
	mu    sync.Mutex
	slots [maxHandles]slot
	free  []Handle
}

// NewHandleTable returns an empty table with every slot available,
// handed out in ascending order on first use (mirroring the original's
// free-stack seeded high-to-low so it pops low-to-high).
func NewHandleTable() *HandleTable {
	t := &HandleTable{free: make([]Handle, 0, maxHandles)}
	for i := maxHandles - 1; i >= 0; i-- {
		t.free = append(t.free, Handle(i))
	}
	return t
}

// Insert stores obj under a fresh handle with inferred metadata.
func (t *HandleTable) Insert(obj KernelObject) (Handle, error) {
	return t.InsertWithMetadata(obj, inferMetadataFromObject(obj))
}

// InsertWithMetadata stores obj under a fresh handle with explicit
// metadata.
func (t *HandleTable) InsertWithMetadata(obj KernelObject, md HandleMetadata) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.free) == 0 {
		return 0, kerr.ErrOutOfHandles
	}
	h := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.slots[h] = slot{obj: obj, metadata: md, occupied: true}
	return h, nil
}

// Get returns the KernelObject stored at h.
func (t *HandleTable) Get(h Handle) (KernelObject, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h) >= maxHandles || !t.slots[h].occupied {
		return KernelObject{}, kerr.ErrNotFound
	}
	return t.slots[h].obj, nil
}

// GetMetadata returns the HandleMetadata stored at h.
func (t *HandleTable) GetMetadata(h Handle) (HandleMetadata, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h) >= maxHandles || !t.slots[h].occupied {
		return HandleMetadata{}, kerr.ErrNotFound
	}
	return t.slots[h].metadata, nil
}

// UpdateMetadata replaces the HandleMetadata stored at h in place,
// without touching the object it names.
func (t *HandleTable) UpdateMetadata(h Handle, md HandleMetadata) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h) >= maxHandles || !t.slots[h].occupied {
		return kerr.ErrNotFound
	}
	t.slots[h].metadata = md
	return nil
}

// Remove closes and releases the handle, returning the slot to the free
// stack.
func (t *HandleTable) Remove(h Handle) error {
	t.mu.Lock()
	if int(h) >= maxHandles || !t.slots[h].occupied {
		t.mu.Unlock()
		return kerr.ErrNotFound
	}
	obj := t.slots[h].obj
	t.slots[h] = slot{}
	t.free = append(t.free, h)
	t.mu.Unlock()
	return obj.Close()
}

// IsValidHandle reports whether h currently names a live object.
func (t *HandleTable) IsValidHandle(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(h) < maxHandles && t.slots[h].occupied
}

// OpenCount returns the number of handles currently in use.
func (t *HandleTable) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maxHandles - len(t.free)
}

// ActiveHandles returns every currently valid handle, in ascending order.
func (t *HandleTable) ActiveHandles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Handle, 0, maxHandles-len(t.free))
	for i := 0; i < maxHandles; i++ {
		if t.slots[i].occupied {
			out = append(out, Handle(i))
		}
	}
	return out
}

// IterWithMetadata calls fn for every currently valid handle and its
// metadata, in ascending handle order. fn must not call back into the
// same HandleTable.
func (t *HandleTable) IterWithMetadata(fn func(Handle, KernelObject, HandleMetadata)) {
	t.mu.Lock()
	type entry struct {
		h  Handle
		s  slot
	}
	entries := make([]entry, 0, maxHandles-len(t.free))
	for i := 0; i < maxHandles; i++ {
		if t.slots[i].occupied {
			entries = append(entries, entry{Handle(i), t.slots[i]})
		}
	}
	t.mu.Unlock()
	for _, e := range entries {
		fn(e.h, e.s.obj, e.s.metadata)
	}
}

// Snapshot returns the introspection record for every currently open
// handle, in ascending handle order: enough for an external inspector
// (e.g. a "state" CLI command) to enumerate a task's open handles and
// their roles without reaching into the table's internals.
func (t *HandleTable) Snapshot() []KernelObjectInfo {
	var out []KernelObjectInfo
	t.IterWithMetadata(func(h Handle, obj KernelObject, md HandleMetadata) {
		out = append(out, KernelObjectInfo{Handle: h, Kind: obj.Kind, Metadata: md})
	})
	return out
}

// GetObjectInfo returns the introspection snapshot for h.
func (t *HandleTable) GetObjectInfo(h Handle) (KernelObjectInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h) >= maxHandles || !t.slots[h].occupied {
		return KernelObjectInfo{}, kerr.ErrNotFound
	}
	s := t.slots[h]
	return KernelObjectInfo{Handle: h, Kind: s.obj.Kind, Metadata: s.metadata}, nil
}

// CloseAll releases every currently open handle, e.g. on task exit. It
// collects errors rather than stopping at the first one, since handle
// closure failures for one resource shouldn't leave siblings leaked.
func (t *HandleTable) CloseAll() []error {
	var errs []error
	for _, h := range t.ActiveHandles() {
		if err := t.Remove(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Dup installs a clone of the object at h under a fresh handle, sharing
// the same underlying resource (see KernelObject.Clone).
func (t *HandleTable) Dup(h Handle) (Handle, error) {
	obj, err := t.Get(h)
	if err != nil {
		return 0, err
	}
	md, err := t.GetMetadata(h)
	if err != nil {
		return 0, err
	}
	return t.InsertWithMetadata(obj.Clone(), md)
}
