// Package vm tracks a task's virtual address space as a set of
// non-overlapping mapped ranges. It does not allocate physical pages or
// program a real MMU (out of scope); it is the bookkeeping layer
// MemoryMap/MemoryUnmap operate on.
package vm

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

const pageSize = 4096

// maxConcurrentPageins bounds how many page faults against object-backed
// mappings can be resolving at once per address space, so a burst of
// faults against a slow backing object can't pile up unboundedly.
const maxConcurrentPageins = 64

// defaultAnonymousBase is where the monotonic anonymous-mapping region
// starts when the caller doesn't request a fixed address.
const defaultAnonymousBase = 0x4000_0000

// Protection bits, orthogonal to Flags.
const (
	ProtRead  = 1 << 0
	ProtWrite = 1 << 1
	ProtExec  = 1 << 2
)

// Mapping flags.
const (
	FlagAnonymous = 1 << 0
	FlagFixed     = 1 << 1
)

// MappableObject is the capability a KernelObject-backed mapping needs:
// the object itself decides how to materialize the mapping. Kept as a
// narrow interface here (rather than importing kernel/object) to avoid a
// dependency cycle — kernel/object mappings satisfy this by matching
// method signatures, not by explicit implementation.
type MappableObject interface {
	Mmap(vaddr, length uint64, prot, flags uint32, offset int64) (uint64, error)
	Munmap(vaddr, length uint64) error
}

// Mapping is one entry in a Manager's address space.
type Mapping struct {
	Vaddr     uint64
	Length    uint64
	Prot      uint32
	Flags     uint32
	Object    MappableObject // nil for anonymous mappings
	Offset    int64
	Anonymous bool
}

func (m *Mapping) contains(addr uint64) bool {
	return addr >= m.Vaddr && addr < m.Vaddr+m.Length
}

func (m *Mapping) overlaps(vaddr, length uint64) bool {
	end := vaddr + length
	return vaddr < m.Vaddr+m.Length && end > m.Vaddr
}

// Manager owns one task's mapped-range bookkeeping.
type Manager struct {
	mu           sync.Mutex
	mappings     []*Mapping
	nextAnonBase uint64
	pageinSem    *semaphore.Weighted
}

// NewManager returns an empty address space.
func NewManager() *Manager {
	return &Manager{
		nextAnonBase: defaultAnonymousBase,
		pageinSem:    semaphore.NewWeighted(maxConcurrentPageins),
	}
}

// FaultIn resolves one page fault against an object-backed mapping by
// calling fill, the backing object's actual page-read, gated behind the
// address space's page-in semaphore so at most maxConcurrentPageins
// faults are resolving concurrently. Blocks until a slot is free or ctx
// is canceled.
func (m *Manager) FaultIn(ctx context.Context, fill func() error) error {
	if err := m.pageinSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.pageinSem.Release(1)
	return fill()
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func isPageAligned(v uint64) bool {
	return v%pageSize == 0
}

// MemoryMap implements the memory_map syscall contract: anonymous
// mappings get page bookkeeping only; FIXED non-anonymous mappings first
// clear any overlap, then dispatch to the object; any other request
// dispatches to the object directly.
func (m *Manager) MemoryMap(obj MappableObject, vaddr, length uint64, prot, flags uint32, offset int64) (uint64, error) {
	if length == 0 {
		return 0, kerr.ErrInvalidOperation
	}
	length = alignUp(length, pageSize)

	m.mu.Lock()
	defer m.mu.Unlock()

	if flags&FlagAnonymous != 0 {
		actual := vaddr
		if actual == 0 || !isPageAligned(actual) {
			actual = m.nextAnonBase
			m.nextAnonBase += length
		} else if actual+length > m.nextAnonBase {
			m.nextAnonBase = actual + length
		}
		m.mappings = append(m.mappings, &Mapping{
			Vaddr: actual, Length: length, Prot: prot, Flags: flags, Anonymous: true,
		})
		return actual, nil
	}

	if flags&FlagFixed != 0 {
		if !isPageAligned(vaddr) {
			return 0, kerr.ErrInvalidOperation
		}
		m.removeOverlapLocked(vaddr, length)
		mapped, err := obj.Mmap(vaddr, length, prot, flags, offset)
		if err != nil {
			return 0, err
		}
		m.mappings = append(m.mappings, &Mapping{
			Vaddr: mapped, Length: length, Prot: prot, Flags: flags, Object: obj, Offset: offset,
		})
		return mapped, nil
	}

	mapped, err := obj.Mmap(vaddr, length, prot, flags, offset)
	if err != nil {
		return 0, err
	}
	m.mappings = append(m.mappings, &Mapping{
		Vaddr: mapped, Length: length, Prot: prot, Flags: flags, Object: obj, Offset: offset,
	})
	return mapped, nil
}

// MemoryUnmap implements memory_unmap: drop the containing mapping from
// the tracker. The owning object (if any) gets no close callback here by
// design — object-specific cleanup happens on handle close, not unmap.
func (m *Manager) MemoryUnmap(vaddr, length uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, mp := range m.mappings {
		if mp.contains(vaddr) {
			m.mappings = append(m.mappings[:i], m.mappings[i+1:]...)
			return nil
		}
	}
	return kerr.ErrNotFound
}

func (m *Manager) removeOverlapLocked(vaddr, length uint64) {
	kept := m.mappings[:0]
	for _, mp := range m.mappings {
		if mp.overlaps(vaddr, length) {
			continue
		}
		kept = append(kept, mp)
	}
	m.mappings = kept
}

// Mappings returns a snapshot of every currently tracked mapping.
func (m *Manager) Mappings() []*Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Mapping, len(m.mappings))
	copy(out, m.mappings)
	return out
}
