package vm_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/kernel/vm"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

type fakeObject struct {
	mapAt    uint64
	mmapErr  error
	unmapErr error
}

func (f *fakeObject) Mmap(vaddr, length uint64, prot, flags uint32, offset int64) (uint64, error) {
	if f.mmapErr != nil {
		return 0, f.mmapErr
	}
	if f.mapAt != 0 {
		return f.mapAt, nil
	}
	return vaddr, nil
}

func (f *fakeObject) Munmap(vaddr, length uint64) error {
	return f.unmapErr
}

func TestAnonymousMappingsGetDistinctMonotonicAddresses(t *testing.T) {
	m := vm.NewManager()

	a1, err := m.MemoryMap(nil, 0, 4096, vm.ProtRead|vm.ProtWrite, vm.FlagAnonymous, 0)
	assert.NilError(t, err)
	a2, err := m.MemoryMap(nil, 0, 8192, vm.ProtRead, vm.FlagAnonymous, 0)
	assert.NilError(t, err)

	assert.Assert(t, a2 >= a1+4096)
	assert.Equal(t, len(m.Mappings()), 2)
}

func TestMemoryMapRejectsZeroLength(t *testing.T) {
	m := vm.NewManager()
	_, err := m.MemoryMap(nil, 0, 0, vm.ProtRead, vm.FlagAnonymous, 0)
	assert.ErrorIs(t, err, kerr.ErrInvalidOperation)
}

func TestFixedMappingClearsOverlapBeforeDispatch(t *testing.T) {
	m := vm.NewManager()
	obj := &fakeObject{}

	_, err := m.MemoryMap(obj, 0x1000, 4096, vm.ProtRead, 0, 0)
	assert.NilError(t, err)
	assert.Equal(t, len(m.Mappings()), 1)

	_, err = m.MemoryMap(obj, 0x1000, 4096, vm.ProtRead|vm.ProtWrite, vm.FlagFixed, 0)
	assert.NilError(t, err)

	mappings := m.Mappings()
	assert.Equal(t, len(mappings), 1)
	assert.Equal(t, mappings[0].Prot, uint32(vm.ProtRead|vm.ProtWrite))
}

func TestFixedMappingRejectsUnalignedAddress(t *testing.T) {
	m := vm.NewManager()
	_, err := m.MemoryMap(&fakeObject{}, 1, 4096, vm.ProtRead, vm.FlagFixed, 0)
	assert.ErrorIs(t, err, kerr.ErrInvalidOperation)
}

func TestMemoryUnmapRemovesMappingWithoutClosingObject(t *testing.T) {
	m := vm.NewManager()
	obj := &fakeObject{unmapErr: kerr.ErrInvalidOperation}

	vaddr, err := m.MemoryMap(obj, 0x2000, 4096, vm.ProtRead, 0, 0)
	assert.NilError(t, err)

	// obj.unmapErr would surface here if MemoryUnmap still called
	// Object.Munmap; the owning object gets no close callback on unmap,
	// only on handle close.
	assert.NilError(t, m.MemoryUnmap(vaddr, 4096))
	assert.Equal(t, len(m.Mappings()), 0)
}

func TestMemoryUnmapOfUnmappedAddressFails(t *testing.T) {
	m := vm.NewManager()
	err := m.MemoryUnmap(0xdead0000, 4096)
	assert.ErrorIs(t, err, kerr.ErrNotFound)
}

func TestFaultInBoundsConcurrentFills(t *testing.T) {
	m := vm.NewManager()

	var inFlight int32
	var maxSeen int32
	release := make(chan struct{})

	fill := func() error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	const attempts = 8
	done := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			done <- m.FaultIn(context.Background(), fill)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	for i := 0; i < attempts; i++ {
		assert.NilError(t, <-done)
	}
	assert.Assert(t, atomic.LoadInt32(&maxSeen) <= attempts)
}
