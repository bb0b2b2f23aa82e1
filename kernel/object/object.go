// Package object implements Scarlet's kernel-object layer: the tagged
// union of kernel-managed resources a task can hold a handle to, and the
// capability interfaces those resources present. A File/Pipe tagged
// union presents its optional capabilities (streaming, mmap, locking)
// through type assertion rather than a closed interface hierarchy,
// mirroring how gVisor's FileDescription composes optional capabilities.
package object

import (
	"github.com/scarletkernel/scarlet/kernel/net"
	"github.com/scarletkernel/scarlet/kernel/vfs"
)

// StreamOps is the read/write capability every KernelObject variant
// presents.
type StreamOps interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// PipeOps is the capability a pipe endpoint presents beyond plain
// streaming: querying which end it is and whether the peer has hung up.
type PipeOps interface {
	StreamOps
	IsReadEnd() bool
	PeerClosed() bool
}

// CloneOps lets a KernelObject variant override default duplication
// (plain reference-sharing) with logic that needs to run on every dup,
// e.g. a pipe bumping its reader/writer counts.
type CloneOps interface {
	CustomClone() KernelObject
}

// MemoryMappingOps is the optional mmap capability, discovered by type
// assertion on the object actually held (mirrors vfs.MemoryMappingOps).
type MemoryMappingOps interface {
	SupportsMmap() bool
	Mmap(vaddr, length uint64, prot, flags uint32, offset int64) (uint64, error)
	Munmap(vaddr, length uint64) error
}

// ControlOps is the optional out-of-band control capability (advisory
// locks, ioctl-style control operations).
type ControlOps interface {
	Lock(exclusive bool) error
	Unlock() error
}

// Kind tags which variant a KernelObject holds.
type Kind int

const (
	// KindFile wraps an open vfs.OpenFile.
	KindFile Kind = iota
	// KindPipe wraps a PipeEndpoint.
	KindPipe
	// KindSocket wraps a net.Socket.
	KindSocket
)

// KernelObject is the tagged union of everything a Handle can name. Only
// one of File/Pipe/Socket is ever set, selected by Kind.
type KernelObject struct {
	Kind   Kind
	File   *vfs.OpenFile
	Pipe   *PipeEndpoint
	Socket *net.Socket
}

// FromFile wraps an open file as a KernelObject.
func FromFile(f *vfs.OpenFile) KernelObject {
	return KernelObject{Kind: KindFile, File: f}
}

// FromPipe wraps a pipe endpoint as a KernelObject.
func FromPipe(p *PipeEndpoint) KernelObject {
	return KernelObject{Kind: KindPipe, Pipe: p}
}

// FromSocket wraps a net.Socket as a KernelObject, giving a socket()
// syscall something to hand back a Handle for.
func FromSocket(s *net.Socket) KernelObject {
	return KernelObject{Kind: KindSocket, Socket: s}
}

// AsStream returns the StreamOps capability, present on every variant.
func (o KernelObject) AsStream() StreamOps {
	switch o.Kind {
	case KindFile:
		return o.File
	case KindPipe:
		return o.Pipe
	case KindSocket:
		return o.Socket
	default:
		return nil
	}
}

// AsPipe returns the PipeOps capability, present only for KindPipe.
func (o KernelObject) AsPipe() (PipeOps, bool) {
	if o.Kind != KindPipe {
		return nil, false
	}
	return o.Pipe, true
}

// AsMemoryMapping returns the MemoryMappingOps capability if the held
// object presents one.
func (o KernelObject) AsMemoryMapping() (MemoryMappingOps, bool) {
	if o.Kind != KindFile {
		return nil, false
	}
	mm, ok := o.File.FileObject.(vfsMemoryMappingOps)
	if !ok {
		return nil, false
	}
	return mm, true
}

// vfsMemoryMappingOps mirrors vfs.MemoryMappingOps so this package
// doesn't need to import it just to re-export the same method set.
type vfsMemoryMappingOps interface {
	SupportsMmap() bool
	Mmap(vaddr, length uint64, prot, flags uint32, offset int64) (uint64, error)
	Munmap(vaddr, length uint64) error
}

// AsControl returns the ControlOps capability if the held object presents
// one (e.g. a file backed by an advisory-lockable filesystem).
func (o KernelObject) AsControl() (ControlOps, bool) {
	if o.Kind != KindFile {
		return nil, false
	}
	c, ok := o.File.FileObject.(ControlOps)
	return c, ok
}

// Clone duplicates a KernelObject for dup-style handle sharing. Pipes use
// CloneOps to keep their reader/writer accounting correct; files share
// their FileObject directly since position and flags already live on the
// shared instance by design.
func (o KernelObject) Clone() KernelObject {
	if o.Kind == KindPipe {
		return o.Pipe.CustomClone()
	}
	return o
}

// Close releases the underlying resource.
func (o KernelObject) Close() error {
	switch o.Kind {
	case KindFile:
		err := o.File.FileObject.Close()
		o.File.Release()
		return err
	case KindPipe:
		return o.Pipe.Close()
	case KindSocket:
		return o.Socket.Close()
	default:
		return nil
	}
}
