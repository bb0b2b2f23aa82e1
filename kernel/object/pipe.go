package object

import (
	"context"
	"sync"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// pipeBuffer is the shared ring buffer backing one pipe; both endpoints
// hold a pointer to the same instance.
type pipeBuffer struct {
	mu         sync.Mutex
	notEmpty   *sync.Cond
	notFull    *sync.Cond
	data       []byte
	capacity   int
	readers    int
	writers    int
}

const defaultPipeCapacity = 64 * 1024

// NewPipe constructs a connected read/write endpoint pair, grounded on
// containerd/fifo's context-aware open/blocked-reader-wakeup discipline:
// a read against an empty, still-open-for-write pipe blocks until data
// arrives, a peer close, or ctx cancellation, rather than returning EOF
// immediately.
func NewPipe() (read, write *PipeEndpoint) {
	buf := &pipeBuffer{capacity: defaultPipeCapacity, readers: 1, writers: 1}
	buf.notEmpty = sync.NewCond(&buf.mu)
	buf.notFull = sync.NewCond(&buf.mu)
	return &PipeEndpoint{buf: buf, readEnd: true}, &PipeEndpoint{buf: buf, readEnd: false}
}

// PipeEndpoint is one end (read or write) of an in-kernel pipe.
type PipeEndpoint struct {
	buf     *pipeBuffer
	readEnd bool

	mu     sync.Mutex
	closed bool
}

// IsReadEnd implements PipeOps.
func (p *PipeEndpoint) IsReadEnd() bool { return p.readEnd }

// PeerClosed implements PipeOps: true once every endpoint of the other
// end has closed, whether or not buffered bytes remain.
func (p *PipeEndpoint) PeerClosed() bool {
	b := p.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.readEnd {
		return b.writers == 0
	}
	return b.readers == 0
}

// Read implements StreamOps. Blocks while the buffer is empty and a
// writer remains open; returns (0, io.EOF)-equivalent via kerr.ErrEOF once
// all writers have closed and the buffer has drained.
func (p *PipeEndpoint) Read(out []byte) (int, error) {
	if !p.readEnd {
		return 0, kerr.ErrInvalidOperation
	}
	b := p.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 {
		if b.writers == 0 {
			return 0, kerr.ErrEOF
		}
		b.notEmpty.Wait()
	}
	n := copy(out, b.data)
	b.data = b.data[n:]
	b.notFull.Signal()
	return n, nil
}

// ReadContext is Read with cancellation: it polls the condition variable
// on a background goroutine so ctx.Done() can interrupt a blocked read,
// mirroring how containerd/fifo wraps a blocking open/read in a
// context-aware wrapper.
func (p *PipeEndpoint) ReadContext(ctx context.Context, out []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := p.Read(out)
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		return r.n, r.err
	case <-ctx.Done():
		// The spawned Read goroutine may still be blocked on notEmpty; wake
		// every waiter so it can observe closure and return, then let it
		// exit in the background. Its result is discarded: correctness, not
		// just expediency, since out may no longer be valid to the caller.
		b := p.buf
		b.mu.Lock()
		b.notEmpty.Broadcast()
		b.mu.Unlock()
		return 0, ctx.Err()
	}
}

// Write implements StreamOps. Blocks while the buffer is full and a
// reader remains open.
func (p *PipeEndpoint) Write(in []byte) (int, error) {
	if p.readEnd {
		return 0, kerr.ErrInvalidOperation
	}
	b := p.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readers == 0 {
		return 0, kerr.ErrBrokenPipe
	}
	written := 0
	for written < len(in) {
		for len(b.data) >= b.capacity {
			if b.readers == 0 {
				return written, kerr.ErrBrokenPipe
			}
			b.notFull.Wait()
		}
		room := b.capacity - len(b.data)
		n := len(in) - written
		if n > room {
			n = room
		}
		b.data = append(b.data, in[written:written+n]...)
		written += n
		b.notEmpty.Signal()
	}
	return written, nil
}

// Close implements io.Closer, decrementing this end's reference on the
// shared buffer and waking the peer so a blocked Read/Write observes the
// closure.
func (p *PipeEndpoint) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	b := p.buf
	b.mu.Lock()
	if p.readEnd {
		b.readers--
	} else {
		b.writers--
	}
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
	b.mu.Unlock()
	return nil
}

// CustomClone implements CloneOps: duplicating a pipe endpoint shares the
// same underlying buffer but bumps its end's reference count, so Close
// only tears the connection down once every dup has closed.
func (p *PipeEndpoint) CustomClone() KernelObject {
	b := p.buf
	b.mu.Lock()
	if p.readEnd {
		b.readers++
	} else {
		b.writers++
	}
	b.mu.Unlock()
	return FromPipe(&PipeEndpoint{buf: b, readEnd: p.readEnd})
}

var _ PipeOps = (*PipeEndpoint)(nil)
var _ CloneOps = (*PipeEndpoint)(nil)
