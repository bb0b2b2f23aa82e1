package net

import (
	"sync"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// Socket is the minimal datagram endpoint an ABI's socket()/bind()/
// sendto()/recvfrom() syscalls operate on: a local address and an inbox
// fed by a Pipeline's Deliver verdict. There is no real device queue
// behind it, only the loopback pipeline.
type Socket struct {
	pipeline *Pipeline

	mu       sync.Mutex
	bound    bool
	localAddr string
	inbox    []*Packet
	notEmpty *sync.Cond
	closed   bool
}

// NewSocket creates an unbound socket driven by pipeline.
func NewSocket(pipeline *Pipeline) *Socket {
	s := &Socket{pipeline: pipeline}
	s.notEmpty = sync.NewCond(&s.mu)
	return s
}

// Bind assigns addr as this socket's local address; a socket must be
// bound before SendTo can fill in a source address on outgoing packets.
func (s *Socket) Bind(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return kerr.ErrAlreadyExists
	}
	s.localAddr = addr
	s.bound = true
	return nil
}

// SendTo pushes payload addressed to dst through the pipeline's outgoing
// path; a Deliver verdict (the only reachable one on a loopback pipeline)
// appends it directly to this same socket's inbox, modeling a
// send-to-self round trip.
func (s *Socket) SendTo(dst string, payload []byte) error {
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		return kerr.ErrInvalidOperation
	}
	src := s.localAddr
	s.mu.Unlock()

	pkt := &Packet{Direction: Outgoing, Src: src, Dst: dst, Payload: payload}
	verdict, err := s.pipeline.Process(pkt, "")
	if err != nil {
		return err
	}
	if verdict == Deliver {
		s.deliver(pkt)
	}
	return nil
}

// deliver appends pkt to the inbox and wakes a blocked RecvFrom.
func (s *Socket) deliver(pkt *Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, pkt)
	s.notEmpty.Signal()
}

// RecvFrom blocks until a packet is available or the socket is closed,
// returning the payload and the packet's source address.
func (s *Socket) RecvFrom() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.inbox) == 0 && !s.closed {
		s.notEmpty.Wait()
	}
	if len(s.inbox) == 0 {
		return nil, "", kerr.ErrBrokenPipe
	}
	pkt := s.inbox[0]
	s.inbox = s.inbox[1:]
	return pkt.Payload, pkt.Src, nil
}

// Close unblocks any pending RecvFrom with ErrBrokenPipe.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.notEmpty.Broadcast()
	return nil
}

// Read satisfies kernel/object's StreamOps so a Socket can back a
// KernelObject: it receives one packet's payload from the bound peer (the
// socket's own local address, on a loopback pipeline) and copies as much
// as fits into p.
func (s *Socket) Read(p []byte) (int, error) {
	payload, _, err := s.RecvFrom()
	if err != nil {
		return 0, err
	}
	return copy(p, payload), nil
}

// Write satisfies kernel/object's StreamOps: it sends to this socket's
// own bound address, since a loopback pipeline has no other reachable
// peer to default to.
func (s *Socket) Write(p []byte) (int, error) {
	s.mu.Lock()
	dst := s.localAddr
	s.mu.Unlock()
	if err := s.SendTo(dst, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
