package net

// Loopback is the default protocol registered on every Pipeline: it
// delivers every packet regardless of Dst, standing in for a real
// device-backed protocol (ARP, IP) that would otherwise decide whether a
// packet is addressed to this host. There is exactly one reachable peer,
// this host, so addressing is moot.
type Loopback struct{}

// NewLoopback returns the loopback protocol.
func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) Name() string { return "loopback" }

func (l *Loopback) Handle(pkt *Packet) (Result, error) {
	return Result{Verdict: Deliver}, nil
}

// NewLoopbackPipeline returns a Pipeline with Loopback registered for
// both directions and set as the default entry stage, ready for a socket
// KernelObject to send/receive through without any further setup.
func NewLoopbackPipeline() *Pipeline {
	p := NewPipeline()
	lo := NewLoopback()
	p.RegisterRx(lo)
	p.RegisterTx(lo)
	p.SetDefaultEntry(Incoming, lo.Name())
	p.SetDefaultEntry(Outgoing, lo.Name())
	return p
}
