// Package net implements Scarlet's stubbed packet pipeline: a chain of
// named Protocol handlers a Packet moves through, stage by stage, until
// one of them claims delivery or drops it — a stage map plus a default
// entry per direction, trimmed to what's needed for a loopback-only
// socket KernelObject to exist, not a real device-backed network stack.
package net

import (
	"github.com/scarletkernel/scarlet/pkg/kerr"
	"github.com/scarletkernel/scarlet/pkg/log"
)

// Direction classifies which way a Packet is traveling through the
// pipeline.
type Direction int

const (
	// Incoming is device -> application.
	Incoming Direction = iota
	// Outgoing is application -> device.
	Outgoing
)

// Packet is the unit the pipeline moves: a byte payload plus enough
// addressing metadata for a loopback-style protocol to decide where it
// goes next.
type Packet struct {
	Direction Direction
	Src       string
	Dst       string
	Payload   []byte
}

// Verdict is what a Protocol decides to do with a Packet it just handled.
type Verdict int

const (
	// JumpTo moves the packet to another named stage.
	JumpTo Verdict = iota
	// Deliver hands the packet to the application layer (a socket
	// KernelObject's receive queue).
	Deliver
	// Dropped ends processing; the packet is discarded.
	Dropped
)

// Result is the outcome of one Protocol.Handle call.
type Result struct {
	Verdict  Verdict
	NextStage string
}

// Protocol is one pipeline stage's handler for one direction. A stage may
// register a different Protocol for rx and tx.
type Protocol interface {
	Name() string
	Handle(pkt *Packet) (Result, error)
}

type stage struct {
	rx Protocol
	tx Protocol
}

// Pipeline chains named stages; Process walks a packet through them
// starting from entryStage (or the pipeline's default entry for the
// packet's direction) until a stage returns Deliver or Dropped.
type Pipeline struct {
	stages          map[string]*stage
	defaultRxEntry  string
	defaultTxEntry  string
}

// NewPipeline returns an empty pipeline; use RegisterRx/RegisterTx to
// populate stages before calling Process.
func NewPipeline() *Pipeline {
	return &Pipeline{stages: make(map[string]*stage)}
}

func (p *Pipeline) ensureStage(name string) *stage {
	s, ok := p.stages[name]
	if !ok {
		s = &stage{}
		p.stages[name] = s
	}
	return s
}

// RegisterRx installs proto as the incoming-direction handler for its own
// named stage.
func (p *Pipeline) RegisterRx(proto Protocol) {
	p.ensureStage(proto.Name()).rx = proto
}

// RegisterTx installs proto as the outgoing-direction handler for its own
// named stage.
func (p *Pipeline) RegisterTx(proto Protocol) {
	p.ensureStage(proto.Name()).tx = proto
}

// SetDefaultEntry sets which stage Process starts at when the caller
// doesn't name one explicitly, per direction.
func (p *Pipeline) SetDefaultEntry(dir Direction, stageName string) {
	if dir == Incoming {
		p.defaultRxEntry = stageName
	} else {
		p.defaultTxEntry = stageName
	}
}

// Process walks pkt through the pipeline starting at entryStage (or the
// configured default for pkt.Direction if entryStage is empty), following
// JumpTo verdicts until Deliver or Dropped.
func (p *Pipeline) Process(pkt *Packet, entryStage string) (Verdict, error) {
	current := entryStage
	if current == "" {
		if pkt.Direction == Incoming {
			current = p.defaultRxEntry
		} else {
			current = p.defaultTxEntry
		}
	}
	if current == "" {
		return Dropped, kerr.ErrInvalidOperation
	}

	for {
		s, ok := p.stages[current]
		if !ok {
			return Dropped, kerr.ErrNotFound
		}
		var proto Protocol
		if pkt.Direction == Incoming {
			proto = s.rx
		} else {
			proto = s.tx
		}
		if proto == nil {
			return Dropped, kerr.ErrNotSupported
		}
		result, err := proto.Handle(pkt)
		if err != nil {
			return Dropped, err
		}
		switch result.Verdict {
		case JumpTo:
			log.Debugf("net: packet jumps %s -> %s", current, result.NextStage)
			current = result.NextStage
		case Deliver, Dropped:
			return result.Verdict, nil
		}
	}
}
