package net_test

import (
	"testing"
	"time"

	"github.com/scarletkernel/scarlet/kernel/net"
)

func TestLoopbackPipelineDeliversOutgoingPacket(t *testing.T) {
	p := net.NewLoopbackPipeline()
	verdict, err := p.Process(&net.Packet{Direction: net.Outgoing, Dst: "self", Payload: []byte("hi")}, "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if verdict != net.Deliver {
		t.Fatalf("expected Deliver, got %v", verdict)
	}
}

func TestSocketSendToSelfRoundTrips(t *testing.T) {
	s := net.NewSocket(net.NewLoopbackPipeline())
	if err := s.Bind("127.0.0.1:9000"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.SendTo("127.0.0.1:9000", []byte("payload")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	got, from, err := s.RecvFrom()
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}
	if from != "127.0.0.1:9000" {
		t.Fatalf("got source %q, want %q", from, "127.0.0.1:9000")
	}
}

func TestSocketRecvFromBlocksUntilSend(t *testing.T) {
	s := net.NewSocket(net.NewLoopbackPipeline())
	if err := s.Bind("a"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.RecvFrom()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.SendTo("a", []byte("x")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RecvFrom: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RecvFrom did not unblock after SendTo")
	}
}

func TestSocketBindTwiceFails(t *testing.T) {
	s := net.NewSocket(net.NewLoopbackPipeline())
	if err := s.Bind("a"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.Bind("b"); err == nil {
		t.Fatalf("expected second Bind to fail")
	}
}

func TestSocketCloseUnblocksRecvFrom(t *testing.T) {
	s := net.NewSocket(net.NewLoopbackPipeline())
	if err := s.Bind("a"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.RecvFrom()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected RecvFrom to report an error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RecvFrom did not unblock after Close")
	}
}
