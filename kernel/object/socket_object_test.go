package object_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/kernel/net"
	"github.com/scarletkernel/scarlet/kernel/object"
)

func TestInsertInfersSocketMetadata(t *testing.T) {
	table := object.NewHandleTable()
	s := net.NewSocket(net.NewLoopbackPipeline())

	h, err := table.Insert(object.FromSocket(s))
	assert.NilError(t, err)

	md, err := table.GetMetadata(h)
	assert.NilError(t, err)
	assert.Equal(t, md.Type, object.HandleTypeSocket)
}

func TestSocketKernelObjectStreamsThroughAsStream(t *testing.T) {
	s := net.NewSocket(net.NewLoopbackPipeline())
	assert.NilError(t, s.Bind("addr"))

	obj := object.FromSocket(s)
	stream := obj.AsStream()
	if stream == nil {
		t.Fatalf("expected socket to present StreamOps")
	}
	n, err := stream.Write([]byte("hello"))
	assert.NilError(t, err)
	assert.Equal(t, n, 5)

	buf := make([]byte, 16)
	n, err = stream.Read(buf)
	assert.NilError(t, err)
	assert.Equal(t, string(buf[:n]), "hello")
}
