package object_test

import (
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/kernel/object"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

func TestPipeWriteThenRead(t *testing.T) {
	r, w := object.NewPipe()
	defer r.Close()
	defer w.Close()

	_, err := w.Write([]byte("hello"))
	assert.NilError(t, err)

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	assert.NilError(t, err)
	assert.Equal(t, string(buf[:n]), "hello")
}

func TestPipeReadBlocksUntilWrite(t *testing.T) {
	r, w := object.NewPipe()
	defer r.Close()
	defer w.Close()

	result := make(chan string, 1)
	go func() {
		buf := make([]byte, 8)
		n, err := r.Read(buf)
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- string(buf[:n])
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := w.Write([]byte("later"))
	assert.NilError(t, err)

	select {
	case got := <-result:
		assert.Equal(t, got, "later")
	case <-time.After(2 * time.Second):
		t.Fatal("read never unblocked after write")
	}
}

func TestPipeReadReturnsEOFAfterWriterCloses(t *testing.T) {
	r, w := object.NewPipe()
	defer r.Close()

	assert.NilError(t, w.Close())

	buf := make([]byte, 4)
	_, err := r.Read(buf)
	assert.ErrorIs(t, err, kerr.ErrEOF)
}

func TestPipeWriteReturnsBrokenPipeAfterReaderCloses(t *testing.T) {
	r, w := object.NewPipe()
	defer w.Close()

	assert.NilError(t, r.Close())

	_, err := w.Write([]byte("x"))
	assert.ErrorIs(t, err, kerr.ErrBrokenPipe)
}

func TestPipeReadContextCancellation(t *testing.T) {
	r, w := object.NewPipe()
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	buf := make([]byte, 4)
	_, err := r.ReadContext(ctx, buf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeEndsRejectWrongDirectionCalls(t *testing.T) {
	r, w := object.NewPipe()
	defer r.Close()
	defer w.Close()

	_, err := r.Write([]byte("x"))
	assert.ErrorIs(t, err, kerr.ErrInvalidOperation)

	_, err = w.Read(make([]byte, 1))
	assert.ErrorIs(t, err, kerr.ErrInvalidOperation)
}
