package object

import (
	"context"
	"os"
	"syscall"

	"github.com/containerd/fifo"
)

// ConsoleSink mirrors kernel console output to a host-visible named
// pipe, the same mechanism containerd's shims use to hand a container's
// stdio to an external log collector: a real mkfifo'd path an outside
// process can open and tail, independent of anything inside this
// kernel's own VFS.
type ConsoleSink struct {
	f *fifo.Fifo
}

// OpenConsoleSink creates (if needed) and opens path as a write-only
// named pipe. It blocks until a reader opens the other end, exactly like
// opening a real FIFO for writing, unless ctx is canceled first.
func OpenConsoleSink(ctx context.Context, path string) (*ConsoleSink, error) {
	f, err := fifo.OpenFifo(ctx, path, syscall.O_WRONLY|syscall.O_CREAT, os.FileMode(0620))
	if err != nil {
		return nil, err
	}
	return &ConsoleSink{f: f}, nil
}

// Write mirrors console output to the host pipe.
func (c *ConsoleSink) Write(p []byte) (int, error) {
	return c.f.Write(p)
}

// Close releases the underlying pipe.
func (c *ConsoleSink) Close() error {
	return c.f.Close()
}
