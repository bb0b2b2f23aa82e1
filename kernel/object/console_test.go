package object_test

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/containerd/fifo"

	"github.com/scarletkernel/scarlet/kernel/object"
)

func TestConsoleSinkWritesReachHostReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.pipe")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	readerReady := make(chan struct{})
	readDone := make(chan string, 1)
	go func() {
		r, err := fifo.OpenFifo(ctx, path, syscall.O_RDONLY|syscall.O_CREAT, os.FileMode(0620))
		if err != nil {
			readDone <- "open error: " + err.Error()
			return
		}
		defer r.Close()
		close(readerReady)
		buf := make([]byte, 64)
		n, err := r.Read(buf)
		if err != nil {
			readDone <- "read error: " + err.Error()
			return
		}
		readDone <- string(buf[:n])
	}()

	<-readerReady
	sink, err := object.OpenConsoleSink(ctx, path)
	if err != nil {
		t.Fatalf("OpenConsoleSink: %v", err)
	}
	defer sink.Close()

	if _, err := sink.Write([]byte("booting")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-readDone:
		if got != "booting" {
			t.Fatalf("got %q, want %q", got, "booting")
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for reader")
	}
}
