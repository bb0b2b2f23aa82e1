package tmpfs

import (
	"io"
	"sync"

	"github.com/scarletkernel/scarlet/kernel/vfs"
)

// fileHandle implements vfs.FileObject over an inode's byte buffer. Each
// Open call gets its own offset, matching per-handle position
// semantics.
type fileHandle struct {
	fs         *FS
	node       *vfs.VfsNode
	in         *inode
	appendOnly bool

	mu     sync.Mutex
	offset int64
}

var _ vfs.FileObject = (*fileHandle)(nil)

func (h *fileHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.readAt(p, h.offset)
	h.offset += int64(n)
	return n, err
}

func (h *fileHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendOnly {
		h.in.mu.Lock()
		h.offset = int64(len(h.in.data))
		h.in.mu.Unlock()
	}
	n, err := h.writeAt(p, h.offset)
	h.offset += int64(n)
	return n, err
}

func (h *fileHandle) Truncate(size int64) error {
	h.in.mu.Lock()
	defer h.in.mu.Unlock()
	switch {
	case size <= int64(len(h.in.data)):
		h.in.data = h.in.data[:size]
	default:
		grown := make([]byte, size)
		copy(grown, h.in.data)
		h.in.data = grown
	}
	h.in.modTime = h.fs.now()
	return nil
}

func (h *fileHandle) Stat() (vfs.Metadata, error) {
	h.in.mu.Lock()
	defer h.in.mu.Unlock()
	return metadataOf(h.in), nil
}

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.in.mu.Lock()
	size := int64(len(h.in.data))
	h.in.mu.Unlock()

	switch whence {
	case io.SeekStart:
		h.offset = offset
	case io.SeekCurrent:
		h.offset += offset
	case io.SeekEnd:
		h.offset = size + offset
	}
	return h.offset, nil
}

func (h *fileHandle) readAt(p []byte, off int64) (int, error) {
	h.in.mu.Lock()
	defer h.in.mu.Unlock()
	if off >= int64(len(h.in.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.in.data[off:])
	return n, nil
}

func (h *fileHandle) writeAt(p []byte, off int64) (int, error) {
	h.in.mu.Lock()
	defer h.in.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(h.in.data)) {
		grown := make([]byte, end)
		copy(grown, h.in.data)
		h.in.data = grown
	}
	n := copy(h.in.data[off:end], p)
	h.in.modTime = h.fs.now()
	return n, nil
}

func (h *fileHandle) Close() error {
	return nil
}
