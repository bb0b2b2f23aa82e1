package vfs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// RetryCrossNamespaceBind calls CrossNamespaceBind repeatedly with a
// constant backoff while it fails with ErrBusy: the target path is a
// mount point only for the instant a concurrent mount/unmount on it is
// in flight, so a transient busy here is expected to clear on its own
// shortly, the same way a sandbox's teardown path retries a
// still-running check rather than failing on the first observation.
func RetryCrossNamespaceBind(ctx context.Context, m *VfsManager, sourceMgr *VfsManager, sourcePath, targetPath string, cwd *Entry) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(10*time.Millisecond), ctx)
	op := func() error {
		err := m.CrossNamespaceBind(ctx, sourceMgr, sourcePath, targetPath, cwd)
		if err == nil || err == kerr.ErrBusy {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, b); err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return perm.Err
		}
		return err
	}
	return nil
}
