// Package boot sequences kernel startup: preflight checks of the boot
// config, acquiring the data-directory lock, and running init steps in
// order. Starting the scheduler is left to the caller.
package boot

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// DataDirLock guards a data directory against concurrent boot by a
// second kernel instance, the same role runsc's own sandbox lock file
// plays for a container's bundle directory: an advisory, host-visible
// lock rather than anything enforced inside the kernel itself.
type DataDirLock struct {
	fl *flock.Flock
}

// AcquireDataDirLock takes an exclusive, non-blocking lock on
// <dataDir>/.lock. It fails fast rather than waiting, since a second
// instance racing for the same data directory is a configuration error,
// not a transient condition worth retrying.
func AcquireDataDirLock(dataDir string) (*DataDirLock, error) {
	fl := flock.New(filepath.Join(dataDir, ".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, kerr.ExecutionFailed("acquire data dir lock: " + err.Error())
	}
	if !locked {
		return nil, kerr.ExecutionFailed("data dir " + dataDir + " is locked by another instance")
	}
	return &DataDirLock{fl: fl}, nil
}

// Release drops the lock.
func (l *DataDirLock) Release() error {
	return l.fl.Unlock()
}
