// Package abi implements the ABI registry: the name-keyed factory table
// an AbiModule registers itself into, and the scoring dispatch the
// transparent executor uses to pick which ABI understands a given
// binary. Each backend package registers itself from its own init()
// rather than the registry switching on a hardcoded type list.
package abi

import (
	"sort"
	"sync"

	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// DefaultConfidenceThreshold is the minimum can_execute_binary score
// detect_best_abi requires before selecting a module.
const DefaultConfidenceThreshold = 30

// Factory constructs a fresh AbiModule instance.
type Factory func() sched.AbiModule

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
)

// Register installs a factory under name. Concrete ABI packages call this
// from an init() func rather than the registry switching on a hardcoded
// type list.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// registeredNames returns every registered ABI name, sorted for
// deterministic tie-breaking.
func registeredNames() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisteredNames returns every registered ABI name, sorted, for callers
// outside the package (e.g. boot-time preflight validation of a
// configured default ABI).
func RegisteredNames() []string {
	return registeredNames()
}

// New constructs a fresh instance of the named ABI.
func New(name string) (sched.AbiModule, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, kerr.UnsupportedAbi(name)
	}
	return f(), nil
}

// DetectBestAbi scores every registered ABI's CanExecuteBinary against
// file/path and returns the highest-scoring module whose score is at
// least DefaultConfidenceThreshold, ties broken by name (ascending).
func DetectBestAbi(file vfs.FileObject, path string, currentAbi string) (sched.AbiModule, error) {
	names := registeredNames()

	// names is already sorted ascending, so a strict ">" update naturally
	// keeps the lowest-named winner on a tie: later equal scores never
	// displace it.
	var best sched.AbiModule
	bestScore := -1
	for _, name := range names {
		mod, err := New(name)
		if err != nil {
			continue
		}
		score, ok := mod.CanExecuteBinary(file, path, currentAbi)
		if !ok {
			continue
		}
		if score > bestScore {
			best = mod
			bestScore = score
		}
	}
	if best == nil || bestScore < DefaultConfidenceThreshold {
		return nil, kerr.ErrUnknownBinaryFormat
	}
	return best, nil
}
