package boot

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/scarletkernel/scarlet/boot/config"
	"github.com/scarletkernel/scarlet/kernel/abi"
	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// InitFunc is one named step of the boot sequence.
type InitFunc struct {
	Name string
	Run  func() error
}

// Sequence is an ordered list of boot steps, run one after another; each
// step can depend on the ones before it having already run, so the
// first failure stops the sequence rather than continuing past a
// half-initialized kernel.
type Sequence []InitFunc

// Run executes every step in order, stopping and returning on the first
// failure.
func (s Sequence) Run() error {
	for _, step := range s {
		if err := step.Run(); err != nil {
			return kerr.ExecutionFailed(step.Name + ": " + err.Error())
		}
	}
	return nil
}

// PreflightChecks validates cfg against the host before any init step
// runs. Unlike Sequence, these checks are independent of each other, so
// every one runs and every failure is reported together via
// hashicorp/go-multierror rather than stopping at the first: an operator
// fixing a bad config would rather see every problem in one pass than
// re-run boot once per mistake.
func PreflightChecks(cfg config.Config) error {
	var result *multierror.Error

	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if cfg.InitramfsPath != "" {
		if _, err := os.Stat(cfg.InitramfsPath); err != nil {
			result = multierror.Append(result, kerr.ExecutionFailed("initramfs_path: "+err.Error()))
		}
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		result = multierror.Append(result, kerr.ExecutionFailed("data_dir: "+err.Error()))
	}
	if _, ok := abiRegisteredNames()[cfg.DefaultAbi]; cfg.DefaultAbi != "" && !ok {
		result = multierror.Append(result, kerr.ExecutionFailed(fmt.Sprintf("default_abi %q is not registered", cfg.DefaultAbi)))
	}

	return result.ErrorOrNil()
}

func abiRegisteredNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, n := range abi.RegisteredNames() {
		names[n] = struct{}{}
	}
	return names
}
