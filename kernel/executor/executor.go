// Package executor implements the transparent executor: the execve-style
// entry point that lets a task switch, on a single call, both its loaded
// binary and the ABI contract it runs under. The five-step sequence below
// is grounded on runsc/boot/loader.go's process-start sequence (open the
// binary, pick a platform/loader, map segments, rewrite the entry point)
// and on pkg/sentry/state/state.go's checkpoint/restore discipline for
// the snapshot-before-mutate, restore-on-failure guarantee.
package executor

import (
	"context"
	"fmt"

	"github.com/scarletkernel/scarlet/kernel/abi"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/pkg/kerr"
	"github.com/scarletkernel/scarlet/pkg/log"
)

// systemRoot and configRoot are where an ABI's environment trees live in
// the base namespace, keyed by ABI name: /system/<abi>, /data/config/<abi>.
func systemRoot(abiName string) string { return "/system/" + abiName }
func configRoot(abiName string) string { return "/data/config/" + abiName }

// Execute implements execute_binary(path, argv, envp, task, trapframe).
// explicitAbi, if non-empty, bypasses detect_best_abi and forces that ABI
// by name (returning UnsupportedAbi if it isn't registered).
func Execute(ctx context.Context, t *sched.Task, path string, argv, envp []string, explicitAbi string) (err error) {
	// Step 1: snapshot state a failed execve must be able to restore.
	// buildEnvironment (step 3) may overwrite t.Vfs/t.Cwd before a later
	// step fails, so the snapshot covers them too; on success the pinned
	// Cwd reference Snapshot took is no longer needed and must be dropped.
	snap := t.Snapshot()
	defer func() {
		if err != nil {
			t.Restore(snap)
		} else {
			snap.ReleaseCwd()
		}
	}()

	// Step 2: open path read-only through the task's current namespace and
	// sniff (or force) the ABI.
	file, openErr := t.Vfs.Open(ctx, path, t.Cwd, vfs.OpenFlags{Read: true})
	if openErr != nil {
		return kerr.ExecutionFailed("open " + path + ": " + openErr.Error())
	}
	defer file.Release()

	currentAbiName := ""
	if t.Abi != nil {
		currentAbiName = t.Abi.Name()
	}

	var newAbi sched.AbiModule
	if explicitAbi != "" {
		mod, abiErr := abi.New(explicitAbi)
		if abiErr != nil {
			return abiErr
		}
		newAbi = mod
	} else {
		mod, detectErr := abi.DetectBestAbi(file.FileObject, path, currentAbiName)
		if detectErr != nil {
			return detectErr
		}
		newAbi = mod
	}

	// Step 3: if the ABI is changing, build the new environment.
	if t.Abi == nil || newAbi.Name() != t.Abi.Name() {
		if err := buildEnvironment(ctx, t, newAbi); err != nil {
			return err
		}
	}

	// Step 4: the new ABI loads the binary and rewrites the trap frame.
	if err := newAbi.ExecuteBinary(file.FileObject, argv, envp, t, t.Trapframe); err != nil {
		return err
	}

	// Step 5: commit.
	t.Abi = newAbi
	return nil
}

// buildEnvironment performs execute_binary step 3: a clean VFS overlaying
// the new ABI's system/config trees from the base namespace, cwd reset to
// the ABI's default, and existing handles handed to the ABI to translate
// or discard.
func buildEnvironment(ctx context.Context, t *sched.Task, newAbi sched.AbiModule) error {
	sysPath := systemRoot(newAbi.Name())
	cfgPath := configRoot(newAbi.Name())

	sysEntry, err := t.BaseVfs.PathWalk(ctx, sysPath, nil)
	if err != nil {
		return kerr.ExecutionFailed(fmt.Sprintf("please prepare ABI environment first: %s", sysPath))
	}
	sysEntry.DecRef()
	cfgEntry, err := t.BaseVfs.PathWalk(ctx, cfgPath, nil)
	if err != nil {
		return kerr.ExecutionFailed(fmt.Sprintf("please prepare ABI environment first: %s", cfgPath))
	}
	cfgEntry.DecRef()

	baseRoot := t.BaseVfs.Root()
	cleanVfs := vfs.NewVfsManager(baseRoot.Node().FS)
	baseRoot.DecRef()

	if err := newAbi.SetupOverlayEnvironment(cleanVfs, t.BaseVfs, sysPath, cfgPath); err != nil {
		return err
	}
	// Step 3e: shared-resource wiring failure is fatal, by design, unlike
	// an overlay-environment failure which the caller may choose to
	// tolerate in a future ABI (none currently do).
	if err := newAbi.SetupSharedResources(cleanVfs, t.BaseVfs); err != nil {
		return kerr.ExecutionFailed("setup shared resources: " + err.Error())
	}

	t.Vfs = cleanVfs

	root, err := t.Vfs.PathWalk(ctx, newAbi.DefaultCwd(), nil)
	if err != nil {
		return kerr.ExecutionFailed("resolve default cwd: " + err.Error())
	}
	if t.Cwd != nil {
		t.Cwd.DecRef()
	}
	t.Cwd = root

	if err := newAbi.InitializeFromExistingHandles(t); err != nil {
		log.Warningf("initialize_from_existing_handles for abi %s: %v", newAbi.Name(), err)
		return kerr.ExecutionFailed("initialize handles: " + err.Error())
	}
	return nil
}
