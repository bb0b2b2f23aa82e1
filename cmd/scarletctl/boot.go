package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/scarletkernel/scarlet/boot"
	"github.com/scarletkernel/scarlet/boot/config"
	"github.com/scarletkernel/scarlet/boot/cpio"
	"github.com/scarletkernel/scarlet/kernel/sched"
	"github.com/scarletkernel/scarlet/kernel/vfs"
	"github.com/scarletkernel/scarlet/kernel/vfs/tmpfs"
	"github.com/scarletkernel/scarlet/pkg/log"
)

// bootCmd implements subcommands.Command for the "boot" command: load
// config, validate the host, unpack the initramfs, and run the
// scheduler until interrupted.
type bootCmd struct {
	configPath string
	duration   time.Duration
}

func (*bootCmd) Name() string     { return "boot" }
func (*bootCmd) Synopsis() string { return "boot a kernel instance from a config file" }
func (*bootCmd) Usage() string {
	return "boot -config <path> - load config, unpack initramfs, run the scheduler\n"
}

func (c *bootCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML boot config file")
	f.DurationVar(&c.duration, "duration", 0, "run for this long then exit (0 runs until interrupted)")
}

func (c *bootCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		log.Errorf("load config: %v", err)
		return subcommands.ExitFailure
	}

	if err := boot.PreflightChecks(cfg); err != nil {
		log.Errorf("preflight checks failed: %v", err)
		return subcommands.ExitFailure
	}

	lock, err := boot.AcquireDataDirLock(cfg.DataDir)
	if err != nil {
		log.Errorf("%v", err)
		return subcommands.ExitFailure
	}
	defer lock.Release()

	rootFS := tmpfs.New("root")
	vfsMgr := vfs.NewVfsManager(rootFS)

	seq := boot.Sequence{
		{Name: "extract initramfs", Run: func() error {
			return cpio.Extract(ctx, cfg.InitramfsPath, vfsMgr)
		}},
	}
	if err := seq.Run(); err != nil {
		log.Errorf("boot sequence failed: %v", err)
		return subcommands.ExitFailure
	}

	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	mgr := sched.NewManager(cfg.NumCPUs)
	log.Infof("scarlet: booted %d cpu(s), default abi %q", cfg.NumCPUs, cfg.DefaultAbi)

	runCtx := ctx
	var cancel context.CancelFunc
	if c.duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.duration)
		defer cancel()
	}

	if err := mgr.Run(runCtx, mgr.Schedule); err != nil {
		log.Errorf("scheduler exited: %v", err)
		return subcommands.ExitFailure
	}

	fmt.Println("scarlet: shutdown complete")
	return subcommands.ExitSuccess
}
