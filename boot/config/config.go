// Package config loads Scarlet's boot configuration: a TOML file on disk
// layered over built-in defaults. No command-line flag overrides a
// config field.
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

// Config is everything the boot sequence needs to bring a kernel
// instance up: how many CPUs to schedule across, where the initramfs
// lives, and which ABI a task with no explicit ABI request should run
// under.
type Config struct {
	NumCPUs      int    `toml:"num_cpus"`
	InitramfsPath string `toml:"initramfs_path"`
	DataDir      string `toml:"data_dir"`
	DefaultAbi   string `toml:"default_abi"`
	Debug        bool   `toml:"debug"`
}

// Default returns the configuration booted when no file is supplied.
func Default() Config {
	return Config{
		NumCPUs:    1,
		DataDir:    "/var/lib/scarlet",
		DefaultAbi: "native",
	}
}

// Load reads a TOML config file at path, starting from Default() so an
// incomplete file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, kerr.ExecutionFailed("decode config " + path + ": " + err.Error())
	}
	return cfg, nil
}

// Validate rejects a Config that can't be used to boot: CPU counts of
// zero or fewer, and a missing initramfs path.
func (c Config) Validate() error {
	if c.NumCPUs <= 0 {
		return kerr.ExecutionFailed("num_cpus must be positive")
	}
	if c.InitramfsPath == "" {
		return kerr.ExecutionFailed("initramfs_path is required")
	}
	return nil
}
