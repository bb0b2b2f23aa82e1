package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/scarletkernel/scarlet/boot/config"
)

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scarlet.toml")
	contents := `
num_cpus = 4
initramfs_path = "/boot/initramfs.cpio"
default_abi = "linux-riscv64"
`
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := config.Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.NumCPUs, 4)
	assert.Equal(t, cfg.InitramfsPath, "/boot/initramfs.cpio")
	assert.Equal(t, cfg.DefaultAbi, "linux-riscv64")
	assert.Equal(t, cfg.DataDir, "/var/lib/scarlet")
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, config.Default())
}

func TestValidateRejectsMissingInitramfs(t *testing.T) {
	cfg := config.Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation to fail without initramfs_path")
	}
}
