package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "packwatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  dir: /home/user/proj\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, filepath.Join("packrat", "packrat.lock"), cfg.Project.Lockfile)
	require.Equal(t, filepath.Join("packrat", "lib"), cfg.Project.Library)
	require.Equal(t, []string{"manipulate", "rstudio"}, cfg.Project.IgnoreDirs)
	require.Equal(t, "127.0.0.1:8974", cfg.Daemon.ListenAddr)
	require.Equal(t, 5*time.Minute, cfg.SweepIntervalDuration())
	require.Equal(t, 30*time.Second, cfg.QueryTimeoutDuration())
	require.Equal(t, "Rscript", cfg.Interp.Binary)
	require.Equal(t, "packwatch.packages-changed", cfg.Notify.Subject)
	require.Equal(t, filepath.Join("/home/user/proj", ".packwatch", "state.db"), cfg.Daemon.StateDB)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "packwatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  dir: /p\ndaemon:\n  sweep_interval: soon\n"), 0o644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sweep_interval")
}

func TestSweepIntervalZeroDisables(t *testing.T) {
	cfg := Default("/p")
	cfg.Daemon.SweepInterval = "0"
	require.NoError(t, cfg.Validate())
	require.Equal(t, time.Duration(0), cfg.SweepIntervalDuration())
}

func TestLoad_RequiresProjectDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "packwatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("daemon:\n  listen_addr: 127.0.0.1:9000\n"), 0o644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "project.dir")
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("PW_TEST_PROJECT", "/tmp/envproj")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "packwatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  dir: ${PW_TEST_PROJECT}\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "/tmp/envproj", cfg.Project.Dir)
}

func TestDefault_PathHelpers(t *testing.T) {
	cfg := Default("/home/user/proj")
	require.Equal(t, filepath.Join("/home/user/proj", "packrat", "packrat.lock"), cfg.LockfilePath())
	require.Equal(t, filepath.Join("/home/user/proj", "packrat", "lib"), cfg.LibraryPath())
}
