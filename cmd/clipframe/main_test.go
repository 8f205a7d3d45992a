package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipframe/clipframe/internal/config"
	"github.com/clipframe/clipframe/internal/lifecycle"
)

func writeTestConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipframe.toml")
	body := "data_dir = \"" + filepath.ToSlash(dataDir) + "\"\n" +
		"output_ttl = \"1h\"\n" +
		"log_level = \"error\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "sweep", "doctor"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestSweep_RemovesOldOrphans(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeTestConfig(t, dataDir)

	ns := lifecycle.NewNamespaces(dataDir)
	require.NoError(t, ns.Ensure())
	stale := filepath.Join(ns.Outputs, "cropped_stale.mp4")
	fresh := filepath.Join(ns.Outputs, "cropped_fresh.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	out, err := runCLI(t, "--config", cfgPath, "sweep")
	require.NoError(t, err)

	var report lifecycle.SweepReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Orphans)
	assert.Equal(t, []string{stale}, report.Cleanup.Removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestSweep_TTLFlagOverridesConfig(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeTestConfig(t, dataDir)

	ns := lifecycle.NewNamespaces(dataDir)
	require.NoError(t, ns.Ensure())
	orphan := filepath.Join(ns.Transcripts, "transcript_x.srt")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))
	old := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(orphan, old, old))

	_, err := runCLI(t, "--config", cfgPath, "sweep")
	require.NoError(t, err)
	assert.FileExists(t, orphan)

	_, err = runCLI(t, "--config", cfgPath, "sweep", "--ttl", "5m")
	require.NoError(t, err)
	assert.NoFileExists(t, orphan)
}

func TestOpenApp_RefusesLockedDataDir(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := config.Load(writeTestConfig(t, dataDir))
	require.NoError(t, err)

	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, err = openApp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another clipframe process")
}

func TestOpenApp_ReleasesLockOnClose(t *testing.T) {
	cfg, err := config.Load(writeTestConfig(t, t.TempDir()))
	require.NoError(t, err)

	a, err := openApp(cfg)
	require.NoError(t, err)
	assert.DirExists(t, cfg.ScratchDir())
	a.close()

	again, err := openApp(cfg)
	require.NoError(t, err)
	again.close()
}
