package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upgradeScript = `
name: upgrade priority
tables:
  - {name: orders, pages: 1}
steps:
  - {txn: t1, op: acquire, resource: "table:orders", mode: IX, expect: granted}
  - {txn: t1, op: acquire, resource: "page:orders:1", mode: S, expect: granted}
  - {txn: t3, op: acquire, resource: "page:orders:1", mode: S, expect: granted}
  - {txn: t2, op: acquire, resource: "page:orders:1", mode: X, expect: queued}
  - {txn: t1, op: acquire, resource: "page:orders:1", mode: X, expect: queued}
  - {txn: t3, op: release, resource: "page:orders:1", expect: ok}
`

const failingScript = `
name: wrong expectation
tables:
  - {name: orders, pages: 1}
steps:
  - {txn: t1, op: acquire, resource: "table:orders", mode: X, expect: queued}
`

// execute runs the root command with args, resetting global flag state first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfgFile, logLevel = "", ""
	replayOutput, replayMetrics, replayStopOnFailure = "table", false, false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReplay_Table(t *testing.T) {
	script := writeFile(t, "upgrade.yaml", upgradeScript)

	out, err := execute(t, "replay", script)
	require.NoError(t, err)

	assert.Contains(t, out, "Steps:")
	assert.Contains(t, out, "Locks:")
	assert.Contains(t, out, "t1 acquire X page:orders:1")
	assert.Contains(t, out, "t1:X@page:orders:1")
	assert.Contains(t, out, "PASS")
}

func TestReplay_JSON(t *testing.T) {
	script := writeFile(t, "upgrade.yaml", upgradeScript)

	out, err := execute(t, "replay", script, "--output", "json")
	require.NoError(t, err)

	var report struct {
		Script string `json:"script"`
		Steps  []struct {
			Result string `json:"result"`
			Met    bool   `json:"met"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "upgrade priority", report.Script)
	require.Len(t, report.Steps, 6)
	assert.Equal(t, "queued", report.Steps[4].Result)
}

func TestReplay_FailedExpectation(t *testing.T) {
	script := writeFile(t, "failing.yaml", failingScript)

	out, err := execute(t, "replay", script)
	require.ErrorIs(t, err, ErrReplayFailed)
	assert.Contains(t, err.Error(), "1 of 1 expectations not met")
	assert.Contains(t, out, "FAIL")
}

func TestReplay_Metrics(t *testing.T) {
	script := writeFile(t, "upgrade.yaml", upgradeScript)

	out, err := execute(t, "replay", script, "--metrics", "--output", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "script: upgrade priority")
	assert.Contains(t, out, "# TYPE mglock_locks_acquire_total counter")
	assert.Contains(t, out, `mglock_locks_promoted_total{mode="X"} 1`)
}

func TestReplay_StrictIntentFromConfig(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "lock:\n  strict_intent_check: true\n")
	script := writeFile(t, "strict.yaml", `
name: strict
tables: [{name: t, pages: 1}]
steps:
  - {txn: t1, op: acquire, resource: "table:t", mode: IS}
  - {txn: t2, op: acquire, resource: "page:t:1", mode: S, expect: MissingAncestorIntentLock}
`)

	_, err := execute(t, "replay", script, "--config", cfg)
	require.NoError(t, err)

	_, err = execute(t, "replay", script)
	require.ErrorIs(t, err, ErrReplayFailed)
}

func TestReplay_InvalidScript(t *testing.T) {
	script := writeFile(t, "bad.yaml", "name: bad\nsteps: []\n")

	_, err := execute(t, "replay", script)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReplayFailed)
	assert.Contains(t, err.Error(), "invalid script")
}

func TestReplay_BrokenConfig(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "logging:\n  format: xml\n")
	script := writeFile(t, "upgrade.yaml", upgradeScript)

	_, err := execute(t, "replay", script, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestReplay_BadOutputFormat(t *testing.T) {
	script := writeFile(t, "upgrade.yaml", upgradeScript)

	_, err := execute(t, "replay", script, "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mglock dev")
	assert.Contains(t, out, "Go version:")
}

func TestConfigInitShowValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mglock", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created at: "+path)

	_, err = execute(t, "config", "init", "--config", path, "--force=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = execute(t, "config", "show", "--config", path, "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "strict_intent_check: false")
	assert.Contains(t, out, "timeout: 30s")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
}

func TestConfigValidate_Missing(t *testing.T) {
	_, err := execute(t, "config", "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}
