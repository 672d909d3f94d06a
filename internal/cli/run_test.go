package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/emuharness/internal/report"
)

const fakeQEMU = `#!/bin/sh
case "$*" in
  "-M help")
    echo "Supported machines are:"
    echo "raspberrypi-pico     Raspberry Pi Pico (RP2040)"
    exit 0 ;;
  *-kernel*)
    echo "qemu-system-arm: could not load kernel 'nonexistent.elf'" >&2
    exit 1 ;;
  *guest_errors*|*-monitor*)
    exec sleep 30 ;;
  *)
    exit 0 ;;
esac
`

// workspace writes a stub emulator and a config file pointing at it and
// returns the config path.
func workspace(t *testing.T, script, extra string) (dir, cfgPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qemu-system-arm"), []byte(script), 0o755))

	cfg := "subject: ./qemu-system-arm\ntimeout: 300ms\n" + extra
	cfgPath = filepath.Join(dir, ".emuharness")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_AllPass(t *testing.T) {
	dir, cfg := workspace(t, fakeQEMU, "")

	code, out, errOut := execute(t, "run", "--config", cfg)
	assert.Equal(t, ExitSuccess, code, errOut)

	assert.Contains(t, out, "[TEST 1/6] Board Availability")
	assert.Contains(t, out, "[TEST 6/6] UART Configuration")
	assert.Contains(t, out, "✓ ALL SCENARIOS PASSED")
	assert.NotContains(t, out, "\x1b[", "no colour when stdout is not a terminal")

	data, err := os.ReadFile(filepath.Join(dir, "test_report.json"))
	require.NoError(t, err)
	r, err := report.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, report.Totals{Total: 6, Passed: 6}, r.Summary)
	assert.NoError(t, report.Verify(r))
}

func TestRun_FailureExitsOne(t *testing.T) {
	_, cfg := workspace(t, "#!/bin/sh\necho 'Supported machines are:'\necho 'mps2-an385   ARM MPS2'\n", "")
	out := filepath.Join(t.TempDir(), "report.json")

	code, stdout, stderr := execute(t, "run", "--config", cfg, "--only", "Board Availability", "--output", out)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ SOME SCENARIOS FAILED")
	assert.Contains(t, stderr, "1 of 1 scenarios failed")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	r, err := report.Decode(data)
	require.NoError(t, err)
	require.Len(t, r.Scenarios, 1)
	assert.False(t, r.Scenarios[0].Passed)
	assert.True(t, r.Scenarios[0].Fallback)
	assert.Contains(t, r.Scenarios[0].Rationale, "mps2-an385")
}

func TestRun_MissingSubjectExitsOne(t *testing.T) {
	_, cfg := workspace(t, fakeQEMU, "")
	missing := filepath.Join(t.TempDir(), "nope", "qemu-system-arm")

	code, stdout, stderr := execute(t, "run", "--config", cfg, "--subject", missing)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Precondition failed")
	assert.NotContains(t, stdout, "[TEST")
	assert.Contains(t, stderr, "precondition failed")
}

func TestRun_UnknownScenarioIsCommandError(t *testing.T) {
	_, cfg := workspace(t, fakeQEMU, "")
	code, _, stderr := execute(t, "run", "--config", cfg, "--only", "Hyperdrive")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "Hyperdrive")
}

func TestRun_BadConfigIsCommandError(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, ".emuharness")
	require.NoError(t, os.WriteFile(cfg, []byte("timeout: soon\n"), 0o644))

	code, _, stderr := execute(t, "run", "--config", cfg)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "loading config")
}

func TestRun_HistoryThenInspectByRunID(t *testing.T) {
	dir, cfg := workspace(t, fakeQEMU, "history:\n  dir: runs\nscenarios:\n  only: [Firmware Loading]\n")

	code, _, errOut := execute(t, "run", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)

	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	runID := strings.TrimSuffix(entries[0].Name(), ".json")

	code, out, errOut := execute(t, "inspect", "--config", cfg, runID)
	assert.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "Report "+runID)
	assert.Contains(t, out, "Firmware Loading")
}

func TestCatalog(t *testing.T) {
	_, cfg := workspace(t, fakeQEMU, "machine: test-board\n")
	code, out, errOut := execute(t, "catalog", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)

	for _, want := range []string{"Scenario", "Board Availability", "UART Configuration", "-M test-board -serial null", "300ms", "fail-by-default"} {
		assert.Contains(t, out, want)
	}
}
