package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/emuharness/internal/classify"
	"github.com/deixis/emuharness/internal/report"
	"github.com/deixis/emuharness/internal/runner"
	"github.com/deixis/emuharness/internal/scenario"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "subject.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func mustCatalog(t *testing.T, specs ...scenario.Spec) *scenario.Catalog {
	t.Helper()
	c, err := scenario.NewCatalog(specs...)
	require.NoError(t, err)
	return c
}

// silent passes only when the subject exits cleanly without printing.
var silent = classify.Func{Fn: func(out *runner.Outcome) classify.Decision {
	if out.CleanExit() && strings.TrimSpace(out.Combined()) == "" {
		return classify.Pass("exited cleanly with no output")
	}
	return classify.FailByDefault.Fallback("unexpected output or exit")
}}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(100 * time.Millisecond)
		return now
	}
}

type recorder struct {
	events []string
}

func (r *recorder) RunStarted(subject string, total int) {
	r.events = append(r.events, "run")
}

func (r *recorder) ScenarioStarted(ordinal, total int, name string) {
	r.events = append(r.events, "start:"+name)
}

func (r *recorder) ScenarioFinished(v classify.Verdict) {
	r.events = append(r.events, "finish:"+v.Name)
}

func TestRun_TwoScenariosAgainstStub(t *testing.T) {
	subject := writeStub(t, `echo OK-BOARD; exit 0`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "A", Args: []string{"a"}, Timeout: 2 * time.Second,
			Rule: classify.Expect{Stream: classify.Stdout, Keywords: []string{"ok-board"}}},
		scenario.Spec{Name: "B", Args: []string{"b"}, Timeout: 2 * time.Second, Rule: silent},
	)
	rec := &recorder{}
	e := &Engine{
		Subject:  subject,
		Catalog:  cat,
		Runner:   &runner.Runner{},
		Observer: rec,
		Now:      fixedClock(),
		NewRunID: func() string { return "run-1" },
	}

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, s.Total())
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.ExitCode())
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, subject, s.SubjectPath)

	a, b := s.Verdicts[0], s.Verdicts[1]
	assert.Equal(t, "A", a.Name)
	assert.True(t, a.Passed, "A should pass directly")
	assert.False(t, a.Fallback)
	assert.Equal(t, "B", b.Name)
	assert.False(t, b.Passed, "B should fail by fallback")
	assert.True(t, b.Fallback)
	assert.Contains(t, b.Rationale, "fallback")

	assert.Equal(t, []string{"run", "start:A", "finish:A", "start:B", "finish:B"}, rec.events)
}

func TestRunAndEmit_WritesReport(t *testing.T) {
	subject := writeStub(t, `echo OK-BOARD`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "A", Timeout: 2 * time.Second,
			Rule: classify.Expect{Keywords: []string{"ok-board"}}},
	)
	e := &Engine{Subject: subject, Catalog: cat, Runner: &runner.Runner{}}
	dest := filepath.Join(t.TempDir(), "test_report.json")

	res, err := e.RunAndEmit(context.Background(), &report.Emitter{}, dest)
	require.NoError(t, err)
	require.NoError(t, res.EmitErr)
	assert.Equal(t, 0, res.ExitCode())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	got, err := report.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Summary.Total)
	assert.Equal(t, 1, got.Summary.Passed)
	assert.Equal(t, res.Summary.RunID, got.RunID)
}

func TestRunAndEmit_UnwritableDestKeepsExitCode(t *testing.T) {
	subject := writeStub(t, `echo OK-BOARD`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "A", Timeout: 2 * time.Second,
			Rule: classify.Expect{Keywords: []string{"ok-board"}}},
	)
	e := &Engine{Subject: subject, Catalog: cat, Runner: &runner.Runner{}}
	dest := filepath.Join(t.TempDir(), "missing", "dir", "report.json")

	res, err := e.RunAndEmit(context.Background(), &report.Emitter{}, dest)
	require.NoError(t, err)
	assert.Error(t, res.EmitErr, "unwritable destination")
	assert.Equal(t, 0, res.ExitCode())
}

type countingRunner struct {
	calls int
}

func (c *countingRunner) Run(ctx context.Context, subject string, args []string, timeout time.Duration) (*runner.Outcome, error) {
	c.calls++
	return &runner.Outcome{Status: runner.Completed}, nil
}

func TestRun_MissingSubjectRunsNothing(t *testing.T) {
	r := &countingRunner{}
	e := &Engine{
		Subject: filepath.Join(t.TempDir(), "qemu-system-arm"),
		Catalog: scenario.RP2040("", 0),
		Runner:  r,
	}
	s, err := e.Run(context.Background())
	require.ErrorIs(t, err, runner.ErrSubjectUnavailable)
	assert.Nil(t, s)
	assert.Zero(t, r.calls, "runner should not be called")
}

// missingFor launches a nonexistent path for one named scenario.
type missingFor struct {
	r       *runner.Runner
	args0   string
	missing string
}

func (m *missingFor) Run(ctx context.Context, subject string, args []string, timeout time.Duration) (*runner.Outcome, error) {
	if len(args) > 0 && args[0] == m.args0 {
		subject = m.missing
	}
	return m.r.Run(ctx, subject, args, timeout)
}

func TestRun_LaunchFailureIsAVerdict(t *testing.T) {
	subject := writeStub(t, `echo ready`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "first", Args: []string{"one"}, Timeout: time.Second,
			Rule: classify.Forbid{Keywords: []string{"panic"}}},
		scenario.Spec{Name: "second", Args: []string{"two"}, Timeout: time.Second,
			Rule: classify.Forbid{Keywords: []string{"panic"}}},
		scenario.Spec{Name: "third", Args: []string{"three"}, Timeout: time.Second,
			Rule: classify.Expect{Keywords: []string{"ready"}}},
	)
	e := &Engine{
		Subject: subject,
		Catalog: cat,
		Runner:  &missingFor{r: &runner.Runner{}, args0: "two", missing: filepath.Join(t.TempDir(), "gone")},
	}

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, s.Total())
	assert.False(t, s.Verdicts[1].Passed, "launch failure verdict passed")
	assert.True(t, s.Verdicts[0].Passed)
	assert.True(t, s.Verdicts[2].Passed)
	assert.Equal(t, s.Total(), s.Passed+s.Failed)
}

type erroringRunner struct{}

func (erroringRunner) Run(ctx context.Context, subject string, args []string, timeout time.Duration) (*runner.Outcome, error) {
	return nil, errors.New("bad input")
}

func TestRun_RunnerErrorWithoutCancelIsAVerdict(t *testing.T) {
	subject := writeStub(t, `exit 0`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "A", Timeout: time.Second, Rule: classify.Forbid{Keywords: []string{"x"}}},
	)
	e := &Engine{Subject: subject, Catalog: cat, Runner: erroringRunner{}}
	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	assert.Contains(t, s.Verdicts[0].Rationale, "bad input")
}

func TestRun_TimeoutClassifiedByRule(t *testing.T) {
	subject := writeStub(t, `echo booting; exec sleep 30`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "idle ok", Timeout: 200 * time.Millisecond,
			Rule: classify.Forbid{Stream: classify.Stderr, Keywords: []string{"segmentation fault"}, TimeoutOK: true}},
		scenario.Spec{Name: "must exit", Timeout: 200 * time.Millisecond, Rule: classify.CleanExit{}},
	)
	e := &Engine{Subject: subject, Catalog: cat, Runner: &runner.Runner{}}

	start := time.Now()
	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "timeouts not enforced")
	assert.True(t, s.Verdicts[0].Passed, "timeout-tolerant verdict: %+v", s.Verdicts[0])
	assert.False(t, s.Verdicts[1].Passed, "clean-exit verdict: %+v", s.Verdicts[1])
}

func TestRun_AmbiguousOutputIsDeterministic(t *testing.T) {
	subject := writeStub(t, `echo "nothing of interest"`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "lenient", Timeout: time.Second,
			Rule: classify.Expect{Keywords: []string{"uart", "gpio"}, Default: classify.PassByDefault}},
		scenario.Spec{Name: "strict", Timeout: time.Second,
			Rule: classify.Expect{Keywords: []string{"uart", "gpio"}}},
	)
	e := &Engine{Subject: subject, Catalog: cat, Runner: &runner.Runner{}}

	var first *report.RunSummary
	for i := 0; i < 3; i++ {
		s, err := e.Run(context.Background())
		require.NoError(t, err, "run #%d", i)
		assert.True(t, s.Verdicts[0].Passed && s.Verdicts[0].Fallback, "lenient = %+v, want fallback pass", s.Verdicts[0])
		assert.True(t, !s.Verdicts[1].Passed && s.Verdicts[1].Fallback, "strict = %+v, want fallback fail", s.Verdicts[1])
		if first == nil {
			first = s
			continue
		}
		for j := range s.Verdicts {
			assert.Equal(t, first.Verdicts[j].Rationale, s.Verdicts[j].Rationale, "rationale changed between runs")
		}
		assert.NotEqual(t, first.RunID, s.RunID, "runs share a run id")
	}
}

func TestRun_CancelKillsSubject(t *testing.T) {
	subject := writeStub(t, `exec sleep 30`)
	cat := mustCatalog(t,
		scenario.Spec{Name: "slow", Timeout: 30 * time.Second, Rule: classify.CleanExit{}},
		scenario.Spec{Name: "never", Timeout: 30 * time.Second, Rule: classify.CleanExit{}},
	)
	rec := &recorder{}
	e := &Engine{Subject: subject, Catalog: cat, Runner: &runner.Runner{}, Observer: rec}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	s, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, s)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotContains(t, rec.events, "start:never", "scenario after cancellation was started")
}

func TestRun_RP2040AgainstFakeEmulator(t *testing.T) {
	subject := writeStub(t, `case "$*" in
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
esac`)
	e := &Engine{
		Subject: subject,
		Catalog: scenario.RP2040("", 300*time.Millisecond),
		Runner:  &runner.Runner{},
	}
	s, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, s.Total())
	for _, v := range s.Verdicts {
		assert.True(t, v.Passed, "%s failed: %s", v.Name, v.Rationale)
	}
	assert.Equal(t, 0, s.ExitCode())
}

func TestRun_RP2040AgainstHungEmulator(t *testing.T) {
	subject := writeStub(t, `exec sleep 30`)
	e := &Engine{
		Subject: subject,
		Catalog: scenario.RP2040("", 200*time.Millisecond),
		Runner:  &runner.Runner{},
	}
	s, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, s.Total())
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.ExitCode())

	passed := map[string]bool{}
	for _, v := range s.Verdicts {
		passed[v.Name] = v.Passed
	}
	assert.Equal(t, map[string]bool{
		"Board Availability":      false,
		"Machine Initialization":  false,
		"Memory Regions":          true,
		"Peripheral Registration": true,
		"Firmware Loading":        false,
		"UART Configuration":      false,
	}, passed)
}

func TestRun_NilCatalog(t *testing.T) {
	e := &Engine{Runner: &countingRunner{}}
	_, err := e.Run(context.Background())
	assert.Error(t, err)
}
