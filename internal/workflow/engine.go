// Package workflow runs a scenario catalog against the subject, one
// process at a time, and turns the outcomes into a finalized run summary.
// It is consumed by both the MCP server and the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/emuharness/internal/classify"
	"github.com/deixis/emuharness/internal/report"
	"github.com/deixis/emuharness/internal/runner"
	"github.com/deixis/emuharness/internal/scenario"
)

// ProcessRunner launches the subject once.
// Implemented by runner.Runner.
type ProcessRunner interface {
	Run(ctx context.Context, subject string, args []string, timeout time.Duration) (*runner.Outcome, error)
}

// Observer is told about progress as scenarios run.
// Implemented by report.Transcript.
type Observer interface {
	RunStarted(subject string, total int)
	ScenarioStarted(ordinal, total int, name string)
	ScenarioFinished(v classify.Verdict)
}

// Engine holds the dependencies for one or more runs. Each Run gets its own
// aggregate, so an Engine can be reused without carrying counts over.
type Engine struct {
	Subject  string // path to the subject executable
	Catalog  *scenario.Catalog
	Runner   ProcessRunner
	Observer Observer     // optional
	Logger   *slog.Logger // optional
	Now      func() time.Time
	NewRunID func() string
}

// Run checks that the subject is executable, then runs every scenario in
// catalog order and returns the finalized summary.
//
// A missing subject aborts before any scenario with an error wrapping
// runner.ErrSubjectUnavailable. Cancelling ctx kills the current subject
// and returns an error wrapping ctx.Err(). Every other anomaly becomes a
// verdict.
func (e *Engine) Run(ctx context.Context) (*report.RunSummary, error) {
	if e.Catalog == nil {
		return nil, errors.New("no scenario catalog")
	}
	if e.Runner == nil {
		return nil, errors.New("no process runner")
	}
	if err := runner.CheckSubject(e.Subject); err != nil {
		return nil, err
	}

	runID := e.newRunID()
	log := e.logger().With("run_id", runID)
	agg := report.NewAggregator(runID, e.Subject, e.now())

	scenarios := e.Catalog.All()
	total := len(scenarios)
	log.Info("run started", "subject", e.Subject, "scenarios", total)
	if e.Observer != nil {
		e.Observer.RunStarted(e.Subject, total)
	}

	for _, sc := range scenarios {
		if e.Observer != nil {
			e.Observer.ScenarioStarted(sc.Ordinal(), total, sc.Name())
		}
		log.Debug("scenario started", "scenario", sc.Name(), "args", sc.Args(), "timeout", sc.Timeout())

		out, err := e.Runner.Run(ctx, e.Subject, sc.Args(), sc.Timeout())
		if err != nil {
			if ctx.Err() != nil {
				log.Warn("run interrupted", "scenario", sc.Name(), "completed", agg.Recorded())
				return nil, fmt.Errorf("scenario %q: %w", sc.Name(), ctx.Err())
			}
			out = &runner.Outcome{Status: runner.LaunchFailed, ExitCode: -1, Err: err.Error()}
		}

		v := sc.Classify(out, e.now())
		agg.Record(v)
		if e.Observer != nil {
			e.Observer.ScenarioFinished(v)
		}
		log.Info("scenario finished",
			"scenario", sc.Name(),
			"status", out.Status,
			"exit_code", out.ExitCode,
			"elapsed", out.Elapsed,
			"passed", v.Passed,
			"fallback", v.Fallback,
		)
	}

	summary := agg.Finalize(e.now())
	log.Info("run finished", "passed", summary.Passed, "failed", summary.Failed, "duration", summary.Duration)
	return summary, nil
}

// Result holds the outcome of a run and its emission.
type Result struct {
	Summary *report.RunSummary
	Report  *report.Report
	EmitErr error // persistence failure; does not affect ExitCode
}

// ExitCode is 0 if every scenario passed and 1 otherwise.
func (r *Result) ExitCode() int { return r.Summary.ExitCode() }

// RunAndEmit runs the catalog and hands the summary to em, writing the
// report to dest. Emission errors are kept in Result.EmitErr.
func (e *Engine) RunAndEmit(ctx context.Context, em *report.Emitter, dest string) (*Result, error) {
	summary, err := e.Run(ctx)
	if err != nil {
		return nil, err
	}
	rep, emitErr := em.Emit(summary, dest)
	return &Result{Summary: summary, Report: rep, EmitErr: emitErr}, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newRunID() string {
	if e.NewRunID != nil {
		return e.NewRunID()
	}
	return uuid.New().String()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
