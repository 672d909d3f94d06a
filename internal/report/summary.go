package report

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/deixis/emuharness/internal/classify"
)

// ErrFinalized is the panic value when an Aggregator is used after Finalize.
var ErrFinalized = errors.New("report: aggregator already finalized")

// RunSummary is the aggregate of every verdict produced by one run.
type RunSummary struct {
	RunID        string
	SubjectPath  string
	RunTimestamp time.Time
	Duration     time.Duration
	Verdicts     []classify.Verdict // in execution order
	Passed       int
	Failed       int
}

// Total returns the number of scenarios executed.
func (s *RunSummary) Total() int { return len(s.Verdicts) }

// AllPassed reports whether no verdict failed.
func (s *RunSummary) AllPassed() bool { return s.Failed == 0 }

// ExitCode is 0 if every verdict passed and 1 otherwise.
func (s *RunSummary) ExitCode() int {
	if s.AllPassed() {
		return 0
	}
	return 1
}

// Fallbacks returns the number of verdicts decided by a fallback policy.
func (s *RunSummary) Fallbacks() int {
	n := 0
	for _, v := range s.Verdicts {
		if v.Fallback {
			n++
		}
	}
	return n
}

// Aggregator accumulates verdicts for a single run. It is not safe for
// concurrent use; scenarios run sequentially.
type Aggregator struct {
	summary   RunSummary
	finalized bool
}

// NewAggregator starts a run-scoped aggregate.
func NewAggregator(runID, subjectPath string, start time.Time) *Aggregator {
	return &Aggregator{summary: RunSummary{
		RunID:        runID,
		SubjectPath:  subjectPath,
		RunTimestamp: start,
	}}
}

// Record appends a verdict. Calling it after Finalize is a programming
// error and panics with ErrFinalized.
func (a *Aggregator) Record(v classify.Verdict) {
	if a.finalized {
		panic(fmt.Errorf("recording %q: %w", v.Name, ErrFinalized))
	}
	a.summary.Verdicts = append(a.summary.Verdicts, v)
	if v.Passed {
		a.summary.Passed++
	} else {
		a.summary.Failed++
	}
}

// Recorded returns the number of verdicts recorded so far.
func (a *Aggregator) Recorded() int { return len(a.summary.Verdicts) }

// Finalize freezes the aggregate and returns it. It may be called once.
func (a *Aggregator) Finalize(end time.Time) *RunSummary {
	if a.finalized {
		panic(ErrFinalized)
	}
	a.finalized = true
	s := a.summary
	s.Duration = end.Sub(s.RunTimestamp)
	if s.Duration < 0 {
		s.Duration = 0
	}
	s.Verdicts = slices.Clone(s.Verdicts)
	return &s
}
