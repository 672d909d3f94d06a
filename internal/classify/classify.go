// Package classify turns a subject Outcome into a pass/fail Verdict using
// pluggable heuristic rules.
//
// Every rule declares a fallback Policy. When the captured evidence neither
// confirms success nor shows a failure signal, the rule returns the policy's
// verdict and marks it as a fallback so the report never presents absence of
// evidence as a confirmed result.
package classify

import (
	"fmt"
	"time"

	"github.com/deixis/emuharness/internal/runner"
)

// Policy is the deterministic verdict applied to ambiguous evidence.
type Policy string

const (
	// PassByDefault treats inconclusive evidence as a pass.
	PassByDefault Policy = "pass-by-default"
	// FailByDefault treats inconclusive evidence as a failure.
	FailByDefault Policy = "fail-by-default"
)

// Passes reports whether the policy yields a passing verdict.
func (p Policy) Passes() bool { return p == PassByDefault }

// Fallback builds the policy's verdict for inconclusive evidence.
// The rationale always says it is a fallback.
func (p Policy) Fallback(format string, args ...any) Decision {
	return Decision{
		Passed:    p.Passes(),
		Fallback:  true,
		Rationale: fmt.Sprintf("fallback (%s): ", p) + fmt.Sprintf(format, args...),
	}
}

// Decision is what a rule concludes from one Outcome.
type Decision struct {
	Passed    bool
	Rationale string
	Fallback  bool // true if no confirming or refuting signal was found
}

// Pass returns a confirmed passing decision.
func Pass(format string, args ...any) Decision {
	return Decision{Passed: true, Rationale: fmt.Sprintf(format, args...)}
}

// Fail returns a confirmed failing decision.
func Fail(format string, args ...any) Decision {
	return Decision{Passed: false, Rationale: fmt.Sprintf(format, args...)}
}

// Rule classifies the outcome of one scenario.
type Rule interface {
	Classify(out *runner.Outcome) Decision
	// Policy is used when Classify cannot reach a conclusion, including
	// when it panics.
	Policy() Policy
}

// Verdict is the recorded result for one scenario in one run.
type Verdict struct {
	Name      string
	Passed    bool
	Rationale string
	Fallback  bool
	Duration  time.Duration
	Timestamp time.Time
}

// Apply runs rule against out and stamps the result with at. It never
// panics: a missing rule, a missing outcome or a panicking rule all degrade
// to a fallback verdict. A subject that could not be launched always fails.
func Apply(name string, rule Rule, out *runner.Outcome, at time.Time) (v Verdict) {
	v = Verdict{Name: name, Timestamp: at}
	if out != nil {
		v.Duration = out.Elapsed
	}

	policy := FailByDefault
	if rule != nil {
		policy = safePolicy(rule)
	}

	defer func() {
		if r := recover(); r != nil {
			v.set(policy.Fallback("rule panicked: %v", r))
		}
	}()

	switch {
	case rule == nil:
		v.set(policy.Fallback("no classification rule"))
	case out == nil:
		v.set(policy.Fallback("no outcome captured"))
	case out.Status == runner.LaunchFailed:
		v.set(Fail("launch failed: %s", out.Err))
	default:
		v.set(rule.Classify(out))
	}
	return v
}

func (v *Verdict) set(d Decision) {
	v.Passed = d.Passed
	v.Rationale = d.Rationale
	v.Fallback = d.Fallback
	if v.Rationale == "" {
		if v.Passed {
			v.Rationale = "passed"
		} else {
			v.Rationale = "failed"
		}
	}
}

func safePolicy(rule Rule) (p Policy) {
	defer func() {
		if recover() != nil {
			p = FailByDefault
		}
	}()
	switch p := rule.Policy(); p {
	case PassByDefault, FailByDefault:
		return p
	default:
		return FailByDefault
	}
}
