package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/emuharness/internal/runner"
)

// Stream selects which captured text a rule inspects.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
	Both   Stream = "output"
)

// text returns the selected stream, lower-cased for case-insensitive matching.
func (s Stream) text(out *runner.Outcome) string {
	switch s {
	case Stdout:
		return strings.ToLower(out.Stdout)
	case Stderr:
		return strings.ToLower(out.Stderr)
	default:
		return strings.ToLower(out.Combined())
	}
}

func (s Stream) String() string {
	if s == "" {
		return string(Both)
	}
	return string(s)
}

// matches returns the keywords present in text, in declaration order.
func matches(text string, keywords []string) []string {
	var found []string
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(k)) {
			found = append(found, k)
		}
	}
	return found
}

// timedOut is the shared verdict for a timeout a rule does not accept.
func timedOut(out *runner.Outcome) Decision {
	return Fail("timed out after %s", out.Elapsed.Round(time.Millisecond))
}

// Expect passes when at least Min of Keywords appear in Stream.
// Otherwise the Default policy applies.
type Expect struct {
	Stream    Stream
	Keywords  []string
	Min       int    // zero means 1
	Default   Policy // zero means FailByDefault
	TimeoutOK bool   // classify partial output instead of failing on timeout

	// Hint, if set, adds context to a fallback rationale.
	Hint func(out *runner.Outcome) string
}

func (e Expect) Policy() Policy { return orFail(e.Default) }

func (e Expect) Classify(out *runner.Outcome) Decision {
	if out.Status == runner.TimedOut && !e.TimeoutOK {
		return timedOut(out)
	}
	min := e.Min
	if min <= 0 {
		min = 1
	}
	found := matches(e.Stream.text(out), e.Keywords)
	if len(found) >= min {
		return Pass("found %s in %s", strings.Join(found, ", "), e.Stream)
	}

	reason := fmt.Sprintf("%d of %d required keywords (%s) in %s", len(found), min, strings.Join(e.Keywords, ", "), e.Stream)
	if e.Hint != nil {
		if h := e.Hint(out); h != "" {
			reason += "; " + h
		}
	}
	return e.Policy().Fallback("%s", reason)
}

// Forbid fails when forbidden keywords appear in Stream. With Together set,
// it fails only when every keyword appears. A clean stream is not proof of
// success, so it yields the Default policy as a fallback.
type Forbid struct {
	Stream    Stream
	Keywords  []string
	Together  bool
	Default   Policy // zero means PassByDefault
	TimeoutOK bool
}

func (f Forbid) Policy() Policy {
	if f.Default == "" {
		return PassByDefault
	}
	return f.Default
}

func (f Forbid) Classify(out *runner.Outcome) Decision {
	if out.Status == runner.TimedOut && !f.TimeoutOK {
		return timedOut(out)
	}
	found := matches(f.Stream.text(out), f.Keywords)
	switch {
	case f.Together && len(found) > 0 && len(found) == countNonEmpty(f.Keywords):
		return Fail("%s mentions %s together", f.Stream, strings.Join(found, " and "))
	case !f.Together && len(found) > 0:
		return Fail("%s contains %s", f.Stream, strings.Join(found, ", "))
	}
	state := "exited"
	if out.Status == runner.TimedOut {
		state = "still running at deadline"
	}
	return f.Policy().Fallback("%s with no %s in %s", state, strings.Join(f.Keywords, "/"), f.Stream)
}

// CleanExit passes only when the subject completed with exit code 0.
// Anything else fails by default.
type CleanExit struct{}

func (CleanExit) Policy() Policy { return FailByDefault }

func (CleanExit) Classify(out *runner.Outcome) Decision {
	switch {
	case out.CleanExit():
		return Pass("exited cleanly with code 0")
	case out.Status == runner.TimedOut:
		return FailByDefault.Fallback("no exit within %s", out.Elapsed.Round(time.Millisecond))
	default:
		return FailByDefault.Fallback("exit code %d", out.ExitCode)
	}
}

// Func adapts an ordinary function to a Rule.
type Func struct {
	Fn      func(out *runner.Outcome) Decision
	Default Policy
}

func (f Func) Policy() Policy { return orFail(f.Default) }

func (f Func) Classify(out *runner.Outcome) Decision {
	if f.Fn == nil {
		return f.Policy().Fallback("no predicate")
	}
	return f.Fn(out)
}

func orFail(p Policy) Policy {
	if p == "" {
		return FailByDefault
	}
	return p
}

func countNonEmpty(ss []string) int {
	n := 0
	for _, s := range ss {
		if s != "" {
			n++
		}
	}
	return n
}
