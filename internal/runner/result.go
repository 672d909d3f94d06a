package runner

import "time"

// Status tags how a subject invocation ended.
type Status string

const (
	// Completed means the subject exited on its own within the budget.
	Completed Status = "completed"
	// TimedOut means the budget elapsed and the subject was killed.
	TimedOut Status = "timed_out"
	// LaunchFailed means the subject could not be spawned at all.
	LaunchFailed Status = "launch_failed"
)

// Outcome holds what was observed from one subject invocation.
type Outcome struct {
	Status    Status
	ExitCode  int           // real exit code when Completed, -1 otherwise
	Stdout    string        // captured stdout (partial on timeout, may be truncated)
	Stderr    string        // captured stderr (partial on timeout, may be truncated)
	Elapsed   time.Duration // wall-clock time from spawn to reap
	Err       string        // launch or wait error, if any
	Truncated bool          // true if either stream exceeded the size cap
}

// Combined returns stdout followed by stderr.
func (o *Outcome) Combined() string {
	if o.Stderr == "" {
		return o.Stdout
	}
	if o.Stdout == "" {
		return o.Stderr
	}
	return o.Stdout + "\n" + o.Stderr
}

// CleanExit reports whether the subject completed with exit code 0.
func (o *Outcome) CleanExit() bool {
	return o.Status == Completed && o.ExitCode == 0
}
