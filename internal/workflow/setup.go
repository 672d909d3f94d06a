package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/deixis/emuharness/internal/config"
	"github.com/deixis/emuharness/internal/runner"
	"github.com/deixis/emuharness/internal/scenario"
)

// Overrides are per-invocation settings. Non-zero fields win over the
// configuration file.
type Overrides struct {
	Subject string // already resolved against the caller's directory
	Machine string
	Timeout time.Duration
	Only    []string
}

// Setup builds an Engine for the RP2040 catalog from a loaded configuration.
// A subject that cannot be found on PATH is kept verbatim so that Run
// reports it as a precondition failure.
func Setup(loaded *config.LoadResult, o Overrides, logger *slog.Logger) (*Engine, error) {
	cfg := loaded.Config

	subject := o.Subject
	if subject == "" {
		subject = loaded.ResolveSubject(cfg.SubjectPath())
	}
	if resolved, err := runner.ResolveSubject(subject); err == nil {
		subject = resolved
	}

	cat, err := Catalog(cfg, o)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Subject: subject,
		Catalog: cat,
		Runner:  &runner.Runner{MaxOutput: cfg.MaxOutputBytes()},
		Logger:  logger,
	}, nil
}

// Catalog returns the RP2040 catalog tuned by cfg and o: machine name,
// global timeout, per-scenario timeouts and scenario selection, in that
// order.
func Catalog(cfg *config.Config, o Overrides) (*scenario.Catalog, error) {
	machine := o.Machine
	if machine == "" {
		machine = cfg.Machine
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = cfg.Timeout()
	}

	cat := scenario.RP2040(machine, timeout)

	perScenario, err := cfg.ScenarioTimeouts()
	if err != nil {
		return nil, err
	}
	if cat, err = cat.WithTimeouts(perScenario); err != nil {
		return nil, fmt.Errorf("scenarios.timeouts: %w", err)
	}

	only := o.Only
	if len(only) == 0 {
		only = cfg.Scenarios.Only
	}
	if cat, err = cat.Select(only...); err != nil {
		return nil, fmt.Errorf("selecting scenarios: %w", err)
	}
	return cat, nil
}
