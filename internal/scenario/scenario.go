// Package scenario defines the ordered, immutable catalog of checks run
// against the subject. Each entry pairs an argument vector with the rule
// that classifies its outcome; adding a check means adding one entry.
package scenario

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/deixis/emuharness/internal/classify"
	"github.com/deixis/emuharness/internal/runner"
)

// Spec describes a scenario before it is placed in a Catalog.
type Spec struct {
	Name        string
	Description string
	Args        []string      // passed verbatim to the subject
	Timeout     time.Duration // wall-clock budget, must be positive
	Rule        classify.Rule
}

// Scenario is a catalog entry. It cannot be modified after the catalog is
// built.
type Scenario struct {
	spec    Spec
	ordinal int
}

func (s Scenario) Name() string            { return s.spec.Name }
func (s Scenario) Description() string     { return s.spec.Description }
func (s Scenario) Ordinal() int            { return s.ordinal }
func (s Scenario) Timeout() time.Duration  { return s.spec.Timeout }
func (s Scenario) Rule() classify.Rule     { return s.spec.Rule }
func (s Scenario) Policy() classify.Policy { return s.spec.Rule.Policy() }

// Args returns a copy of the argument vector.
func (s Scenario) Args() []string { return slices.Clone(s.spec.Args) }

// Classify applies the scenario's rule to out.
func (s Scenario) Classify(out *runner.Outcome, at time.Time) classify.Verdict {
	return classify.Apply(s.spec.Name, s.spec.Rule, out, at)
}

// UnknownScenarioError is returned when a name does not match any entry.
type UnknownScenarioError struct {
	Name string
}

func (e UnknownScenarioError) Error() string {
	return fmt.Sprintf("unknown scenario %q", e.Name)
}

// Catalog is an ordered registry of scenarios.
type Catalog struct {
	scenarios []Scenario
	index     map[string]int // lower-cased name -> position
}

// NewCatalog validates specs and numbers them from 1 in the given order.
func NewCatalog(specs ...Spec) (*Catalog, error) {
	c := &Catalog{
		scenarios: make([]Scenario, 0, len(specs)),
		index:     make(map[string]int, len(specs)),
	}
	for i, sp := range specs {
		if strings.TrimSpace(sp.Name) == "" {
			return nil, fmt.Errorf("scenario %d: empty name", i+1)
		}
		key := strings.ToLower(sp.Name)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("scenario %q: duplicate name", sp.Name)
		}
		if sp.Timeout <= 0 {
			return nil, fmt.Errorf("scenario %q: timeout must be positive, got %s", sp.Name, sp.Timeout)
		}
		if sp.Rule == nil {
			return nil, fmt.Errorf("scenario %q: no classification rule", sp.Name)
		}
		sp.Args = slices.Clone(sp.Args)
		c.index[key] = len(c.scenarios)
		c.scenarios = append(c.scenarios, Scenario{spec: sp, ordinal: i + 1})
	}
	return c, nil
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int { return len(c.scenarios) }

// All returns the scenarios in run order.
func (c *Catalog) All() []Scenario { return slices.Clone(c.scenarios) }

// Lookup finds a scenario by name, ignoring case.
func (c *Catalog) Lookup(name string) (Scenario, bool) {
	i, ok := c.index[strings.ToLower(name)]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// Select returns a new catalog holding only the named scenarios, in catalog
// order. An empty selection returns c itself.
func (c *Catalog) Select(names ...string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	want := make(map[int]bool, len(names))
	for _, n := range names {
		i, ok := c.index[strings.ToLower(n)]
		if !ok {
			return nil, UnknownScenarioError{Name: n}
		}
		want[i] = true
	}
	var specs []Spec
	for i, s := range c.scenarios {
		if want[i] {
			specs = append(specs, s.spec)
		}
	}
	return NewCatalog(specs...)
}

// WithTimeouts returns a new catalog with per-scenario timeout overrides.
func (c *Catalog) WithTimeouts(overrides map[string]time.Duration) (*Catalog, error) {
	if len(overrides) == 0 {
		return c, nil
	}
	specs := make([]Spec, len(c.scenarios))
	for i, s := range c.scenarios {
		specs[i] = s.spec
	}
	for name, d := range overrides {
		i, ok := c.index[strings.ToLower(name)]
		if !ok {
			return nil, UnknownScenarioError{Name: name}
		}
		specs[i].Timeout = d
	}
	return NewCatalog(specs...)
}
