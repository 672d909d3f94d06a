package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/emuharness/internal/report"
)

type inspectParams struct {
	RunID    string `json:"run_id" jsonschema:"the run ID from a harness_run result"`
	Scenario string `json:"scenario,omitempty" jsonschema:"scenario name, case-insensitive. Omit to show the whole report."`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	r, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	if params.Scenario == "" {
		return textResult(formatReport(r))
	}
	for _, sc := range r.Scenarios {
		if strings.EqualFold(sc.Name, params.Scenario) {
			return textResult(formatScenario(r.RunID, sc))
		}
	}
	return textResult(fmt.Sprintf("No scenario named %q in run %s.", params.Scenario, params.RunID))
}

func formatReport(r *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Subject: %s\n", r.SubjectPath)
	fmt.Fprintf(&b, "Started: %s\n", r.RunTimestamp)
	fmt.Fprintf(&b, "Duration: %.3fs\n", r.DurationSeconds)
	fmt.Fprintf(&b, "Summary: %d total, %d passed, %d failed\n", r.Summary.Total, r.Summary.Passed, r.Summary.Failed)
	fmt.Fprintf(&b, "Digest: %s\n", r.Digest)
	fmt.Fprintln(&b)
	for _, sc := range r.Scenarios {
		fmt.Fprintf(&b, "%s %s (%.3fs): %s\n", verdictTag(sc.Passed, sc.Fallback), sc.Name, sc.DurationSeconds, sc.Rationale)
	}
	return b.String()
}

func formatScenario(runID string, sc report.ScenarioResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Scenario: %s\n", sc.Name)
	fmt.Fprintf(&b, "Verdict: %s\n", verdictTag(sc.Passed, sc.Fallback))
	if sc.Fallback {
		fmt.Fprintln(&b, "Decided by: fallback policy")
	} else {
		fmt.Fprintln(&b, "Decided by: direct evidence")
	}
	fmt.Fprintf(&b, "Rationale: %s\n", sc.Rationale)
	fmt.Fprintf(&b, "Duration: %.3fs\n", sc.DurationSeconds)
	fmt.Fprintf(&b, "Finished: %s\n", sc.Timestamp)
	return b.String()
}

type historyParams struct{}

// recentLister is implemented by stores that track recent runs.
type recentLister interface {
	Recent() []string
}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, _ historyParams) (*mcp.CallToolResult, any, error) {
	rl, ok := h.store.(recentLister)
	if !ok {
		return errorResult("run history is not tracked by this server")
	}
	ids := rl.Recent()
	if len(ids) == 0 {
		return textResult("No runs yet.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent runs (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	return textResult(b.String())
}
