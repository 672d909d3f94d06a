package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/emuharness/internal/report"
	"github.com/deixis/emuharness/internal/runner"
	"github.com/deixis/emuharness/internal/workflow"
)

type runParams struct {
	Subject        string   `json:"subject,omitempty" jsonschema:"emulator executable path or command name. Defaults to the configured subject or qemu-system-arm on PATH."`
	Machine        string   `json:"machine,omitempty" jsonschema:"emulated machine name. Defaults to raspberrypi-pico."`
	Scenarios      []string `json:"scenarios,omitempty" jsonschema:"scenario names to run, case-insensitive. Defaults to the whole catalog."`
	TimeoutSeconds float64  `json:"timeout_seconds,omitempty" jsonschema:"per-scenario timeout in seconds. Defaults to each scenario's own budget."`
	Output         string   `json:"output,omitempty" jsonschema:"also write the JSON report to this path, relative to the workspace root."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.TimeoutSeconds < 0 {
		return errorResult("timeout_seconds must not be negative")
	}
	loaded := h.config()

	o := workflow.Overrides{
		Machine: params.Machine,
		Timeout: time.Duration(params.TimeoutSeconds * float64(time.Second)),
		Only:    params.Scenarios,
	}
	if params.Subject != "" {
		o.Subject = loaded.ResolveSubject(params.Subject)
	}

	engine, err := workflow.Setup(loaded, o, h.logger)
	if err != nil {
		return errorResult(fmt.Sprintf("run not started: %v", err))
	}

	em := &report.Emitter{Store: h.store, Logger: h.logger}
	res, err := engine.RunAndEmit(ctx, em, loaded.ResolvePath(params.Output))
	switch {
	case errors.Is(err, runner.ErrSubjectUnavailable):
		return errorResult(fmt.Sprintf("Precondition failed: %v\nAction: install the emulator or pass its path as subject.", err))
	case err != nil:
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	return textResult(formatRun(res, loaded.ResolvePath(params.Output)))
}

func formatRun(res *workflow.Result, output string) string {
	var b strings.Builder
	s := res.Summary

	if s.AllPassed() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	fmt.Fprintf(&b, "Subject: %s\n", s.SubjectPath)
	fmt.Fprintf(&b, "Scenarios: %d total, %d passed, %d failed", s.Total(), s.Passed, s.Failed)
	if n := s.Fallbacks(); n > 0 {
		fmt.Fprintf(&b, " (%d by fallback)", n)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Results:")
	for _, v := range s.Verdicts {
		fmt.Fprintf(&b, "  %s %s: %s\n", verdictTag(v.Passed, v.Fallback), v.Name, v.Rationale)
	}
	fmt.Fprintln(&b)

	switch {
	case res.EmitErr != nil:
		fmt.Fprintf(&b, "Report not saved: %v\n", res.EmitErr)
	case output != "":
		fmt.Fprintf(&b, "Report: %s\n", output)
	}
	if res.Report != nil {
		fmt.Fprintf(&b, "Digest: %s\n", res.Report.Digest)
	}
	fmt.Fprintf(&b, "Inspect with harness_inspect(run_id=%q, scenario=\"<name>\").\n", s.RunID)

	return b.String()
}

func verdictTag(passed, fallback bool) string {
	tag := "FAIL"
	if passed {
		tag = "PASS"
	}
	if fallback {
		tag += "*"
	}
	return tag
}
