// Package mcp provides the emuharness MCP server, registering the harness
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/emuharness"
	"github.com/deixis/emuharness/internal/config"
	"github.com/deixis/emuharness/internal/report"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex
	loaded *config.LoadResult // replaced when the client announces a root
	store  report.Store
	logger *slog.Logger
}

// NewServer creates an MCP server with all harness tools registered.
// Reports produced by harness_run are kept in store for harness_inspect.
func NewServer(loaded *config.LoadResult, store report.Store, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handler{loaded: loaded, store: store, logger: logger}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "emuharness", Version: emuharness.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "harness_catalog",
		Description: "List the validation scenarios in run order, with emulator arguments, timeout and fallback policy.",
	}, h.catalogHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_run",
		Description: `Run the scenario catalog against the emulator and return one verdict per scenario.

Scenarios run one at a time, each with its own timeout. Verdicts marked with * were reached
by the scenario's fallback policy rather than by direct evidence. Results are stored for
drill-down via harness_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_inspect",
		Description: `Show a stored report from a harness_run, or one scenario from it.

Use the run_id from the harness_run output. Pass a scenario name to see only that verdict.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "harness_history",
		Description: "List the run IDs of recent harness_run calls, most recent first.",
	}, h.historyHandler)

	return s
}

func (h *handler) config() *config.LoadResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// updateFromRoots queries the client for MCP roots and reloads the
// configuration from the first file root.
func (h *handler) updateFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		h.logger.Warn("ignoring client root", "root", u.Path, "error", err)
		return
	}

	h.mu.Lock()
	h.loaded = loaded
	h.mu.Unlock()
	h.logger.Debug("workspace root updated", "root", loaded.Root, "config", loaded.Path)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
