package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/emuharness/internal/scenario"
	"github.com/deixis/emuharness/internal/workflow"
)

type catalogParams struct {
	Machine string `json:"machine,omitempty" jsonschema:"emulated machine name. Defaults to the configured machine or raspberrypi-pico."`
}

func (h *handler) catalogHandler(ctx context.Context, req *mcp.CallToolRequest, params catalogParams) (*mcp.CallToolResult, any, error) {
	loaded := h.config()
	cat, err := workflow.Catalog(loaded.Config, workflow.Overrides{Machine: params.Machine})
	if err != nil {
		return errorResult(fmt.Sprintf("catalog unavailable: %v", err))
	}
	return textResult(formatCatalog(cat))
}

func formatCatalog(cat *scenario.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenarios (%d):\n", cat.Len())
	for _, sc := range cat.All() {
		fmt.Fprintf(&b, "  %d. %s\n", sc.Ordinal(), sc.Name())
		if d := sc.Description(); d != "" {
			fmt.Fprintf(&b, "     %s\n", d)
		}
		fmt.Fprintf(&b, "     args: %s\n", strings.Join(sc.Args(), " "))
		fmt.Fprintf(&b, "     timeout: %s, fallback: %s\n", sc.Timeout(), sc.Policy())
	}
	return b.String()
}
