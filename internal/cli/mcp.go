package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	harnessmcp "github.com/deixis/emuharness/internal/mcp"
	"github.com/deixis/emuharness/internal/report"
)

// MCPOptions holds flags for the mcp command.
type MCPOptions struct {
	*RootOptions
	HTTP         string
	Instructions bool
}

// NewMCPCommand creates the mcp command.
func NewMCPCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MCPOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the harness tools over the Model Context Protocol",
		Long: `Serve harness_catalog, harness_run, harness_inspect and harness_history
over MCP, on stdio by default or over streamable HTTP with --http.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Instructions {
				fmt.Fprint(cmd.OutOrStdout(), harnessmcp.Instructions)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveMCP(ctx, opts, opts.logger(cmd.ErrOrStderr()))
		},
	}

	cmd.Flags().StringVar(&opts.HTTP, "http", "", "serve streamable HTTP on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.Instructions, "instructions", false, "print model instructions and exit")

	return cmd
}

func serveMCP(ctx context.Context, opts *MCPOptions, log *slog.Logger) error {
	loaded, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	cfg := loaded.Config

	disk := report.NewDiskStore(loaded.ResolvePath(cfg.History.Dir))
	store := report.NewLRUStore(cfg.HistorySize(), disk)

	server := harnessmcp.NewServer(loaded, store, log)

	if opts.HTTP != "" {
		return serveHTTP(ctx, server, opts.HTTP, log)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, log *slog.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info("mcp listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
