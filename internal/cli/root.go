// Package cli implements the emuharness command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deixis/emuharness/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string // explicit config file; empty means search upward
}

// NewRootCommand creates the root command for the emuharness CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "emuharness",
		Short: "Black-box validation harness for hardware emulators",
		Long: `emuharness launches a hardware emulator against a fixed catalog of scenarios,
classifies each run from its exit status, output and timing, and writes a
structured JSON report. The default catalog targets QEMU's RP2040
(raspberrypi-pico) machine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "configuration file (default: nearest "+config.FileName+")")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewMCPCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "emuharness: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// logger returns a text logger on w. Warnings and errors only, unless
// --verbose is set.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config if given, or searches upward from the working
// directory.
func (o *RootOptions) loadConfig() (*config.LoadResult, error) {
	if o.Config != "" {
		return config.LoadFile(o.Config)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	return config.Load(wd)
}
