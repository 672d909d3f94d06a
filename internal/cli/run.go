package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/deixis/emuharness/internal/config"
	"github.com/deixis/emuharness/internal/report"
	"github.com/deixis/emuharness/internal/runner"
	"github.com/deixis/emuharness/internal/workflow"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Subject string
	Output  string
	Machine string
	Timeout time.Duration
	Only    []string
	NoColor bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario catalog against the emulator",
		Long: `Run every scenario in the catalog against the emulator, one process at a
time, print a transcript and write the JSON report.

Exit status is 0 when every scenario passed and 1 when any scenario failed,
the emulator could not be found, or the run was interrupted.

Example:
  emuharness run
  emuharness run --subject ./build/qemu-system-arm --output report.json
  emuharness run --only "Board Availability" --only "Firmware Loading"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Subject, "subject", "s", "", "emulator executable (default: config subject, or "+config.DefaultSubject+" on PATH)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "report path (default: config output, or "+config.DefaultOutput+")")
	cmd.Flags().StringVarP(&opts.Machine, "machine", "M", "", "emulated machine name (default: raspberrypi-pico)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-scenario timeout (default: each scenario's own budget)")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "run only the named scenarios, in catalog order")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable coloured output")

	return cmd
}

func runHarness(cmd *cobra.Command, opts *RunOptions) error {
	log := opts.logger(cmd.ErrOrStderr())

	loaded, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	if loaded.Path != "" {
		log.Debug("config loaded", "path", loaded.Path)
	}

	o := workflow.Overrides{
		Subject: localPath(opts.Subject),
		Machine: opts.Machine,
		Timeout: opts.Timeout,
		Only:    opts.Only,
	}
	engine, err := workflow.Setup(loaded, o, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "preparing run", err)
	}

	out := cmd.OutOrStdout()
	tr := report.NewTranscript(out, !opts.NoColor && isTerminal(out))
	engine.Observer = tr

	em := &report.Emitter{Transcript: tr, Logger: log}
	if dir := loaded.Config.History.Dir; dir != "" {
		em.Store = report.NewDiskStore(loaded.ResolvePath(dir))
	}

	dest := opts.Output
	if dest == "" {
		dest = loaded.ResolvePath(loaded.Config.OutputPath())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := engine.RunAndEmit(ctx, em, dest)
	switch {
	case errors.Is(err, runner.ErrSubjectUnavailable):
		fmt.Fprintf(out, "Precondition failed: %v\n", err)
		return WrapExitError(ExitFailure, "precondition failed", err)
	case errors.Is(err, context.Canceled):
		return WrapExitError(ExitFailure, "interrupted", err)
	case err != nil:
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if code := res.ExitCode(); code != ExitSuccess {
		return NewExitError(code, fmt.Sprintf("%d of %d scenarios failed", res.Summary.Failed, res.Summary.Total()))
	}
	return nil
}

// localPath makes a path flag absolute against the working directory.
// Bare command names are left for PATH lookup.
func localPath(p string) string {
	if p == "" || (!strings.ContainsRune(p, filepath.Separator) && !strings.Contains(p, "/")) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
