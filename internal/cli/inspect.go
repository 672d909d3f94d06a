package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deixis/emuharness/internal/report"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	JSON    bool
	NoColor bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <report.json | run-id>",
		Short: "Re-render a persisted report and verify its digest",
		Long: `Re-render a report written by "emuharness run" and check that its content
still matches the recorded digest.

The argument is a report file, or a run ID when history.dir is configured.
Exit status is 1 when the digest does not match or any scenario failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectReport(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable coloured output")

	return cmd
}

func inspectReport(cmd *cobra.Command, opts *InspectOptions, ref string) error {
	r, err := opts.loadReport(ref)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading report", err)
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		data, err := report.Marshal(r)
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding report", err)
		}
		_, _ = out.Write(data)
	} else {
		report.NewTranscript(out, !opts.NoColor && isTerminal(out)).Report(r)
	}

	if err := report.Verify(r); err != nil {
		return WrapExitError(ExitFailure, "verifying report", err)
	}
	if code := r.ExitCode(); code != ExitSuccess {
		return NewExitError(code, fmt.Sprintf("%d of %d scenarios failed", r.Summary.Failed, r.Summary.Total))
	}
	return nil
}

// loadReport reads ref as a file, falling back to the configured history.
func (o *InspectOptions) loadReport(ref string) (*report.Report, error) {
	data, err := os.ReadFile(ref)
	if err == nil {
		return report.Decode(data)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	loaded, cfgErr := o.loadConfig()
	if cfgErr != nil {
		return nil, cfgErr
	}
	dir := loaded.Config.History.Dir
	if dir == "" {
		return nil, fmt.Errorf("%s: no such file, and no history.dir configured", ref)
	}
	return report.NewDiskStore(loaded.ResolvePath(dir)).Load(ref)
}
