package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/deixis/emuharness/internal/classify"
)

const rule = "============================================================"

// Transcript renders line-oriented progress and a final summary for humans.
// It is informational only and never parsed.
type Transcript struct {
	w      io.Writer
	color  bool
	styles transcriptStyles
}

type transcriptStyles struct {
	title lipgloss.Style
	label lipgloss.Style
	pass  lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
}

// NewTranscript writes to w, colouring output when color is set.
func NewTranscript(w io.Writer, color bool) *Transcript {
	t := &Transcript{w: w, color: color}
	if color {
		r := lipgloss.NewRenderer(w)
		t.styles = transcriptStyles{
			title: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
			label: r.NewStyle().Foreground(lipgloss.Color("11")),
			pass:  r.NewStyle().Foreground(lipgloss.Color("10")),
			fail:  r.NewStyle().Foreground(lipgloss.Color("9")),
			warn:  r.NewStyle().Foreground(lipgloss.Color("14")),
		}
	}
	return t
}

func (t *Transcript) paint(st lipgloss.Style, s string) string {
	if !t.color {
		return s
	}
	return st.Render(s)
}

func (t *Transcript) printf(format string, args ...any) {
	fmt.Fprintf(t.w, format, args...)
}

func (t *Transcript) banner(title string) {
	t.printf("%s\n", t.paint(t.styles.title, rule))
	t.printf("%s\n", t.paint(t.styles.title, "  "+title))
	t.printf("%s\n", t.paint(t.styles.title, rule))
}

// RunStarted prints the run header.
func (t *Transcript) RunStarted(subject string, total int) {
	t.printf("\n")
	t.banner("Emulator Validation Suite")
	t.printf("\n%s %s\n", t.paint(t.styles.label, "Subject:"), subject)
	t.printf("%s %d total\n", t.paint(t.styles.label, "Scenarios:"), total)
}

// ScenarioStarted prints the heading for one scenario.
func (t *Transcript) ScenarioStarted(ordinal, total int, name string) {
	t.printf("\n%s\n", t.paint(t.styles.warn, fmt.Sprintf("[TEST %d/%d] %s", ordinal, total, name)))
}

// ScenarioFinished prints a verdict line.
func (t *Transcript) ScenarioFinished(v classify.Verdict) {
	t.printf("  %s - %s (%.2fs)\n", t.mark(v), v.Rationale, v.Duration.Seconds())
}

// Summary prints totals and one line per scenario.
func (t *Transcript) Summary(s *RunSummary) {
	total := s.Total()
	t.printf("\n")
	t.banner("Summary")
	t.printf("\n%s %d/%d\n", t.paint(t.styles.pass, "Passed:"), s.Passed, total)
	t.printf("%s %d/%d\n", t.paint(t.styles.fail, "Failed:"), s.Failed, total)
	if n := s.Fallbacks(); n > 0 {
		t.printf("%s %d (decided without a confirming signal)\n", t.paint(t.styles.warn, "Fallback:"), n)
	}
	t.printf("%s %.2fs\n\n", t.paint(t.styles.label, "Duration:"), s.Duration.Seconds())

	width := 0
	for _, v := range s.Verdicts {
		width = max(width, lipgloss.Width(v.Name))
	}
	for _, v := range s.Verdicts {
		t.printf("  %s  %s  %6.2fs\n", t.mark(v), padRight(v.Name, width), v.Duration.Seconds())
	}
	t.printf("\n")

	if s.AllPassed() {
		t.printf("%s\n\n", t.paint(t.styles.pass, "✓ ALL SCENARIOS PASSED"))
	} else {
		t.printf("%s\n\n", t.paint(t.styles.fail, "✗ SOME SCENARIOS FAILED"))
	}
}

// Saved notes where the structured report was written.
func (t *Transcript) Saved(path string) {
	t.printf("%s %s\n", t.paint(t.styles.warn, "Report saved:"), path)
}

// SaveFailed notes that the structured report could not be written.
func (t *Transcript) SaveFailed(path string, err error) {
	t.printf("%s %s: %v\n", t.paint(t.styles.fail, "Report not saved:"), path, err)
}

// Report re-renders a persisted report.
func (t *Transcript) Report(r *Report) {
	t.printf("\n")
	t.banner("Report " + r.RunID)
	t.printf("\n%s %s\n", t.paint(t.styles.label, "Subject:"), r.SubjectPath)
	t.printf("%s %s\n", t.paint(t.styles.label, "Started:"), r.RunTimestamp)
	if r.EmittedAt != "" {
		t.printf("%s %s\n", t.paint(t.styles.label, "Emitted:"), r.EmittedAt)
	}
	t.printf("%s %.2fs\n", t.paint(t.styles.label, "Duration:"), r.DurationSeconds)
	t.printf("%s %d/%d\n", t.paint(t.styles.pass, "Passed:"), r.Summary.Passed, r.Summary.Total)
	t.printf("%s %d/%d\n\n", t.paint(t.styles.fail, "Failed:"), r.Summary.Failed, r.Summary.Total)

	for _, sc := range r.Scenarios {
		v := classify.Verdict{Passed: sc.Passed, Fallback: sc.Fallback}
		t.printf("  %s  %s\n", t.mark(v), sc.Name)
		t.printf("      %s (%.2fs)\n", sc.Rationale, sc.DurationSeconds)
	}
	t.printf("\n")
	if r.Digest != "" {
		t.printf("%s %s\n", t.paint(t.styles.label, "Digest:"), r.Digest)
	}
}

func (t *Transcript) mark(v classify.Verdict) string {
	label := "✗ FAIL"
	st := t.styles.fail
	if v.Passed {
		label = "✓ PASS"
		st = t.styles.pass
	}
	if v.Fallback {
		label += "*"
	}
	return t.paint(st, label)
}

// padRight pads s to width terminal cells.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
