package report

import (
	"time"

	"github.com/deixis/emuharness/internal/classify"
)

var (
	runStart  = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	emittedAt = time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)
)

// fixtureSummary is the summary behind testdata/golden/report.golden.
func fixtureSummary() *RunSummary {
	agg := NewAggregator("run-1", "/opt/qemu/bin/qemu-system-arm", runStart)
	agg.Record(classify.Verdict{
		Name:      "Board Availability",
		Passed:    true,
		Rationale: "found raspberrypi-pico in stdout",
		Duration:  1250 * time.Millisecond,
		Timestamp: runStart.Add(1250 * time.Millisecond),
	})
	agg.Record(classify.Verdict{
		Name:      "Firmware Loading",
		Passed:    false,
		Fallback:  true,
		Rationale: "fallback (fail-by-default): 0 of 1 required keywords (could not load kernel, nonexistent.elf) in stderr",
		Duration:  500 * time.Millisecond,
		Timestamp: runStart.Add(1750 * time.Millisecond),
	})
	return agg.Finalize(runStart.Add(3750 * time.Millisecond))
}
