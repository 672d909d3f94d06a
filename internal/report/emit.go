package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Emitter persists a finalized summary and renders its transcript.
type Emitter struct {
	Transcript *Transcript  // optional
	Store      Store        // optional run history, keyed by run id
	Logger     *slog.Logger // optional
	Now        func() time.Time
}

// Emit builds the report, prints the summary and writes the report to dest
// (skipped when dest is empty) and to the Store. Persistence errors are
// returned joined; the returned report is valid regardless.
func (e *Emitter) Emit(s *RunSummary, dest string) (*Report, error) {
	r, err := Build(s, e.now())
	if err != nil {
		return nil, err
	}
	if e.Transcript != nil {
		e.Transcript.Summary(s)
	}

	var errs []error
	if dest != "" {
		if err := writeReport(dest, r); err != nil {
			err = fmt.Errorf("writing report %s: %w", dest, err)
			errs = append(errs, err)
			e.logger().Error("report not saved", "path", dest, "error", err)
			if e.Transcript != nil {
				e.Transcript.SaveFailed(dest, err)
			}
		} else {
			e.logger().Info("report saved", "path", dest, "run_id", r.RunID, "digest", r.Digest)
			if e.Transcript != nil {
				e.Transcript.Saved(dest)
			}
		}
	}
	if e.Store != nil {
		if err := e.Store.Save(r); err != nil {
			errs = append(errs, err)
			e.logger().Warn("report not stored", "run_id", r.RunID, "error", err)
		}
	}
	return r, errors.Join(errs...)
}

func writeReport(path string, r *Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

func (e *Emitter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Emitter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
