// Package report aggregates scenario verdicts into a run summary and emits
// it as a structured JSON report and a console transcript. Reports can be
// kept in a Store for later inspection.
package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// TimeFormat is the ISO-8601 layout used for every timestamp in a report.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Store persists and retrieves reports by run ID.
type Store interface {
	Save(r *Report) error
	Load(runID string) (*Report, error)
}

// Report is the persisted form of a RunSummary. Field names are read by
// downstream tooling and must not change.
type Report struct {
	RunID           string           `json:"runId,omitempty"`
	SubjectPath     string           `json:"subjectPath"`
	RunTimestamp    string           `json:"runTimestamp"`
	EmittedAt       string           `json:"emittedAt,omitempty"`
	DurationSeconds float64          `json:"durationSeconds"`
	Digest          string           `json:"digest,omitempty"`
	Summary         Totals           `json:"summary"`
	Scenarios       []ScenarioResult `json:"scenarios"`
}

// Totals holds the run-level counts.
type Totals struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ScenarioResult is one verdict in a report.
type ScenarioResult struct {
	Name            string  `json:"name"`
	Passed          bool    `json:"passed"`
	Rationale       string  `json:"rationale"`
	Fallback        bool    `json:"fallback"`
	DurationSeconds float64 `json:"durationSeconds"`
	Timestamp       string  `json:"timestamp"`
}

// ExitCode is 0 if the report holds no failures and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// Build converts a summary into a report stamped with emittedAt.
// The digest covers everything except emittedAt.
func Build(s *RunSummary, emittedAt time.Time) (*Report, error) {
	r := &Report{
		RunID:           s.RunID,
		SubjectPath:     s.SubjectPath,
		RunTimestamp:    formatTime(s.RunTimestamp),
		DurationSeconds: seconds(s.Duration),
		Summary: Totals{
			Total:  s.Total(),
			Passed: s.Passed,
			Failed: s.Failed,
		},
		Scenarios: make([]ScenarioResult, 0, len(s.Verdicts)),
	}
	for _, v := range s.Verdicts {
		r.Scenarios = append(r.Scenarios, ScenarioResult{
			Name:            v.Name,
			Passed:          v.Passed,
			Rationale:       v.Rationale,
			Fallback:        v.Fallback,
			DurationSeconds: seconds(v.Duration),
			Timestamp:       formatTime(v.Timestamp),
		})
	}

	digest, err := Digest(r)
	if err != nil {
		return nil, err
	}
	r.Digest = digest
	r.EmittedAt = formatTime(emittedAt)
	return r, nil
}

// Digest returns the SHA-256 of the RFC 8785 canonical form of r with
// emittedAt and digest left out.
func Digest(r *Report) (string, error) {
	c := *r
	c.EmittedAt = ""
	c.Digest = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("marshalling report %s: %w", r.RunID, err)
	}
	canon, err := jsoncanonicalizer.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalizing report %s: %w", r.RunID, err)
	}
	sum := sha256.Sum256(canon)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// ErrDigestMismatch is returned by Verify when a report's content no
// longer matches its digest.
var ErrDigestMismatch = errors.New("report digest mismatch")

// Verify recomputes the digest of r and compares it with r.Digest.
func Verify(r *Report) error {
	if r.Digest == "" {
		return fmt.Errorf("%w: report %s carries no digest", ErrDigestMismatch, r.RunID)
	}
	got, err := Digest(r)
	if err != nil {
		return err
	}
	if got != r.Digest {
		return fmt.Errorf("%w: report %s has %s, content hashes to %s", ErrDigestMismatch, r.RunID, r.Digest, got)
	}
	return nil
}

// Marshal encodes r as indented JSON with a trailing newline.
func Marshal(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("marshalling report %s: %w", r.RunID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a report produced by Marshal.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// seconds rounds d to millisecond precision.
func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

type notFoundError string

func (e notFoundError) Error() string { return "report " + string(e) + " not found" }

func errNotFound(runID string) error { return notFoundError(runID) }
