package generate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/output"
)

// ReportFileName is the name of the persisted report in the destination root.
const ReportFileName = "build-report.json"

// Failure records a document that produced no output.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes one generation run. It is assembled by a single
// aggregator and not modified once Generate returns, except by Finish.
type Report struct {
	BuildID   string
	Start     time.Time
	End       time.Time
	Workers   int
	Generated int
	Drafts    int
	Failed    int
	Failures  []Failure
	Canceled  bool
}

func newReport() *Report {
	return &Report{BuildID: uuid.NewString(), Start: time.Now()}
}

// Total returns the number of documents accounted for.
func (r *Report) Total() int { return r.Generated + r.Drafts + r.Failed }

// Duration returns the elapsed build time.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Finish stamps the end time.
func (r *Report) Finish() { r.End = time.Now() }

// Outcome derives the overall result.
func (r *Report) Outcome() metrics.BuildOutcome {
	switch {
	case r.Canceled:
		return metrics.OutcomeCanceled
	case r.Failed > 0 && r.Generated == 0:
		return metrics.OutcomeFailed
	case r.Failed > 0:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeSuccess
	}
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("generated=%d drafts=%d failed=%d workers=%d duration=%s outcome=%s",
		r.Generated, r.Drafts, r.Failed, r.Workers, r.Duration().Truncate(time.Millisecond), r.Outcome())
}

// AddFailure records a document that failed outside the worker pool, such as
// an unreadable source directory found while enumerating.
func (r *Report) AddFailure(path string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Path: path, Err: err})
}

func (r *Report) merge(b bucketResult) {
	r.Generated += b.generated
	r.Drafts += b.drafts
	r.Failed += len(b.failures)
	r.Failures = append(r.Failures, b.failures...)
}

type reportFailure struct {
	Path     string `json:"path"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error"`
}

type reportDocument struct {
	SchemaVersion int             `json:"schema_version"`
	BuildID       string          `json:"build_id"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	DurationMS    int64           `json:"duration_ms"`
	Workers       int             `json:"workers"`
	Generated     int             `json:"generated"`
	Drafts        int             `json:"drafts"`
	Failed        int             `json:"failed"`
	Outcome       string          `json:"outcome"`
	Failures      []reportFailure `json:"failures"`
}

// MarshalJSON renders errors as strings with their classification.
func (r *Report) MarshalJSON() ([]byte, error) {
	doc := reportDocument{
		SchemaVersion: 1,
		BuildID:       r.BuildID,
		Start:         r.Start,
		End:           r.End,
		DurationMS:    r.Duration().Milliseconds(),
		Workers:       r.Workers,
		Generated:     r.Generated,
		Drafts:        r.Drafts,
		Failed:        r.Failed,
		Outcome:       string(r.Outcome()),
		Failures:      make([]reportFailure, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		entry := reportFailure{Path: f.Path}
		if f.Err != nil {
			entry.Error = f.Err.Error()
			entry.Category = string(ferrors.GetCategory(f.Err))
		}
		doc.Failures = append(doc.Failures, entry)
	}
	return json.Marshal(doc)
}

// Persist writes the report atomically into dir as ReportFileName.
// Best effort; errors are returned for caller logging but do not change the build outcome.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := output.WriteFileAtomic(filepath.Join(dir, ReportFileName), append(data, '\n')); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}
	return nil
}
