package metrics

import "time"

// DocumentResult enumerates per-document outcomes.
type DocumentResult string

const (
	DocumentGenerated DocumentResult = "generated"
	DocumentDraft     DocumentResult = "draft"
	DocumentFailed    DocumentResult = "failed"
)

// BuildOutcome enumerates final build states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomePartial  BuildOutcome = "partial"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// RebuildKind enumerates watch-mode rebuilds.
type RebuildKind string

const (
	RebuildPage    RebuildKind = "page"
	RebuildCatalog RebuildKind = "catalog"
	RebuildFull    RebuildKind = "full"
)

// Recorder defines observability hooks for builds. Implementations must be
// safe for concurrent use; workers call IncDocumentResult and
// ObserveRenderDuration in parallel.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	ObserveRenderDuration(d time.Duration)
	IncDocumentResult(result DocumentResult)
	IncBuildOutcome(outcome BuildOutcome)
	IncRebuild(kind RebuildKind, success bool)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObserveRenderDuration(time.Duration)        {}
func (NoopRecorder) IncDocumentResult(DocumentResult)           {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)               {}
func (NoopRecorder) IncRebuild(RebuildKind, bool)               {}
func (NoopRecorder) SetWorkers(int)                             {}
