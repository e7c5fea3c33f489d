// Package telemetry records per-run curation facts for operational review.
package telemetry

import (
	"context"
	"time"

	"github.com/louisbranch/euangelion/internal/platform/id"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// StrategyCuratedCandidates is the only curation strategy this core runs;
// generative strategies live in the external producer.
const StrategyCuratedCandidates = "curated_candidates"

const excerptLimit = 160

// Emitter persists curation telemetry records.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a telemetry emitter. A nil store yields a no-op
// emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// WithClock overrides the emitter's time source for tests.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	e.clock = clock
	return e
}

// CurationEvent is the per-run ranking outcome worth keeping.
type CurationEvent struct {
	AuditRunID         string
	SessionToken       string
	SplitValid         bool
	AIPrimaryCount     int
	CuratedPrefabCount int
	AvgConfidence      float64
	ResponseText       string
	MatchedTerms       []string
}

// EmitCuration records one curation outcome. It is a no-op when the emitter
// or its store is nil; telemetry never fails the serving path.
func (e *Emitter) EmitCuration(ctx context.Context, evt CurationEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	excerpt := evt.ResponseText
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}
	recordID, err := id.NewID()
	if err != nil {
		return err
	}
	return e.store.SaveTelemetry(ctx, storage.TelemetryRecord{
		ID:                 recordID,
		AuditRunID:         evt.AuditRunID,
		SessionToken:       evt.SessionToken,
		Strategy:           StrategyCuratedCandidates,
		SplitValid:         evt.SplitValid,
		AIPrimaryCount:     evt.AIPrimaryCount,
		CuratedPrefabCount: evt.CuratedPrefabCount,
		AvgConfidence:      evt.AvgConfidence,
		ResponseExcerpt:    excerpt,
		MatchedTerms:       append([]string(nil), evt.MatchedTerms...),
		CreatedAt:          e.clock().UTC(),
	})
}
