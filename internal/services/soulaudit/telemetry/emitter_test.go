package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage/memory"
)

func TestEmitCuration(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	emitter := NewEmitter(store).WithClock(func() time.Time { return now })

	err := emitter.EmitCuration(context.Background(), CurationEvent{
		AuditRunID:         "run-1",
		SessionToken:       "sess-1",
		SplitValid:         true,
		AIPrimaryCount:     3,
		CuratedPrefabCount: 2,
		AvgConfidence:      0.82,
		ResponseText:       "weary and anxious",
		MatchedTerms:       []string{"anxious", "weary"},
	})
	if err != nil {
		t.Fatalf("EmitCuration: %v", err)
	}

	record, ok := store.TelemetryByRun("run-1")
	if !ok {
		t.Fatal("telemetry not persisted")
	}
	if record.Strategy != StrategyCuratedCandidates {
		t.Fatalf("strategy = %q", record.Strategy)
	}
	if !record.SplitValid || record.AIPrimaryCount != 3 || record.CuratedPrefabCount != 2 {
		t.Fatalf("record = %+v", record)
	}
	if !record.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", record.CreatedAt, now)
	}
	if record.ID == "" {
		t.Fatal("record missing id")
	}
}

func TestEmitCurationTruncatesExcerpt(t *testing.T) {
	store := memory.New()
	emitter := NewEmitter(store)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	if err := emitter.EmitCuration(context.Background(), CurationEvent{
		AuditRunID:   "run-1",
		ResponseText: string(long),
	}); err != nil {
		t.Fatalf("EmitCuration: %v", err)
	}
	record, _ := store.TelemetryByRun("run-1")
	if len(record.ResponseExcerpt) != 160 {
		t.Fatalf("excerpt length = %d, want 160", len(record.ResponseExcerpt))
	}
}

func TestEmitCurationNilSafe(t *testing.T) {
	var emitter *Emitter
	if err := emitter.EmitCuration(context.Background(), CurationEvent{AuditRunID: "run-1"}); err != nil {
		t.Fatalf("nil emitter returned error: %v", err)
	}
	if err := NewEmitter(nil).EmitCuration(context.Background(), CurationEvent{}); err != nil {
		t.Fatalf("nil store returned error: %v", err)
	}
}
