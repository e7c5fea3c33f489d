// Package memory provides a mutex-guarded in-process implementation of the
// soul audit storage contracts. It backs tests and single-node fallback
// deployments.
package memory

import (
	"context"
	"sync"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// Store implements storage.Store with in-process maps.
type Store struct {
	mu          sync.Mutex
	runs        map[string]storage.AuditRun
	optionsByID map[string][]curation.Option
	consents    map[string]storage.ConsentRecord
	selections  map[string]storage.Selection
	plans       map[string]storage.PlanInstance
	planDays    map[string][]storage.PlanDay
	counts      map[string]int
	telemetry   map[string]storage.TelemetryRecord
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		runs:        make(map[string]storage.AuditRun),
		optionsByID: make(map[string][]curation.Option),
		consents:    make(map[string]storage.ConsentRecord),
		selections:  make(map[string]storage.Selection),
		plans:       make(map[string]storage.PlanInstance),
		planDays:    make(map[string][]storage.PlanDay),
		counts:      make(map[string]int),
		telemetry:   make(map[string]storage.TelemetryRecord),
	}
}

func (s *Store) CreateRun(_ context.Context, run storage.AuditRun, options []curation.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.optionsByID[run.ID] = cloneOptions(options)
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (storage.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return storage.AuditRun{}, storage.ErrNotFound
	}
	return run, nil
}

func (s *Store) GetOptions(_ context.Context, runID string) ([]curation.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	options, ok := s.optionsByID[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneOptions(options), nil
}

func (s *Store) ReplaceOptions(_ context.Context, runID string, options []curation.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return storage.ErrNotFound
	}
	run.RerollUsed = true
	s.runs[runID] = run
	s.optionsByID[runID] = cloneOptions(options)
	return nil
}

func (s *Store) PutConsent(_ context.Context, record storage.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[record.AuditRunID] = record
	return nil
}

func (s *Store) GetConsent(_ context.Context, runID string) (storage.ConsentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.consents[runID]
	if !ok {
		return storage.ConsentRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *Store) PutSelection(_ context.Context, selection storage.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[selection.AuditRunID] = selection
	return nil
}

func (s *Store) GetSelection(_ context.Context, runID string) (storage.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	selection, ok := s.selections[runID]
	if !ok {
		return storage.Selection{}, storage.ErrNotFound
	}
	return selection, nil
}

func (s *Store) CreatePlan(_ context.Context, instance storage.PlanInstance, days []storage.PlanDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[instance.PlanToken] = instance
	s.planDays[instance.PlanToken] = append([]storage.PlanDay(nil), days...)
	return nil
}

func (s *Store) GetPlan(_ context.Context, planToken string) (storage.PlanInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.plans[planToken]
	if !ok {
		return storage.PlanInstance{}, storage.ErrNotFound
	}
	return instance, nil
}

func (s *Store) GetPlanDay(_ context.Context, planToken string, dayNumber int) (storage.PlanDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	days, ok := s.planDays[planToken]
	if !ok {
		return storage.PlanDay{}, storage.ErrNotFound
	}
	for _, day := range days {
		if day.DayNumber == dayNumber {
			return day, nil
		}
	}
	return storage.PlanDay{}, storage.ErrNotFound
}

func (s *Store) ListPlanDays(_ context.Context, planToken string) ([]storage.PlanDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	days, ok := s.planDays[planToken]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]storage.PlanDay(nil), days...), nil
}

func (s *Store) IncrementAuditCount(_ context.Context, sessionToken string, ceiling int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.counts[sessionToken]
	if count >= ceiling {
		return count, false, nil
	}
	count++
	s.counts[sessionToken] = count
	return count, true, nil
}

func (s *Store) GetAuditCount(_ context.Context, sessionToken string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[sessionToken], nil
}

func (s *Store) SaveTelemetry(_ context.Context, record storage.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry[record.AuditRunID] = record
	return nil
}

// TelemetryByRun exposes saved telemetry for tests.
func (s *Store) TelemetryByRun(runID string) (storage.TelemetryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.telemetry[runID]
	return record, ok
}

func (s *Store) ClearSessionAuditState(_ context.Context, sessionToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counts, sessionToken)
	for id, run := range s.runs {
		if run.SessionToken != sessionToken {
			continue
		}
		delete(s.runs, id)
		delete(s.optionsByID, id)
		delete(s.consents, id)
		delete(s.selections, id)
		delete(s.telemetry, id)
	}
	for token, instance := range s.plans {
		if instance.SessionToken != sessionToken {
			continue
		}
		delete(s.plans, token)
		delete(s.planDays, token)
	}
	return nil
}

func cloneOptions(options []curation.Option) []curation.Option {
	out := make([]curation.Option, len(options))
	copy(out, options)
	for i := range out {
		if out[i].Seed != nil {
			seed := *out[i].Seed
			out[i].Seed = &seed
		}
	}
	return out
}
