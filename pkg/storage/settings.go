package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"k8s.io/utils/clock"

	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// SettingsStore keeps per-workload optimization settings and the derived
// index of enabled workloads consistent on write and self-healing on read.
type SettingsStore struct {
	backend Backend
	clock   clock.PassiveClock
}

// NewSettingsStore wraps a backend
func NewSettingsStore(backend Backend) *SettingsStore {
	return &SettingsStore{backend: backend, clock: clock.RealClock{}}
}

// WithClock replaces the clock used to stamp UpdatedAt
func (s *SettingsStore) WithClock(c clock.PassiveClock) *SettingsStore {
	s.clock = c
	return s
}

// Backend exposes the underlying backend
func (s *SettingsStore) Backend() Backend {
	return s.backend
}

// Upsert writes the record, then adds the identity to the enabled index or
// removes it. Both index operations are idempotent. Invalid identities and
// scores outside [models.MinScore, models.MaxScore] are rejected with a
// ValidationError before anything is written. An index failure after a
// successful record write is returned as a StoreError with StageIndex.
func (s *SettingsStore) Upsert(ctx context.Context, id models.WorkloadIdentity, prefs models.Preferences, score float64, enabled bool) (*models.OptimizationSettings, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateScore(score); err != nil {
		return nil, err
	}

	settings := &models.OptimizationSettings{
		Identity:    id,
		Preferences: prefs,
		Score:       score,
		Enabled:     enabled,
		UpdatedAt:   s.clock.Now().UTC(),
	}

	if err := s.backend.PutRecord(ctx, settings); err != nil {
		return nil, &StoreError{Op: "upsert", Stage: StageRecord, Identity: id, Err: err}
	}

	var err error
	if enabled {
		err = s.backend.AddToIndex(ctx, id)
	} else {
		_, err = s.backend.RemoveFromIndex(ctx, id)
	}
	if err != nil {
		return settings, &StoreError{Op: "upsert", Stage: StageIndex, Identity: id, Err: err}
	}

	logging.Log.Debugw("optimization settings updated", "workload", id.String(), "score", score, "enabled", enabled)
	return settings, nil
}

// Get returns the settings for id or ErrNotFound
func (s *SettingsStore) Get(ctx context.Context, id models.WorkloadIdentity) (*models.OptimizationSettings, error) {
	settings, err := s.backend.GetRecord(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Stage: StageRecord, Identity: id, Err: err}
	}
	return settings, nil
}

// Delete removes the record and its index entry. Both removals are always
// attempted. A failure of either is returned even if the other succeeded;
// ErrNotFound is returned when there was no record and nothing failed.
func (s *SettingsStore) Delete(ctx context.Context, id models.WorkloadIdentity) error {
	existed, recordErr := s.backend.DeleteRecord(ctx, id)
	_, indexErr := s.backend.RemoveFromIndex(ctx, id)

	var errs []error
	if recordErr != nil {
		errs = append(errs, &StoreError{Op: "delete", Stage: StageRecord, Identity: id, Err: recordErr})
	}
	if indexErr != nil {
		errs = append(errs, &StoreError{Op: "delete", Stage: StageIndex, Identity: id, Err: indexErr})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !existed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	logging.Log.Debugw("optimization settings deleted", "workload", id.String())
	return nil
}

// ListEnabledWorkloads reads the index and re-validates every member against
// its record. Members whose record is gone or no longer enabled are skipped.
func (s *SettingsStore) ListEnabledWorkloads(ctx context.Context) ([]models.EnabledWorkload, error) {
	members, err := s.backend.IndexMembers(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Stage: StageIndex, Err: err}
	}

	workloads := make([]models.EnabledWorkload, 0, len(members))
	for _, id := range members {
		settings, err := s.backend.GetRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			logging.Log.Debugw("skipping stale index member without record", "workload", id.String())
			continue
		}
		if err != nil {
			return nil, &StoreError{Op: "list", Stage: StageRecord, Identity: id, Err: err}
		}
		if !settings.Enabled {
			logging.Log.Debugw("skipping stale index member that is disabled", "workload", id.String())
			continue
		}
		workloads = append(workloads, models.EnabledWorkload{Identity: id, Settings: settings})
	}

	sort.Slice(workloads, func(i, j int) bool {
		return workloads[i].Identity.Key() < workloads[j].Identity.Key()
	})
	return workloads, nil
}

// ListAll returns every record, enabled or not
func (s *SettingsStore) ListAll(ctx context.Context) ([]*models.OptimizationSettings, error) {
	records, err := s.backend.ScanRecords(ctx)
	if err != nil {
		return nil, &StoreError{Op: "scan", Stage: StageRecord, Err: err}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity.Key() < records[j].Identity.Key()
	})
	return records, nil
}

// IndexMembers returns the raw, unvalidated index
func (s *SettingsStore) IndexMembers(ctx context.Context) ([]models.WorkloadIdentity, error) {
	members, err := s.backend.IndexMembers(ctx)
	if err != nil {
		return nil, &StoreError{Op: "index", Stage: StageIndex, Err: err}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Key() < members[j].Key() })
	return members, nil
}

// ReconcileResult counts the index repairs made by Reconcile
type ReconcileResult struct {
	Removed int
	Added   int
}

// Reconcile brings the index back in line with the records: stale members are
// removed and enabled records missing from the index are added.
func (s *SettingsStore) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	records, err := s.backend.ScanRecords(ctx)
	if err != nil {
		return result, &StoreError{Op: "reconcile", Stage: StageRecord, Err: err}
	}
	members, err := s.backend.IndexMembers(ctx)
	if err != nil {
		return result, &StoreError{Op: "reconcile", Stage: StageIndex, Err: err}
	}

	enabled := make(map[models.WorkloadIdentity]bool, len(records))
	for _, r := range records {
		if r.Enabled {
			enabled[r.Identity] = true
		}
	}
	indexed := make(map[models.WorkloadIdentity]bool, len(members))
	for _, id := range members {
		indexed[id] = true
		if enabled[id] {
			continue
		}
		if _, err := s.backend.RemoveFromIndex(ctx, id); err != nil {
			return result, &StoreError{Op: "reconcile", Stage: StageIndex, Identity: id, Err: err}
		}
		result.Removed++
	}
	for id := range enabled {
		if indexed[id] {
			continue
		}
		if err := s.backend.AddToIndex(ctx, id); err != nil {
			return result, &StoreError{Op: "reconcile", Stage: StageIndex, Identity: id, Err: err}
		}
		result.Added++
	}

	return result, nil
}

// Flush removes every record and index entry
func (s *SettingsStore) Flush(ctx context.Context) error {
	return s.backend.Flush(ctx)
}

// Ping checks backend connectivity
func (s *SettingsStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close closes the backend
func (s *SettingsStore) Close() error {
	return s.backend.Close()
}
