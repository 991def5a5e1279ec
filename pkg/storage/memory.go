package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// Op names a MemoryBackend operation for fault injection
type Op string

const (
	OpPutRecord       Op = "PutRecord"
	OpGetRecord       Op = "GetRecord"
	OpDeleteRecord    Op = "DeleteRecord"
	OpScanRecords     Op = "ScanRecords"
	OpAddToIndex      Op = "AddToIndex"
	OpRemoveFromIndex Op = "RemoveFromIndex"
	OpIndexMembers    Op = "IndexMembers"
)

// MemoryBackend implements Backend in process. It is used for development
// runs and tests.
type MemoryBackend struct {
	mu              sync.RWMutex
	records         map[models.WorkloadIdentity]*models.OptimizationSettings
	index           mapset.Set[models.WorkloadIdentity]
	recommendations []*models.Recommendation
	faults          map[Op]error
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[models.WorkloadIdentity]*models.OptimizationSettings),
		index:   mapset.NewSet[models.WorkloadIdentity](),
		faults:  make(map[Op]error),
	}
}

// InjectFault makes every subsequent call of op fail with err until cleared
func (m *MemoryBackend) InjectFault(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = err
}

// ClearFaults removes all injected faults
func (m *MemoryBackend) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = make(map[Op]error)
}

func (m *MemoryBackend) fault(op Op) error {
	return m.faults[op]
}

func (m *MemoryBackend) PutRecord(ctx context.Context, settings *models.OptimizationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpPutRecord); err != nil {
		return err
	}
	m.records[settings.Identity] = copySettings(settings)
	return nil
}

func (m *MemoryBackend) GetRecord(ctx context.Context, id models.WorkloadIdentity) (*models.OptimizationSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault(OpGetRecord); err != nil {
		return nil, err
	}
	settings, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySettings(settings), nil
}

func (m *MemoryBackend) DeleteRecord(ctx context.Context, id models.WorkloadIdentity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpDeleteRecord); err != nil {
		return false, err
	}
	_, ok := m.records[id]
	delete(m.records, id)
	return ok, nil
}

func (m *MemoryBackend) ScanRecords(ctx context.Context) ([]*models.OptimizationSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault(OpScanRecords); err != nil {
		return nil, err
	}
	out := make([]*models.OptimizationSettings, 0, len(m.records))
	for _, s := range m.records {
		out = append(out, copySettings(s))
	}
	return out, nil
}

func (m *MemoryBackend) AddToIndex(ctx context.Context, id models.WorkloadIdentity) error {
	m.mu.RLock()
	err := m.fault(OpAddToIndex)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	m.index.Add(id)
	return nil
}

func (m *MemoryBackend) RemoveFromIndex(ctx context.Context, id models.WorkloadIdentity) (bool, error) {
	m.mu.RLock()
	err := m.fault(OpRemoveFromIndex)
	m.mu.RUnlock()
	if err != nil {
		return false, err
	}
	existed := m.index.Contains(id)
	m.index.Remove(id)
	return existed, nil
}

func (m *MemoryBackend) IndexMembers(ctx context.Context) ([]models.WorkloadIdentity, error) {
	m.mu.RLock()
	err := m.fault(OpIndexMembers)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return m.index.ToSlice(), nil
}

func (m *MemoryBackend) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *rec
	m.recommendations = append(m.recommendations, &stored)
	return nil
}

// ListRecommendations returns the newest recommendations first. An empty
// namespace matches every namespace.
func (m *MemoryBackend) ListRecommendations(ctx context.Context, namespace string, limit int) ([]*models.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Recommendation
	for _, rec := range m.recommendations {
		if namespace != "" && rec.Workload.Namespace != namespace {
			continue
		}
		r := *rec
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBackend) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[models.WorkloadIdentity]*models.OptimizationSettings)
	m.index.Clear()
	m.recommendations = nil
	return nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}

func copySettings(s *models.OptimizationSettings) *models.OptimizationSettings {
	out := *s
	if s.Preferences != nil {
		out.Preferences = make(models.Preferences, len(s.Preferences))
		for k, v := range s.Preferences {
			out.Preferences[k] = v
		}
	}
	return &out
}
