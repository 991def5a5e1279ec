package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// GlobalIndexKey names the single enabled-workload index shared by all namespaces
const GlobalIndexKey = "global:optimization_deployments"

// ErrNotFound is returned when a settings record does not exist
var ErrNotFound = errors.New("optimization settings not found")

// Backend is the persistence engine behind SettingsStore. Records and the
// enabled index are written by separate calls so that a failure between them
// stays visible to the caller.
type Backend interface {
	PutRecord(ctx context.Context, settings *models.OptimizationSettings) error
	// GetRecord returns ErrNotFound when no record exists
	GetRecord(ctx context.Context, id models.WorkloadIdentity) (*models.OptimizationSettings, error)
	// DeleteRecord reports whether a record was removed
	DeleteRecord(ctx context.Context, id models.WorkloadIdentity) (bool, error)
	ScanRecords(ctx context.Context) ([]*models.OptimizationSettings, error)

	AddToIndex(ctx context.Context, id models.WorkloadIdentity) error
	// RemoveFromIndex reports whether the identity was a member
	RemoveFromIndex(ctx context.Context, id models.WorkloadIdentity) (bool, error)
	IndexMembers(ctx context.Context) ([]models.WorkloadIdentity, error)

	RecommendationStore

	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// RecommendationStore persists what strategies decided
type RecommendationStore interface {
	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
	ListRecommendations(ctx context.Context, namespace string, limit int) ([]*models.Recommendation, error)
}

// Stage tells which half of a two-step write failed
type Stage string

const (
	StageRecord Stage = "record"
	StageIndex  Stage = "index"
)

// StoreError wraps a persistence failure with the operation and stage it hit
type StoreError struct {
	Op       string
	Stage    Stage
	Identity models.WorkloadIdentity
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s (%s): %v", e.Op, e.Identity, e.Stage, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type Config struct {
	Backend     string
	DatabaseURL string
}
