package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

var errDisk = errors.New("disk on fire")

func newTestStore() (*SettingsStore, *MemoryBackend) {
	backend := NewMemoryBackend()
	return NewSettingsStore(backend), backend
}

func costPrefs() models.Preferences {
	return models.Preferences{models.CategoryPriority: models.SelectionCost}
}

func enabledIDs(t *testing.T, store *SettingsStore) []models.WorkloadIdentity {
	t.Helper()
	workloads, err := store.ListEnabledWorkloads(context.Background())
	require.NoError(t, err)
	ids := make([]models.WorkloadIdentity, 0, len(workloads))
	for _, w := range workloads {
		ids = append(ids, w.Identity)
	}
	return ids
}

func TestUpsertEnabledThenDisabled(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	id := models.NewWorkloadIdentity("shop", "checkout")

	_, err := store.Upsert(ctx, id, costPrefs(), 3.0, true)
	require.NoError(t, err)
	assert.Equal(t, []models.WorkloadIdentity{id}, enabledIDs(t, store))

	_, err = store.Upsert(ctx, id, costPrefs(), 3.0, false)
	require.NoError(t, err)
	assert.Empty(t, enabledIDs(t, store))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Enabled, "disabled record is kept")
}

func TestUpsertStampsUpdatedAt(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore()
	store.WithClock(clocktesting.NewFakePassiveClock(now))

	settings, err := store.Upsert(context.Background(), models.NewWorkloadIdentity("a", "b"), costPrefs(), 3.0, true)
	require.NoError(t, err)
	assert.Equal(t, now, settings.UpdatedAt)
}

func TestUpsertRejectsInvalidIdentity(t *testing.T) {
	store, backend := newTestStore()

	_, err := store.Upsert(context.Background(), models.NewWorkloadIdentity("Bad_NS", "api"), costPrefs(), 3.0, true)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	records, _ := backend.ScanRecords(context.Background())
	assert.Empty(t, records)
}

func TestUpsertRejectsScoreOutsideBands(t *testing.T) {
	store, backend := newTestStore()

	for _, score := range []float64{0, 0.5, 3.5} {
		_, err := store.Upsert(context.Background(), models.NewWorkloadIdentity("shop", "cart"), costPrefs(), score, true)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "score", verr.Field)
	}

	records, _ := backend.ScanRecords(context.Background())
	assert.Empty(t, records)
	members, _ := backend.IndexMembers(context.Background())
	assert.Empty(t, members)
}

func TestUpsertRecordFailure(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	backend.InjectFault(OpPutRecord, errDisk)

	_, err := store.Upsert(ctx, models.NewWorkloadIdentity("shop", "cart"), costPrefs(), 3.0, true)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageRecord, serr.Stage)
	assert.ErrorIs(t, err, errDisk)

	members, _ := backend.IndexMembers(ctx)
	assert.Empty(t, members, "index must not be touched when the record write fails")
}

func TestUpsertIndexFailureIsDetectable(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	id := models.NewWorkloadIdentity("shop", "cart")

	_, err := store.Upsert(ctx, id, costPrefs(), 3.0, true)
	require.NoError(t, err)

	// disable, but the index removal fails: the record says disabled while
	// the index still lists the workload
	backend.InjectFault(OpRemoveFromIndex, errDisk)
	settings, err := store.Upsert(ctx, id, costPrefs(), 3.0, false)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageIndex, serr.Stage)
	assert.Equal(t, id, serr.Identity)
	require.NotNil(t, settings, "the written record is returned with the index error")
	backend.ClearFaults()

	raw, err := store.IndexMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.WorkloadIdentity{id}, raw)

	assert.Empty(t, enabledIDs(t, store), "stale index member is filtered on read")
}

func TestGetNotFound(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Get(context.Background(), models.NewWorkloadIdentity("shop", "ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesRecordAndIndex(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	id := models.NewWorkloadIdentity("shop", "checkout")

	_, err := store.Upsert(ctx, id, costPrefs(), 3.0, true)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	members, _ := backend.IndexMembers(ctx)
	assert.Empty(t, members)

	assert.ErrorIs(t, store.Delete(ctx, id), ErrNotFound)
}

func TestDeleteSurfacesPartialFailure(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	id := models.NewWorkloadIdentity("shop", "checkout")

	_, err := store.Upsert(ctx, id, costPrefs(), 3.0, true)
	require.NoError(t, err)

	backend.InjectFault(OpRemoveFromIndex, errDisk)
	err = store.Delete(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, ErrNotFound)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageIndex, serr.Stage)

	// the record half still went through
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	backend.ClearFaults()

	assert.Empty(t, enabledIDs(t, store))
}

func TestDeleteAttemptsIndexEvenWhenRecordFails(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	id := models.NewWorkloadIdentity("shop", "checkout")

	_, err := store.Upsert(ctx, id, costPrefs(), 3.0, true)
	require.NoError(t, err)

	backend.InjectFault(OpDeleteRecord, errDisk)
	err = store.Delete(ctx, id)
	assert.ErrorIs(t, err, errDisk)

	members, _ := backend.IndexMembers(ctx)
	assert.Empty(t, members, "index removal is attempted independently")
}

func TestListEnabledSkipsMissingRecords(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	live := models.NewWorkloadIdentity("shop", "checkout")
	ghost := models.NewWorkloadIdentity("shop", "ghost")

	_, err := store.Upsert(ctx, live, costPrefs(), 3.0, true)
	require.NoError(t, err)
	require.NoError(t, backend.AddToIndex(ctx, ghost))

	workloads, err := store.ListEnabledWorkloads(ctx)
	require.NoError(t, err)
	require.Len(t, workloads, 1)
	assert.Equal(t, live, workloads[0].Identity)
	assert.Equal(t, 3.0, workloads[0].Settings.Score)
}

func TestListEnabledIsSorted(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	for _, id := range []models.WorkloadIdentity{
		models.NewWorkloadIdentity("zeta", "api"),
		models.NewWorkloadIdentity("alpha", "worker"),
		models.NewWorkloadIdentity("alpha", "api"),
	} {
		_, err := store.Upsert(ctx, id, costPrefs(), 3.0, true)
		require.NoError(t, err)
	}

	assert.Equal(t, []models.WorkloadIdentity{
		models.NewWorkloadIdentity("alpha", "api"),
		models.NewWorkloadIdentity("alpha", "worker"),
		models.NewWorkloadIdentity("zeta", "api"),
	}, enabledIDs(t, store))
}

func TestListEnabledIndexFailure(t *testing.T) {
	store, backend := newTestStore()
	backend.InjectFault(OpIndexMembers, errDisk)

	_, err := store.ListEnabledWorkloads(context.Background())
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "list", serr.Op)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	kept := models.NewWorkloadIdentity("shop", "checkout")
	orphan := models.NewWorkloadIdentity("shop", "ghost")
	unindexed := models.NewWorkloadIdentity("shop", "cart")

	_, err := store.Upsert(ctx, kept, costPrefs(), 3.0, true)
	require.NoError(t, err)
	require.NoError(t, backend.AddToIndex(ctx, orphan))
	require.NoError(t, backend.PutRecord(ctx, &models.OptimizationSettings{Identity: unindexed, Score: 2.0, Enabled: true}))

	result, err := store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Removed: 1, Added: 1}, result)

	members, err := store.IndexMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.WorkloadIdentity{unindexed, kept}, members)
}

func TestListAll(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	_, err := store.Upsert(ctx, models.NewWorkloadIdentity("b", "x"), costPrefs(), 3.0, false)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, models.NewWorkloadIdentity("a", "x"), costPrefs(), 3.0, true)
	require.NoError(t, err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Identity.Namespace)
}
