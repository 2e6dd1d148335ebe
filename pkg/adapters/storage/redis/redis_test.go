package redis

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T, ttl time.Duration) (*RunStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRunStorage(client, ttl, zap.NewNop()), mr
}

func TestSaveAndGetRun(t *testing.T) {
	store, _ := newTestStorage(t, 0)
	ctx := context.Background()

	record := &domain.RunRecord{
		ID:          "run-1",
		Status:      domain.RunStatusCompleted,
		SubmittedAt: time.Now().UTC(),
		Report: &domain.RunReport{
			RunID:   "run-1",
			Success: true,
			Message: "Executed 1 nodes successfully.",
			Results: map[string]*domain.StepResult{
				"a": {NodeID: "a", Type: "trigger", Status: domain.StepStatusSucceeded},
			},
		},
	}
	require.NoError(t, store.SaveRun(ctx, record))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.True(t, got.Report.Success)
	assert.Equal(t, domain.StepStatusSucceeded, got.Report.Results["a"].Status)
}

func TestGetMissingRun(t *testing.T) {
	store, _ := newTestStorage(t, 0)
	_, err := store.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunsExpire(t *testing.T) {
	store, mr := newTestStorage(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, &domain.RunRecord{ID: "run-1", Status: domain.RunStatusCompleted}))
	mr.FastForward(2 * time.Minute)

	_, err := store.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestListAndDeleteRuns(t *testing.T) {
	store, _ := newTestStorage(t, 0)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, &domain.RunRecord{ID: id, Status: domain.RunStatusCompleted}))
	}

	records, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	require.NoError(t, store.DeleteRun(ctx, "b"))
	records, err = store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
