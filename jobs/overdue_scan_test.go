package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	updated int
	err     error
	gotAsOf time.Time
	calls   int
}

func (f *fakeRefresher) RefreshOverdue(ctx context.Context, now time.Time) (int, error) {
	f.calls++
	f.gotAsOf = now
	return f.updated, f.err
}

func TestOverdueScanHandle(t *testing.T) {
	refresher := &fakeRefresher{updated: 3}
	job := NewOverdueScanJob(refresher, nil, nil)

	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewOverdueScanTask(OverdueScanPayload{AsOf: asOf})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, refresher.calls)
	require.Equal(t, asOf, refresher.gotAsOf)
}

func TestOverdueScanDefaultsAsOfToClock(t *testing.T) {
	refresher := &fakeRefresher{}
	job := NewOverdueScanJob(refresher, nil, nil)
	fixed := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, fixed, refresher.gotAsOf)
}

func TestOverdueScanPropagatesError(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("storage down")}
	job := NewOverdueScanJob(refresher, nil, nil)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestOverdueScanSkipsMalformedPayload(t *testing.T) {
	refresher := &fakeRefresher{}
	job := NewOverdueScanJob(refresher, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeOverdueScan, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, refresher.calls)
}

type fakePruner struct {
	removed   int64
	err       error
	gotCutoff time.Time
}

func (f *fakePruner) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	f.gotCutoff = olderThan
	return f.removed, f.err
}

func TestIdempotencyCleanupHandle(t *testing.T) {
	pruner := &fakePruner{removed: 7}
	job := NewIdempotencyCleanupJob(pruner, nil, nil)
	fixed := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{Retention: 48 * time.Hour})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, fixed.Add(-48*time.Hour), pruner.gotCutoff)
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	pruner := &fakePruner{}
	job := NewIdempotencyCleanupJob(pruner, nil, nil)
	fixed := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	var payload IdempotencyCleanupPayload
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskTypeIdempotencyCleanup, raw)))
	require.Equal(t, fixed.Add(-7*24*time.Hour), pruner.gotCutoff)
}
