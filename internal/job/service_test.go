package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), nil)
}

func TestServiceLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	j, err := svc.Create(ctx, KindFull)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)
	assert.NotEmpty(t, j.ID)
	assert.False(t, j.CreatedAt.IsZero())

	require.NoError(t, svc.Start(ctx, j.ID))
	started, err := svc.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, started.Status)
	require.NotNil(t, started.StartedAt)

	require.NoError(t, svc.SetProgress(ctx, j.ID, 40, "dumping database"))
	view, err := svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, view.Progress)
	assert.Equal(t, "dumping database", view.Message)

	result := &Result{
		OutputPath: "/backups/site-20260801.zip",
		OutputName: "site-20260801.zip",
		Size:       4096,
		Checksum:   "abc123",
	}
	require.NoError(t, svc.Complete(ctx, j.ID, result))

	done, err := svc.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Result)
	assert.Equal(t, int64(4096), done.Result.Size)

	finalView, err := svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "/backups/site-20260801.zip", finalView.OutputPath)
	assert.Equal(t, int64(4096), finalView.OutputSize)
}

func TestServiceFailure(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	j, err := svc.Create(ctx, KindDatabase)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, j.ID))
	require.NoError(t, svc.Fail(ctx, j.ID, errors.New("connection refused")))

	failed, err := svc.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "connection refused", failed.Error)

	view, err := svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "connection refused", view.Message)
}

func TestServicePendingJobsMayFailDirectly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	j, err := svc.Create(ctx, KindFiles)
	require.NoError(t, err)
	assert.NoError(t, svc.Fail(ctx, j.ID, errors.New("invalid configuration")))
}

func TestServiceTerminalJobsRejectMutation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	j, err := svc.Create(ctx, KindFull)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, j.ID))
	require.NoError(t, svc.Complete(ctx, j.ID, &Result{}))

	assert.Error(t, svc.Start(ctx, j.ID))
	assert.Error(t, svc.Complete(ctx, j.ID, &Result{}))
	assert.Error(t, svc.Fail(ctx, j.ID, errors.New("late failure")))
	assert.Error(t, svc.SetProgress(ctx, j.ID, 10, "late progress"))

	// The stored record is untouched by the rejected attempts.
	done, err := svc.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
}

func TestServicePendingCannotComplete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	j, err := svc.Create(ctx, KindFull)
	require.NoError(t, err)
	assert.Error(t, svc.Complete(ctx, j.ID, &Result{}), "completion requires a processing job")
}

func TestServiceProgressClamped(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	j, err := svc.Create(ctx, KindFull)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, j.ID))

	require.NoError(t, svc.SetProgress(ctx, j.ID, 250, "overshoot"))
	view, err := svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)

	require.NoError(t, svc.SetProgress(ctx, j.ID, -5, "undershoot"))
	view, err = svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Progress)
}

func TestServiceStatusUnknownJob(t *testing.T) {
	svc := newTestService()
	_, err := svc.Status(context.Background(), "job-nope")
	assert.Error(t, err)
}
