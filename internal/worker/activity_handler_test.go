package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir-akbar/CodeCollab-sub000/internal/repository/mocks"
	"github.com/mir-akbar/CodeCollab-sub000/internal/tasks"
	"github.com/mir-akbar/CodeCollab-sub000/internal/worker"
)

func flushTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := tasks.NewActivityFlushTask()
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeActivityFlush, payload)
}

func TestActivityFlushHandler_FlushesPendingMarks(t *testing.T) {
	state := new(mocks.StateRepository)
	sessions := new(mocks.SessionRepository)
	handler := worker.NewActivityFlushHandler(state, sessions)
	ctx := context.Background()

	at1 := time.Now().Add(-time.Minute)
	at2 := time.Now().Add(-30 * time.Second)
	state.On("CollectActivity", ctx).Return(map[string]time.Time{
		"s1": at1,
		"s2": at2,
	}, nil).Once()
	sessions.On("TouchActivity", ctx, "s1", at1).Return(nil).Once()
	sessions.On("TouchActivity", ctx, "s2", at2).Return(nil).Once()

	err := handler.ProcessTask(ctx, flushTask(t))

	require.NoError(t, err)
	state.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestActivityFlushHandler_NoPendingMarks(t *testing.T) {
	state := new(mocks.StateRepository)
	sessions := new(mocks.SessionRepository)
	handler := worker.NewActivityFlushHandler(state, sessions)
	ctx := context.Background()

	state.On("CollectActivity", ctx).Return(map[string]time.Time{}, nil).Once()

	err := handler.ProcessTask(ctx, flushTask(t))

	require.NoError(t, err)
	sessions.AssertNotCalled(t, "TouchActivity", ctx, "s1", time.Time{})
}

func TestActivityFlushHandler_OneBadSessionDoesNotPoisonBatch(t *testing.T) {
	state := new(mocks.StateRepository)
	sessions := new(mocks.SessionRepository)
	handler := worker.NewActivityFlushHandler(state, sessions)
	ctx := context.Background()

	at := time.Now()
	state.On("CollectActivity", ctx).Return(map[string]time.Time{
		"broken": at,
		"fine":   at,
	}, nil).Once()
	sessions.On("TouchActivity", ctx, "broken", at).Return(errors.New("deadlock")).Once()
	sessions.On("TouchActivity", ctx, "fine", at).Return(nil).Once()

	err := handler.ProcessTask(ctx, flushTask(t))

	assert.NoError(t, err, "a per-session failure is logged, not propagated")
	sessions.AssertExpectations(t)
}

func TestActivityFlushHandler_CollectFailurePropagates(t *testing.T) {
	state := new(mocks.StateRepository)
	sessions := new(mocks.SessionRepository)
	handler := worker.NewActivityFlushHandler(state, sessions)
	ctx := context.Background()

	state.On("CollectActivity", ctx).Return(nil, errors.New("redis down")).Once()

	err := handler.ProcessTask(ctx, flushTask(t))

	require.Error(t, err, "asynq should retry when the collect itself fails")
}
