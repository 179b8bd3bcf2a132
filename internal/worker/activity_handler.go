package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

// ActivityFlushHandler drains pending activity marks from the state store
// into the sessions table. Room traffic only touches Redis on the hot
// path; this task is what makes the lastActivity column converge.
type ActivityFlushHandler struct {
	state    repository.StateRepository
	sessions repository.SessionRepository
}

// NewActivityFlushHandler creates the handler.
func NewActivityFlushHandler(state repository.StateRepository, sessions repository.SessionRepository) *ActivityFlushHandler {
	if state == nil {
		panic("StateRepository cannot be nil for ActivityFlushHandler")
	}
	if sessions == nil {
		panic("SessionRepository cannot be nil for ActivityFlushHandler")
	}
	return &ActivityFlushHandler{state: state, sessions: sessions}
}

// ProcessTask implements asynq.Handler.
func (h *ActivityFlushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	marks, err := h.state.CollectActivity(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to collect activity marks")
		return err
	}
	if len(marks) == 0 {
		logCtx.Debug("No pending activity marks")
		return nil
	}

	flushed := 0
	for sessionID, at := range marks {
		if err := h.sessions.TouchActivity(ctx, sessionID, at); err != nil {
			// One bad session must not poison the rest of the batch; the
			// mark is lost but a live session will produce a fresh one.
			logCtx.WithError(err).WithField("session_id", sessionID).
				Warn("Failed to flush activity mark")
			continue
		}
		flushed++
	}

	logCtx.WithFields(logrus.Fields{
		"pending": len(marks),
		"flushed": flushed,
	}).Info("Activity marks flushed")
	return nil
}
