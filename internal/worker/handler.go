package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"desk-ledger/internal/tasks"
)

// Sweeper 删除指定时间之前过期的房间。
type Sweeper interface {
	SweepExpired(ctx context.Context, before time.Time) (int64, error)
}

// RoomSweepHandler 处理过期房间清理任务
type RoomSweepHandler struct {
	sweeper Sweeper
	now     func() time.Time
}

// NewRoomSweepHandler 创建 Handler 实例
func NewRoomSweepHandler(sweeper Sweeper) *RoomSweepHandler {
	if sweeper == nil {
		panic("Sweeper cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{
		sweeper: sweeper,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.RoomSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal task payload")
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	before := h.now().Add(-payload.Grace)
	deleted, err := h.sweeper.SweepExpired(ctx, before)
	if err != nil {
		logCtx.WithError(err).Error("Room sweep failed")
		return fmt.Errorf("sweep rooms expired before %s: %w", before.Format(time.RFC3339), err)
	}

	logCtx.WithFields(logrus.Fields{"deleted": deleted, "before": before}).Info("Room sweep task processed successfully")
	return nil
}
