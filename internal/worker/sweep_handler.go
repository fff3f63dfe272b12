package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/service"
	"github.com/SinarPandora/Jellyfish-sub000/internal/tasks"
)

// SweepHandler 处理周期性的房间回收任务
type SweepHandler struct {
	sweep *service.SweepService
}

// NewSweepHandler 创建 Handler 实例
func NewSweepHandler(sweep *service.SweepService) *SweepHandler {
	if sweep == nil {
		panic("SweepService cannot be nil for SweepHandler")
	}
	return &SweepHandler{sweep: sweep}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"queue":     tasks.QueueSweep,
	})

	var payload tasks.RoomSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// 载荷只用于日志，解析失败不影响回收本身
		logCtx.WithError(err).Warn("Failed to unmarshal sweep payload")
	} else {
		logCtx = logCtx.WithField("requested_at", payload.RequestedAt.Format(time.RFC3339))
	}

	logCtx.Info("Processing room sweep task...")

	// 给整轮回收设置超时，避免任务卡死占住唯一的 worker 席位
	sweepCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if err := h.sweep.Run(sweepCtx); err != nil {
		logCtx.WithError(err).Error("Room sweep failed")
		return err
	}
	logCtx.Info("Room sweep task completed")
	return nil
}
