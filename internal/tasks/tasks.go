// Package tasks 定义 asynq 任务类型与载荷。
package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	// TypeRoomSweep 临时房间回收任务类型
	TypeRoomSweep = "room:sweep"
)

// QueueSweep 是回收任务专用队列。
const QueueSweep = "sweep"

// RoomSweepPayload 是回收任务的载荷。回收本身无参数，
// 只带上触发时间便于在日志里对齐调度与执行。
type RoomSweepPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewRoomSweepTask 创建一个房间回收任务。
func NewRoomSweepTask() (*asynq.Task, error) {
	payload, err := json.Marshal(RoomSweepPayload{RequestedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomSweep, payload), nil
}
