package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeRoomSweep = "room:sweep" // 过期房间清理任务类型
)

// RoomSweepPayload 定义了过期房间清理任务的数据结构
type RoomSweepPayload struct {
	// Grace 是过期后额外保留的时长，0 表示过期即删除
	Grace time.Duration `json:"grace"`
}

// NewRoomSweepTask 创建一个新的过期房间清理任务
func NewRoomSweepTask(grace time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomSweepPayload{Grace: grace})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomSweep, payload, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}
