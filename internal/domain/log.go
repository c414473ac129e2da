package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogAction 是日志条目的动作类型，取值封闭。
type LogAction string

const (
	ActionJoin    LogAction = "join"
	ActionReturn  LogAction = "return"
	ActionSpend   LogAction = "spend"
	ActionReclaim LogAction = "reclaim"
)

// Valid 报告 a 是否为已知的动作。
func (a LogAction) Valid() bool {
	switch a {
	case ActionJoin, ActionReturn, ActionSpend, ActionReclaim:
		return true
	}
	return false
}

// MarshalJSON 拒绝序列化未知的动作，避免写出无法读回的日志。
func (a LogAction) MarshalJSON() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("domain: unknown log action %q", string(a))
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON 只接受四种已知动作。
func (a *LogAction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain: log action must be a string: %w", err)
	}
	v := LogAction(s)
	if !v.Valid() {
		return fmt.Errorf("domain: unknown log action %q", s)
	}
	*a = v
	return nil
}

// LogEntry 是房间审计日志中的一条记录，写入后不可修改。
type LogEntry struct {
	Action     LogAction `json:"action"`
	ExternalID string    `json:"externalId"`
	Nickname   string    `json:"nickname"` // 操作发生时的昵称
	Amount     int64     `json:"amount"`   // join/return 为 0
	Timestamp  time.Time `json:"timestamp"`
}
