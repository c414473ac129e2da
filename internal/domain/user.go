// Package domain 定义了账本服务使用的领域模型和错误类型。
package domain

import "time"

// User 表示一个参与者的资料，由外部 ID 唯一标识。
// 房间成员只通过 ExternalID 引用用户，用户的生命周期与房间无关。
type User struct {
	ExternalID string    `json:"externalId"`
	Nickname   string    `json:"nickname"`
	AvatarRef  string    `json:"avatar"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
