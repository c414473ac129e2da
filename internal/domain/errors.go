package domain

import "errors"

// 业务错误，调用方使用 errors.Is 判断。
var (
	ErrValidation           = errors.New("validation error")
	ErrRoomNotFound         = errors.New("room not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrRoomFull             = errors.New("room is full")
	ErrInsufficientDeskPool = errors.New("insufficient desk pool")
	ErrPersistence          = errors.New("persistence error")
)

// ErrorCode 返回错误对应的对外错误码，用于响应体。
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, ErrMemberNotFound):
		return "MemberNotFound"
	case errors.Is(err, ErrRoomFull):
		return "RoomFull"
	case errors.Is(err, ErrInsufficientDeskPool):
		return "InsufficientDeskPool"
	default:
		return "PersistenceError"
	}
}
