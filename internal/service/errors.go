package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrQueueEntryNotFound   = errors.New("queue entry not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: email already registered")
	ErrNotRoomMember        = errors.New("you are not a member of this room")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrMatchTimeout         = errors.New("no opponent found within the time limit")
	ErrValidation           = errors.New("validation failed")
	ErrInternalServer       = errors.New("internal server error")
)

// UsageRestrictedError 表示用户当前处于禁用期，携带剩余时间。
// 调用方在剩余时间结束前不应重试。
type UsageRestrictedError struct {
	Until            time.Time
	RemainingMinutes int
}

func (e *UsageRestrictedError) Error() string {
	return fmt.Sprintf("usage restricted: try again in about %d minute(s)", e.RemainingMinutes)
}
