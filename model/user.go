package model

import "time"

// UserStatus gates login; a disabled user keeps their rows but cannot
// authenticate.
type UserStatus int

const (
	UserStatusActive   UserStatus = 0
	UserStatusDisabled UserStatus = 1
)

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Password  string     `json:"-"`
	Phone     string     `json:"phone"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}
