package model

import "time"

// Session 登录或注册时创建，登出时销毁；令牌只是它的引用
type Session struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == Admin
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
