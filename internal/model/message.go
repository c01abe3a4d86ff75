package model

import "time"

// swagger:model Message
type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FromEmail string    `gorm:"size:100;not null;index:idx_message_pair" json:"fromEmail"`
	ToEmail   string    `gorm:"size:100;not null;index:idx_message_pair;index:idx_message_unread" json:"toEmail"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Read      bool      `gorm:"column:is_read;default:false;index:idx_message_unread" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

// Conversation 管理员收件箱中的一行：某个学员与管理员之间的会话
type Conversation struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int64    `json:"unreadCount"`
	Online      bool     `json:"online"`
}
