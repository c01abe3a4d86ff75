package model

import "time"

// Enrollment 用户已购买（解锁）的课程，(user_id, course_id) 唯一
type Enrollment struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollment_user_course;index" json:"courseId"`
	PaymentRef string    `gorm:"size:64" json:"paymentRef"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
