package model

import (
	"time"

	"gorm.io/datatypes"
)

// UserProgress 每个 (用户, 课程) 一条记录，保存续学位置与已完成课时
type UserProgress struct {
	ID               uint                        `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID           uint                        `gorm:"not null;uniqueIndex:idx_progress_user_course" json:"-"`
	CourseID         string                      `gorm:"type:varchar(36);not null;uniqueIndex:idx_progress_user_course;index" json:"courseId"`
	CurrentModule    int                         `gorm:"not null;default:0" json:"currentModuleIndex"`
	CurrentLesson    int                         `gorm:"not null;default:0" json:"currentLessonIndex"`
	CompletedLessons datatypes.JSONSlice[string] `json:"completedLessons"`
	LastAccessed     time.Time                   `json:"lastAccessed"`
	UpdatedAt        time.Time                   `json:"-"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}

func (p *UserProgress) HasCompleted(lessonID string) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// MarkCompleted 已存在时不重复追加
func (p *UserProgress) MarkCompleted(lessonID string) bool {
	if p.HasCompleted(lessonID) {
		return false
	}
	p.CompletedLessons = append(p.CompletedLessons, lessonID)
	return true
}

// CourseSummary 课程完成度，由进度与课程结构计算得出，不落库
type CourseSummary struct {
	TotalLessons     int  `json:"totalLessons"`
	CompletedLessons int  `json:"completedLessons"`
	Percent          int  `json:"percent"`
	Completed        bool `json:"completed"`
	JustCompleted    bool `json:"justCompleted,omitempty"`
}
