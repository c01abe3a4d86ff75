package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/logger"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseView 课程详情及当前访问者的报名状态
type CourseView struct {
	Course   *model.Course `json:"course"`
	Enrolled bool          `json:"enrolled"`
}

type CourseService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewCourseService(courseRepo *repository.CourseRepository, enrollmentRepo *repository.EnrollmentRepository) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

// List 管理员看到全部课程；学员与访客只看到已发布课程的目录
func (s *CourseService) List(ctx context.Context, viewer *model.Session) ([]*model.Course, error) {
	admin := viewer.IsAdmin()
	courses, err := s.CourseRepo.FindAll(ctx, !admin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	result := make([]*model.Course, 0, len(courses))
	for i := range courses {
		if admin {
			result = append(result, &courses[i])
		} else {
			result = append(result, courses[i].Outline())
		}
	}
	return result, nil
}

// Get 未发布课程对非管理员不可见；未报名只返回目录，已报名的学员看不到测验答案
func (s *CourseService) Get(ctx context.Context, id string, viewer *model.Session) (*CourseView, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if viewer.IsAdmin() {
		return &CourseView{Course: course, Enrolled: true}, nil
	}
	if !course.Published {
		return nil, util.ErrCourseNotFound
	}
	if viewer == nil {
		return &CourseView{Course: course.Outline()}, nil
	}

	enrolled, err := s.EnrollmentRepo.Exists(ctx, viewer.UserID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if !enrolled {
		return &CourseView{Course: course.Outline()}, nil
	}
	return &CourseView{Course: course.WithoutAnswers(), Enrolled: true}, nil
}

func (s *CourseService) load(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return course, nil
}

// Save 按 ID upsert；保存前补全 ID、同步旧版 content 并校验测验
func (s *CourseService) Save(ctx context.Context, course *model.Course) (*model.Course, error) {
	course.Normalize()
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if err := s.CourseRepo.Save(ctx, course); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	logger.Log.Info("Course saved",
		zap.String("courseId", course.ID),
		zap.Bool("published", course.Published),
		zap.Int("lessons", course.TotalLessons()),
	)
	return course, nil
}

// Delete 同时删除该课程的报名与进度记录
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.CourseRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	logger.Log.Info("Course deleted", zap.String("courseId", id))
	return nil
}

// mutateLesson 读取课程、修改单个课时后整体保存
func (s *CourseService) mutateLesson(ctx context.Context, courseID, lessonID string, fn func(*model.Lesson) error) (*model.Lesson, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lesson := course.FindLesson(lessonID)
	if lesson == nil {
		return nil, util.ErrLessonNotFound
	}
	if err := fn(lesson); err != nil {
		return nil, err
	}
	if _, err := s.Save(ctx, course); err != nil {
		return nil, err
	}
	return course.FindLesson(lessonID), nil
}

func (s *CourseService) AddBlock(ctx context.Context, courseID, lessonID string, blockType model.BlockType, content string) (*model.Lesson, error) {
	return s.mutateLesson(ctx, courseID, lessonID, func(l *model.Lesson) error {
		_, err := l.AddBlock(blockType, content)
		return err
	})
}

func (s *CourseService) UpdateBlock(ctx context.Context, courseID, lessonID, blockID, content string) (*model.Lesson, error) {
	return s.mutateLesson(ctx, courseID, lessonID, func(l *model.Lesson) error {
		_, err := l.UpdateBlock(blockID, content)
		return err
	})
}

func (s *CourseService) RemoveBlock(ctx context.Context, courseID, lessonID, blockID string) (*model.Lesson, error) {
	return s.mutateLesson(ctx, courseID, lessonID, func(l *model.Lesson) error {
		return l.RemoveBlock(blockID)
	})
}

func (s *CourseService) MoveBlock(ctx context.Context, courseID, lessonID, blockID string, dir model.MoveDirection) (*model.Lesson, error) {
	return s.mutateLesson(ctx, courseID, lessonID, func(l *model.Lesson) error {
		return l.MoveBlock(blockID, dir)
	})
}

func (s *CourseService) SetCorrectOption(ctx context.Context, courseID, lessonID, optionID string) (*model.Lesson, error) {
	return s.mutateLesson(ctx, courseID, lessonID, func(l *model.Lesson) error {
		return l.SetCorrectOption(optionID)
	})
}
