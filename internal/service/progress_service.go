package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/logger"
	"aerovision_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProgressInput struct {
	CourseID           string
	CurrentModuleIndex int
	CurrentLessonIndex int
	CompletedLessons   []string
}

type ProgressResult struct {
	Progress *model.UserProgress `json:"progress"`
	Summary  model.CourseSummary `json:"summary"`
}

type QuizResult struct {
	Correct  bool                `json:"correct"`
	Progress *model.UserProgress `json:"progress,omitempty"`
	Summary  model.CourseSummary `json:"summary"`
}

type DashboardEntry struct {
	Course   *model.Course       `json:"course"`
	Progress *model.UserProgress `json:"progress"`
	Summary  model.CourseSummary `json:"summary"`
}

// ComputeSummary 只统计属于该课程的、去重后的已完成课时；
// wasComplete 为保存前的状态，用于判断本次是否刚好完成
func ComputeSummary(course *model.Course, completed []string, wasComplete bool) model.CourseSummary {
	lessonIDs := course.LessonIDs()
	seen := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		if _, ok := lessonIDs[id]; ok {
			seen[id] = struct{}{}
		}
	}

	total := course.TotalLessons()
	done := len(seen)
	percent := int(math.Round(float64(done) / float64(max(1, total)) * 100))
	isComplete := total > 0 && done == total

	return model.CourseSummary{
		TotalLessons:     total,
		CompletedLessons: done,
		Percent:          percent,
		Completed:        isComplete,
		JustCompleted:    isComplete && !wasComplete,
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	CourseRepo   *repository.CourseRepository
	Enrollments  *EnrollmentService
}

func NewProgressService(progressRepo *repository.ProgressRepository, courseRepo *repository.CourseRepository, enrollments *EnrollmentService) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		CourseRepo:   courseRepo,
		Enrollments:  enrollments,
	}
}

// access 校验用户存在、课程存在且已报名
func (s *ProgressService) access(ctx context.Context, email, courseID string) (*model.User, *model.Course, error) {
	user, err := s.Enrollments.findUser(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrCourseNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	enrolled, err := s.Enrollments.isEnrolled(ctx, user, course.ID)
	if err != nil {
		return nil, nil, err
	}
	if !enrolled {
		return nil, nil, util.ErrNotEnrolled
	}
	return user, course, nil
}

func (s *ProgressService) find(ctx context.Context, userID uint, courseID string) (*model.UserProgress, error) {
	progress, err := s.ProgressRepo.Find(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return progress, nil
}

// Get 没有记录时返回 (nil, nil)
func (s *ProgressService) Get(ctx context.Context, email, courseID string) (*ProgressResult, error) {
	user, course, err := s.access(ctx, email, courseID)
	if err != nil {
		return nil, err
	}
	progress, err := s.find(ctx, user.ID, course.ID)
	if err != nil || progress == nil {
		return nil, err
	}
	summary := ComputeSummary(course, progress.CompletedLessons, true)
	return &ProgressResult{Progress: progress, Summary: summary}, nil
}

// Save 调用方提供完整状态；游标需落在课程结构内
func (s *ProgressService) Save(ctx context.Context, email string, in ProgressInput) (*ProgressResult, error) {
	user, course, err := s.access(ctx, email, in.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.ValidPosition(in.CurrentModuleIndex, in.CurrentLessonIndex) {
		return nil, fmt.Errorf("%w: position (%d, %d) is outside the course", util.ErrInvalidProgress, in.CurrentModuleIndex, in.CurrentLessonIndex)
	}

	prior, err := s.find(ctx, user.ID, course.ID)
	if err != nil {
		return nil, err
	}
	wasComplete := prior != nil && ComputeSummary(course, prior.CompletedLessons, true).Completed

	progress := &model.UserProgress{
		UserID:           user.ID,
		CourseID:         course.ID,
		CurrentModule:    in.CurrentModuleIndex,
		CurrentLesson:    in.CurrentLessonIndex,
		CompletedLessons: dedupe(in.CompletedLessons),
		LastAccessed:     time.Now(),
	}
	if err := s.ProgressRepo.Upsert(ctx, progress); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	summary := ComputeSummary(course, progress.CompletedLessons, wasComplete)
	if summary.JustCompleted {
		monitoring.CourseCompletions.Inc()
		logger.Log.Info("Course completed", zap.Uint("userId", user.ID), zap.String("courseId", course.ID))
	}
	return &ProgressResult{Progress: progress, Summary: summary}, nil
}

// AnswerQuiz 服务端判题，答对时把该课时加入已完成集合
func (s *ProgressService) AnswerQuiz(ctx context.Context, email, courseID, lessonID, optionID string) (*QuizResult, error) {
	user, course, err := s.access(ctx, email, courseID)
	if err != nil {
		return nil, err
	}
	lesson := course.FindLesson(lessonID)
	if lesson == nil {
		return nil, util.ErrLessonNotFound
	}
	if lesson.Type != model.LessonQuiz || lesson.Quiz == nil {
		return nil, fmt.Errorf("%w: lesson %s is not a quiz", util.ErrValidation, lessonID)
	}

	var chosen *model.QuizOption
	for i := range lesson.Quiz.Options {
		if lesson.Quiz.Options[i].ID == optionID {
			chosen = &lesson.Quiz.Options[i]
		}
	}
	if chosen == nil {
		return nil, util.ErrOptionNotFound
	}

	prior, err := s.find(ctx, user.ID, course.ID)
	if err != nil {
		return nil, err
	}
	if !chosen.IsCorrect {
		result := &QuizResult{Progress: prior}
		if prior != nil {
			result.Summary = ComputeSummary(course, prior.CompletedLessons, true)
		} else {
			result.Summary = ComputeSummary(course, nil, false)
		}
		return result, nil
	}

	wasComplete := false
	progress := prior
	if progress == nil {
		progress = &model.UserProgress{UserID: user.ID, CourseID: course.ID}
		for mi, m := range course.Modules {
			for li, l := range m.Lessons {
				if l.ID == lessonID {
					progress.CurrentModule, progress.CurrentLesson = mi, li
				}
			}
		}
	} else {
		wasComplete = ComputeSummary(course, prior.CompletedLessons, true).Completed
	}
	progress.MarkCompleted(lessonID)
	progress.LastAccessed = time.Now()

	if err := s.ProgressRepo.Upsert(ctx, progress); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	summary := ComputeSummary(course, progress.CompletedLessons, wasComplete)
	if summary.JustCompleted {
		monitoring.CourseCompletions.Inc()
	}
	return &QuizResult{Correct: true, Progress: progress, Summary: summary}, nil
}

// Dashboard 学员已报名课程及各自的完成度
func (s *ProgressService) Dashboard(ctx context.Context, email string) ([]DashboardEntry, error) {
	user, err := s.Enrollments.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	courseIDs, err := s.Enrollments.EnrolledCourseIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	courses, err := s.CourseRepo.FindByIDs(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	records, err := s.ProgressRepo.FindByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	byCourse := make(map[string]*model.UserProgress, len(records))
	for i := range records {
		byCourse[records[i].CourseID] = &records[i]
	}

	entries := make([]DashboardEntry, 0, len(courses))
	for i := range courses {
		c := &courses[i]
		p := byCourse[c.ID]
		var completed []string
		if p != nil {
			completed = p.CompletedLessons
		}
		entries = append(entries, DashboardEntry{
			Course:   c.Outline(),
			Progress: p,
			Summary:  ComputeSummary(c, completed, true),
		})
	}
	return entries, nil
}
