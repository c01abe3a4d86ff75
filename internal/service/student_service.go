package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type StudentCourse struct {
	CourseID   string              `json:"courseId"`
	Title      string              `json:"title"`
	EnrolledAt time.Time           `json:"enrolledAt"`
	Progress   *model.UserProgress `json:"progress"`
	Summary    model.CourseSummary `json:"summary"`
}

type StudentOverview struct {
	User    *model.User     `json:"user"`
	Courses []StudentCourse `json:"courses"`
}

type AdminStats struct {
	Students         int64 `json:"students"`
	Courses          int64 `json:"courses"`
	PublishedCourses int64 `json:"publishedCourses"`
	Enrollments      int64 `json:"enrollments"`
	Messages         int64 `json:"messages"`
	UnreadMessages   int64 `json:"unreadMessages"`
}

// StudentService 管理端的学员名册与统计
type StudentService struct {
	UserRepo       *repository.UserRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	ProgressRepo   *repository.ProgressRepository
	MessageRepo    *repository.MessageRepository
	AdminEmail     string
}

func NewStudentService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progressRepo *repository.ProgressRepository,
	messageRepo *repository.MessageRepository,
	adminEmail string,
) *StudentService {
	return &StudentService{
		UserRepo:       userRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		ProgressRepo:   progressRepo,
		MessageRepo:    messageRepo,
		AdminEmail:     NormalizeEmail(adminEmail),
	}
}

func (s *StudentService) List(ctx context.Context) ([]StudentOverview, error) {
	students, err := s.UserRepo.FindByRole(ctx, model.Student)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return s.overview(ctx, students)
}

func (s *StudentService) Get(ctx context.Context, email string) (*StudentOverview, error) {
	user, err := s.UserRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if user.IsAdmin() {
		return nil, util.ErrUserNotFound
	}
	result, err := s.overview(ctx, []model.User{*user})
	if err != nil {
		return nil, err
	}
	return &result[0], nil
}

func (s *StudentService) overview(ctx context.Context, students []model.User) ([]StudentOverview, error) {
	ids := make([]uint, 0, len(students))
	for _, u := range students {
		ids = append(ids, u.ID)
	}

	enrollments, err := s.EnrollmentRepo.FindByUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	records, err := s.ProgressRepo.FindByUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	courseIDs := make([]string, 0, len(enrollments))
	seen := make(map[string]struct{})
	for _, e := range enrollments {
		if _, ok := seen[e.CourseID]; !ok {
			seen[e.CourseID] = struct{}{}
			courseIDs = append(courseIDs, e.CourseID)
		}
	}
	courses, err := s.CourseRepo.FindByIDs(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	courseByID := make(map[string]*model.Course, len(courses))
	for i := range courses {
		courseByID[courses[i].ID] = &courses[i]
	}

	type key struct {
		user   uint
		course string
	}
	progress := make(map[key]*model.UserProgress, len(records))
	for i := range records {
		progress[key{records[i].UserID, records[i].CourseID}] = &records[i]
	}

	byUser := make(map[uint][]StudentCourse, len(students))
	for _, e := range enrollments {
		course, ok := courseByID[e.CourseID]
		if !ok {
			continue
		}
		p := progress[key{e.UserID, e.CourseID}]
		var completed []string
		if p != nil {
			completed = p.CompletedLessons
		}
		byUser[e.UserID] = append(byUser[e.UserID], StudentCourse{
			CourseID:   course.ID,
			Title:      course.Title,
			EnrolledAt: e.CreatedAt,
			Progress:   p,
			Summary:    ComputeSummary(course, completed, true),
		})
	}

	result := make([]StudentOverview, 0, len(students))
	for i := range students {
		courses := byUser[students[i].ID]
		if courses == nil {
			courses = []StudentCourse{}
		}
		result = append(result, StudentOverview{User: &students[i], Courses: courses})
	}
	return result, nil
}

func (s *StudentService) Stats(ctx context.Context) (*AdminStats, error) {
	var (
		stats AdminStats
		err   error
	)
	if stats.Students, err = s.UserRepo.CountByRole(ctx, model.Student); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if stats.Courses, err = s.CourseRepo.Count(ctx, false); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if stats.PublishedCourses, err = s.CourseRepo.Count(ctx, true); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if stats.Enrollments, err = s.EnrollmentRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if stats.Messages, err = s.MessageRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if stats.UnreadMessages, err = s.MessageRepo.CountUnread(ctx, s.AdminEmail); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return &stats, nil
}
