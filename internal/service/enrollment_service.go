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
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnrollmentReceipt 模拟的即时支付确认，不接入任何支付渠道
type EnrollmentReceipt struct {
	Enrollment      *model.Enrollment `json:"enrollment"`
	AlreadyEnrolled bool              `json:"alreadyEnrolled"`
}

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
}

func NewEnrollmentService(enrollmentRepo *repository.EnrollmentRepository, courseRepo *repository.CourseRepository, userRepo *repository.UserRepository) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
	}
}

func (s *EnrollmentService) findUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return user, nil
}

// IsEnrolled 管理员对所有课程都视为已报名
func (s *EnrollmentService) IsEnrolled(ctx context.Context, email, courseID string) (bool, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return false, err
	}
	return s.isEnrolled(ctx, user, courseID)
}

func (s *EnrollmentService) isEnrolled(ctx context.Context, user *model.User, courseID string) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}
	ok, err := s.EnrollmentRepo.Exists(ctx, user.ID, courseID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return ok, nil
}

// Enroll 幂等：重复报名返回已有记录。进度记录在第一次保存时才创建
func (s *EnrollmentService) Enroll(ctx context.Context, email, courseID string) (*EnrollmentReceipt, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if !course.Published && !user.IsAdmin() {
		return nil, util.ErrCourseNotFound
	}

	enrollment := &model.Enrollment{
		UserID:     user.ID,
		CourseID:   course.ID,
		PaymentRef: "SIM-" + strings.ToUpper(uuid.New().String()[:8]),
	}
	created, err := s.EnrollmentRepo.Create(ctx, enrollment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if !created {
		existing, err := s.EnrollmentRepo.Find(ctx, user.ID, course.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
		}
		return &EnrollmentReceipt{Enrollment: existing, AlreadyEnrolled: true}, nil
	}

	monitoring.Enrollments.Inc()
	logger.Log.Info("User enrolled",
		zap.Uint("userId", user.ID),
		zap.String("courseId", course.ID),
		zap.String("paymentRef", enrollment.PaymentRef),
	)
	return &EnrollmentReceipt{Enrollment: enrollment}, nil
}

func (s *EnrollmentService) EnrolledCourseIDs(ctx context.Context, userID uint) ([]string, error) {
	enrollments, err := s.EnrollmentRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	return ids, nil
}
