package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	DNI      string
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Sessions *SessionService
}

func NewAuthService(userRepo *repository.UserRepository, sessions *SessionService) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Sessions: sessions,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 邮箱与 DNI 均不可重复，冲突时不写入任何数据；成功后直接登录
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, *IssuedSession, error) {
	email := NormalizeEmail(in.Email)
	dni := strings.TrimSpace(in.DNI)

	exists, err := s.UserRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if exists {
		return nil, nil, util.ErrEmailRegistered
	}

	exists, err = s.UserRepo.ExistsByDNI(ctx, dni)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if exists {
		return nil, nil, util.ErrDNIRegistered
	}

	if len(in.Password) < MinPasswordLength {
		return nil, nil, fmt.Errorf("%w: password must be at least %d characters", util.ErrValidation, MinPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: string(hashedPassword),
		DNI:      dni,
		Role:     model.Student,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		// 并发注册时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, util.ErrRegistrationConflict
		}
		return nil, nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	logger.Log.Info("User registered", zap.Uint("userId", user.ID), zap.String("email", user.Email))

	issued, err := s.Sessions.Create(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, *IssuedSession, error) {
	user, err := s.UserRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, util.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logger.Log.Warn("Failed to record last login", zap.Uint("userId", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	issued, err := s.Sessions.Create(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

func (s *AuthService) Logout(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		return nil
	}
	return s.Sessions.Destroy(ctx, sess.ID)
}

func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", util.ErrValidation)
	}
	if err := s.UserRepo.UpdateName(ctx, userID, name); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if err := s.Sessions.Rename(ctx, userID, name); err != nil {
		logger.Log.Warn("Failed to refresh sessions after rename", zap.Uint("userId", userID), zap.Error(err))
	}
	return s.GetProfile(ctx, userID)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if len(next) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", util.ErrValidation, MinPasswordLength)
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return util.ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.UserRepo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return nil
}
