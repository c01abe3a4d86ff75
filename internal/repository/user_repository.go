package repository

import (
	"aerovision_backend/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("dni = ?", dni).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) UpdateName(ctx context.Context, userID uint, name string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("name", name).
		Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint, hashed string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("password", hashed).
		Error
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login", at).
		Error
}

func (r *UserRepository) FindByRole(ctx context.Context, role model.UserRole) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).
		Where("role = ?", role).
		Order("name ASC, email ASC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) FindByEmails(ctx context.Context, emails []string) ([]model.User, error) {
	var users []model.User
	if len(emails) == 0 {
		return users, nil
	}
	err := r.DB.WithContext(ctx).Where("email IN ?", emails).Find(&users).Error
	return users, err
}

func (r *UserRepository) CountByRole(ctx context.Context, role model.UserRole) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}
