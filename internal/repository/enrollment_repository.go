package repository

import (
	"aerovision_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// Create 已报名时不做任何改动，返回值表示是否新增了记录
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *model.Enrollment) (bool, error) {
	result := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(enrollment)
	return result.RowsAffected > 0, result.Error
}

func (r *EnrollmentRepository) Find(ctx context.Context, userID uint, courseID string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	return &enrollment, err
}

func (r *EnrollmentRepository) Exists(ctx context.Context, userID uint, courseID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) FindByUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) FindByUsers(ctx context.Context, userIDs []uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	if len(userIDs) == 0 {
		return enrollments, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at ASC, id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).Count(&count).Error
	return count, err
}
