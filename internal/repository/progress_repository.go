package repository

import (
	"aerovision_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) Find(ctx context.Context, userID uint, courseID string) (*model.UserProgress, error) {
	var progress model.UserProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&progress).Error
	return &progress, err
}

// Upsert 调用方提供完整状态，后写覆盖先写
func (r *ProgressRepository) Upsert(ctx context.Context, progress *model.UserProgress) error {
	if progress.CompletedLessons == nil {
		progress.CompletedLessons = []string{}
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_module",
				"current_lesson",
				"completed_lessons",
				"last_accessed",
				"updated_at",
			}),
		}).
		Create(progress).Error
}

func (r *ProgressRepository) FindByUser(ctx context.Context, userID uint) ([]model.UserProgress, error) {
	var progress []model.UserProgress
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&progress).Error
	return progress, err
}

func (r *ProgressRepository) FindByUsers(ctx context.Context, userIDs []uint) ([]model.UserProgress, error) {
	var progress []model.UserProgress
	if len(userIDs) == 0 {
		return progress, nil
	}
	err := r.DB.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&progress).Error
	return progress, err
}
