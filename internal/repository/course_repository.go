package repository

import (
	"aerovision_backend/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindAll(ctx context.Context, publishedOnly bool) ([]model.Course, error) {
	var courses []model.Course
	query := r.DB.WithContext(ctx).Order("created_at ASC, id ASC")
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	err := query.Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&course).Error
	return &course, err
}

func (r *CourseRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Course, error) {
	var courses []model.Course
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("created_at ASC, id ASC").Find(&courses).Error
	return courses, err
}

// Save 按 ID upsert，已存在时保留原创建时间
func (r *CourseRepository) Save(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if course.ID == "" {
			return tx.Create(course).Error
		}

		var existing model.Course
		err := tx.Select("id", "created_at").Where("id = ?", course.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(course).Error
		}
		if err != nil {
			return err
		}

		course.CreatedAt = existing.CreatedAt
		return tx.Save(course).Error
	})
}

// Delete 删除课程并级联清理其报名与进度记录
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&model.Course{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("course_id = ?", id).Delete(&model.Enrollment{}).Error; err != nil {
			return err
		}
		return tx.Where("course_id = ?", id).Delete(&model.UserProgress{}).Error
	})
}

func (r *CourseRepository) Count(ctx context.Context, publishedOnly bool) (int64, error) {
	var count int64
	query := r.DB.WithContext(ctx).Model(&model.Course{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	err := query.Count(&count).Error
	return count, err
}
