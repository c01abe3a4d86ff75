package repository

import (
	"aerovision_backend/internal/model"
	"context"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

// Thread 两人之间的全部消息，按时间升序，同一时间按 ID
func (r *MessageRepository) Thread(ctx context.Context, a, b string) ([]model.Message, error) {
	var messages []model.Message
	err := r.DB.WithContext(ctx).
		Where("(from_email = ? AND to_email = ?) OR (from_email = ? AND to_email = ?)", a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) Last(ctx context.Context, a, b string) (*model.Message, error) {
	var msg model.Message
	err := r.DB.WithContext(ctx).
		Where("(from_email = ? AND to_email = ?) OR (from_email = ? AND to_email = ?)", a, b, b, a).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	return &msg, err
}

// MarkRead 将 from 发给 to 的未读消息置为已读，返回实际更新条数
func (r *MessageRepository) MarkRead(ctx context.Context, from, to string) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&model.Message{}).
		Where("from_email = ? AND to_email = ? AND is_read = ?", from, to, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *MessageRepository) CountUnread(ctx context.Context, to string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Message{}).
		Where("to_email = ? AND is_read = ?", to, false).
		Count(&count).Error
	return count, err
}

type unreadRow struct {
	Email string
	Count int64
}

// UnreadBySender 发给 to 的未读消息按发送方分组计数
func (r *MessageRepository) UnreadBySender(ctx context.Context, to string) (map[string]int64, error) {
	var rows []unreadRow
	err := r.DB.WithContext(ctx).Model(&model.Message{}).
		Select("from_email AS email, COUNT(*) AS count").
		Where("to_email = ? AND is_read = ?", to, false).
		Group("from_email").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Email] = row.Count
	}
	return counts, nil
}

// UnreadByRecipient 多个收件人的未读总数，供推送对账使用
func (r *MessageRepository) UnreadByRecipient(ctx context.Context, recipients []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(recipients))
	if len(recipients) == 0 {
		return counts, nil
	}
	var rows []unreadRow
	err := r.DB.WithContext(ctx).Model(&model.Message{}).
		Select("to_email AS email, COUNT(*) AS count").
		Where("to_email IN ? AND is_read = ?", recipients, false).
		Group("to_email").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.Email] = row.Count
	}
	return counts, nil
}

// Counterparts 与 email 有过往来的所有对端邮箱
func (r *MessageRepository) Counterparts(ctx context.Context, email string) ([]string, error) {
	var from, to []string
	db := r.DB.WithContext(ctx).Model(&model.Message{})
	if err := db.Distinct("from_email").Where("to_email = ?", email).Pluck("from_email", &from).Error; err != nil {
		return nil, err
	}
	db = r.DB.WithContext(ctx).Model(&model.Message{})
	if err := db.Distinct("to_email").Where("from_email = ?", email).Pluck("to_email", &to).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(from)+len(to))
	result := make([]string, 0, len(from)+len(to))
	for _, e := range append(from, to...) {
		if e == email {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		result = append(result, e)
	}
	return result, nil
}

func (r *MessageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Message{}).Count(&count).Error
	return count, err
}
