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
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MailboxNotifier 消息变更的推送出口
type MailboxNotifier interface {
	Publish(ctx context.Context, recipients []string, event MailboxEvent)
}

type MailboxService struct {
	MessageRepo *repository.MessageRepository
	UserRepo    *repository.UserRepository
	Notifier    MailboxNotifier
	AdminEmail  string
}

func NewMailboxService(messageRepo *repository.MessageRepository, userRepo *repository.UserRepository, notifier MailboxNotifier, adminEmail string) *MailboxService {
	return &MailboxService{
		MessageRepo: messageRepo,
		UserRepo:    userRepo,
		Notifier:    notifier,
		AdminEmail:  NormalizeEmail(adminEmail),
	}
}

func (s *MailboxService) notify(ctx context.Context, recipients []string, eventType string, data interface{}) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(ctx, recipients, NewMailboxEvent(eventType, data))
}

// Counterpart 学员只能与管理员通信；管理员必须指明对端
func (s *MailboxService) Counterpart(viewer *model.Session, with string) (string, error) {
	with = NormalizeEmail(with)
	if !viewer.IsAdmin() {
		if with != "" && with != s.AdminEmail {
			return "", fmt.Errorf("%w: students can only talk to the administrator", util.ErrPermissionDenied)
		}
		return s.AdminEmail, nil
	}
	if with == "" {
		return "", fmt.Errorf("%w: recipient is required", util.ErrInvalidMessage)
	}
	if with == viewer.Email {
		return "", fmt.Errorf("%w: cannot message yourself", util.ErrInvalidMessage)
	}
	return with, nil
}

// Send 文本去除首尾空白后为空时静默忽略，返回 (nil, nil)
func (s *MailboxService) Send(ctx context.Context, from, to, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	from = NormalizeEmail(from)
	to = NormalizeEmail(to)

	if _, err := s.UserRepo.FindByEmail(ctx, to); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	msg := &model.Message{
		FromEmail: from,
		ToEmail:   to,
		Text:      text,
	}
	if err := s.MessageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	monitoring.MailboxMessages.Inc()
	logger.Log.Debug("Message sent", zap.String("from", from), zap.String("to", to), zap.Uint("id", msg.ID))

	s.notify(ctx, []string{from, to}, util.EventMessageCreated, msg)
	return msg, nil
}

// Thread 两人之间的完整会话，按时间排序
func (s *MailboxService) Thread(ctx context.Context, a, b string) ([]model.Message, error) {
	messages, err := s.MessageRepo.Thread(ctx, NormalizeEmail(a), NormalizeEmail(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return messages, nil
}

// MarkRead 把 from 发给 to 的未读消息置为已读，可重复调用
func (s *MailboxService) MarkRead(ctx context.Context, from, to string) (int64, error) {
	from = NormalizeEmail(from)
	to = NormalizeEmail(to)

	n, err := s.MessageRepo.MarkRead(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	if n > 0 {
		s.notify(ctx, []string{from, to}, util.EventMessagesRead, map[string]interface{}{
			"fromEmail": from,
			"toEmail":   to,
			"count":     n,
		})
	}
	return n, nil
}

func (s *MailboxService) UnreadCount(ctx context.Context, email string) (int64, error) {
	count, err := s.MessageRepo.CountUnread(ctx, NormalizeEmail(email))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	return count, nil
}

// Conversations 管理员收件箱：所有学员以及任何给管理员发过消息的非管理员账号，
// 排序为未读数降序、最近消息时间降序、邮箱升序
func (s *MailboxService) Conversations(ctx context.Context) ([]model.Conversation, error) {
	students, err := s.UserRepo.FindByRole(ctx, model.Student)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	counterparts, err := s.MessageRepo.Counterparts(ctx, s.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	unread, err := s.MessageRepo.UnreadBySender(ctx, s.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	names := make(map[string]string, len(students)+len(counterparts))
	for _, u := range students {
		names[u.Email] = u.Name
	}

	var extra []string
	for _, email := range counterparts {
		if _, ok := names[email]; !ok {
			extra = append(extra, email)
		}
	}
	if len(extra) > 0 {
		users, err := s.UserRepo.FindByEmails(ctx, extra)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
		}
		known := make(map[string]model.User, len(users))
		for _, u := range users {
			known[u.Email] = u
		}
		for _, email := range extra {
			u, ok := known[email]
			if ok && u.IsAdmin() {
				continue
			}
			name := email
			if ok {
				name = u.Name
			}
			names[email] = name
		}
	}

	conversations := make([]model.Conversation, 0, len(names))
	for email, name := range names {
		conv := model.Conversation{
			Email:       email,
			Name:        name,
			UnreadCount: unread[email],
		}
		last, err := s.MessageRepo.Last(ctx, s.AdminEmail, email)
		if err == nil {
			conv.LastMessage = last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
		}
		conversations = append(conversations, conv)
	}

	SortConversations(conversations)
	return conversations, nil
}

func SortConversations(conversations []model.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if a.UnreadCount != b.UnreadCount {
			return a.UnreadCount > b.UnreadCount
		}
		switch {
		case a.LastMessage != nil && b.LastMessage == nil:
			return true
		case a.LastMessage == nil && b.LastMessage != nil:
			return false
		case a.LastMessage != nil && b.LastMessage != nil:
			if !a.LastMessage.CreatedAt.Equal(b.LastMessage.CreatedAt) {
				return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
			}
		}
		return a.Email < b.Email
	})
}
