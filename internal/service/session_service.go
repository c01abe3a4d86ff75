package service

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "session:user:"
)

func userSessionKey(userID uint) string {
	return fmt.Sprintf("%s%d", userSessionKeyPrefix, userID)
}

type sessionCtxKey struct{}

func WithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

func SessionFromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*model.Session)
	return s
}

// IssuedSession 返回给客户端的令牌及其对应的会话
type IssuedSession struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Session   *model.Session `json:"session"`
}

// SessionService 会话记录保存在 Redis（TTL 与令牌一致），未配置 Redis 时退化为进程内存
type SessionService struct {
	Redis *redis.Client
	Cfg   *config.Config

	mu    sync.RWMutex
	local map[string]*model.Session
}

func NewSessionService(rdb *redis.Client, cfg *config.Config) *SessionService {
	return &SessionService{
		Redis: rdb,
		Cfg:   cfg,
		local: make(map[string]*model.Session),
	}
}

func (s *SessionService) Create(ctx context.Context, user *model.User) (*IssuedSession, error) {
	id := uuid.New().String()
	token, expiresAt, err := util.GenerateJWT(user, id, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		ID:        id,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IssuedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}

	if s.Redis != nil {
		data, err := json.Marshal(sess)
		if err != nil {
			return nil, err
		}
		ttl := time.Until(expiresAt)
		userKey := userSessionKey(user.ID)
		_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKeyPrefix+id, data, ttl)
			pipe.SAdd(ctx, userKey, id)
			pipe.Expire(ctx, userKey, ttl)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: store session: %v", util.ErrPersistence, err)
		}
	} else {
		s.mu.Lock()
		s.pruneLocked(time.Now())
		s.local[id] = sess
		s.mu.Unlock()
	}

	return &IssuedSession{Token: token, ExpiresAt: expiresAt, Session: sess}, nil
}

// Resolve 校验令牌签名并确认会话仍然存在
func (s *SessionService) Resolve(ctx context.Context, token string) (*model.Session, error) {
	claims, err := util.ParseJWT(token, s.Cfg.JWT.Secret)
	if err != nil || claims.ID == "" {
		return nil, util.ErrSessionNotFound
	}

	if s.Redis != nil {
		data, err := s.Redis.Get(ctx, sessionKeyPrefix+claims.ID).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, util.ErrSessionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load session: %v", util.ErrPersistence, err)
		}
		var sess model.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, err
		}
		return &sess, nil
	}

	s.mu.RLock()
	sess, ok := s.local[claims.ID]
	s.mu.RUnlock()
	if !ok || sess.Expired(time.Now()) {
		return nil, util.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
			logger.Log.Error("Failed to delete session", zap.String("session", sessionID), zap.Error(err))
			return fmt.Errorf("%w: delete session: %v", util.ErrPersistence, err)
		}
		return nil
	}

	s.mu.Lock()
	delete(s.local, sessionID)
	s.mu.Unlock()
	return nil
}

// Rename 用户改名后同步其所有未过期会话中的显示名
func (s *SessionService) Rename(ctx context.Context, userID uint, name string) error {
	if s.Redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, sess := range s.local {
			if sess.UserID == userID {
				renamed := *sess
				renamed.Name = name
				s.local[id] = &renamed
			}
		}
		return nil
	}

	userKey := userSessionKey(userID)
	ids, err := s.Redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("%w: list sessions: %v", util.ErrPersistence, err)
	}
	for _, id := range ids {
		data, err := s.Redis.Get(ctx, sessionKeyPrefix+id).Bytes()
		if errors.Is(err, redis.Nil) {
			// 已登出或过期
			s.Redis.SRem(ctx, userKey, id)
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: load session: %v", util.ErrPersistence, err)
		}

		var sess model.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return err
		}
		ttl := time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			continue
		}
		sess.Name = name
		if data, err = json.Marshal(&sess); err != nil {
			return err
		}
		if err := s.Redis.Set(ctx, sessionKeyPrefix+id, data, ttl).Err(); err != nil {
			return fmt.Errorf("%w: store session: %v", util.ErrPersistence, err)
		}
	}
	return nil
}

func (s *SessionService) pruneLocked(now time.Time) {
	for id, sess := range s.local {
		if sess.Expired(now) {
			delete(s.local, id)
		}
	}
}
