// Package testutil 为各包测试提供内存数据库、miniredis 与测试配置
package testutil

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/model"
	"aerovision_backend/pkg/database"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	AdminEmail    = "admin@aerovision.com"
	AdminPassword = "admin123"
	JWTSecret     = "test-secret-test-secret-test-secret"
)

// Config 返回不依赖配置文件的测试配置
func Config() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0", Mode: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite"},
		JWT:      config.JWTConfig{Secret: JWTSecret, ExpireTime: time.Hour},
		Storage:  config.StorageConfig{Type: "local", MaxUploadMB: 5},
		Admin: config.AdminConfig{
			Name:     "Administrador",
			Email:    AdminEmail,
			Password: AdminPassword,
			DNI:      "00000000",
		},
		RateLimit: config.RateLimitConfig{MaxRequests: 10000, WindowMinutes: 1},
		Mailbox:   config.MailboxConfig{PollInterval: 50 * time.Millisecond, ClientBuffer: 16},
	}
}

// NewDB 每个测试一个独立的内存库，已迁移并写入管理员
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	cfg := Config()
	require.NoError(t, database.SeedAdmin(db, &cfg.Admin))
	return db
}

// NewRedis 启动 miniredis 并返回连接到它的客户端
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return mr, rdb
}

// CreateStudent 直接写库创建学员，密码为 secret123
func CreateStudent(t testing.TB, db *gorm.DB, name, email, dni string) *model.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		DNI:      dni,
		Role:     model.Student,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SampleCourse 两个模块共四个课时，第四个为测验（正确选项 opt-b）
func SampleCourse(published bool) *model.Course {
	return &model.Course{
		Title:       "Fundamentos de Drones",
		Description: "Curso introductorio",
		Published:   published,
		Price:       "49.99",
		Level:       "Principiante",
		Modules: []model.Module{
			{
				ID:    "m1",
				Title: "Introducción",
				Lessons: []model.Lesson{
					{ID: "l1", Title: "Historia", Type: model.LessonTheory, Content: "Los drones nacieron..."},
					{ID: "l2", Title: "Normativa", Type: model.LessonTheory, Blocks: []model.ContentBlock{
						{ID: "b1", Type: model.BlockText, Content: "Primer párrafo"},
						{ID: "b2", Type: model.BlockImage, Content: "https://cdn.example.com/mapa.png"},
						{ID: "b3", Type: model.BlockText, Content: "Segundo párrafo"},
					}},
				},
			},
			{
				ID:    "m2",
				Title: "Vuelo",
				Lessons: []model.Lesson{
					{ID: "l3", Title: "Despegue", Type: model.LessonTheory, Content: "Checklist"},
					{ID: "l4", Title: "Evaluación", Type: model.LessonQuiz, Quiz: &model.QuizData{
						Question: "¿Altura máxima?",
						Options: []model.QuizOption{
							{ID: "opt-a", Text: "500 m"},
							{ID: "opt-b", Text: "120 m", IsCorrect: true},
						},
					}},
				},
			},
		},
	}
}
