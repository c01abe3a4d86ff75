package database

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/model"
	"aerovision_backend/pkg/logger"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 按配置选择存储后端，同一套仓储代码运行在任意后端之上
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(cfg.Path + "?_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
}

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(&cfg.Database)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established", zap.String("driver", cfg.Database.Driver))

	// sqlite 本地存储总是迁移；托管数据库仅在 debug 模式或显式指定时迁移
	if cfg.Database.Driver == "sqlite" || cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		logger.Log.Info("Database migration completed")
	}

	if err := SeedAdmin(db, &cfg.Admin); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Enrollment{},
		&model.UserProgress{},
		&model.Message{},
	)
}

// SeedAdmin 确保配置中的管理员账号存在；已存在时不覆盖密码
func SeedAdmin(db *gorm.DB, cfg *config.AdminConfig) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))

	var existing model.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Role != model.Admin {
			return db.Model(&existing).Update("role", model.Admin).Error
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &model.User{
		Name:     cfg.Name,
		Email:    email,
		Password: string(hashed),
		DNI:      cfg.DNI,
		Role:     model.Admin,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	logger.Log.Info("Admin account seeded", zap.String("email", email))
	return nil
}
