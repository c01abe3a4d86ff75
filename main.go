// @title AeroVision Academy 后端 API
// @version 1.0
// @description AeroVision 在线课程平台的后端服务：账号、课程目录与编辑器、报名与学习进度、站内信。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.email admin@aerovision.com

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"aerovision_backend/internal/app"
	"aerovision_backend/internal/config"
	"aerovision_backend/pkg/database"
	"aerovision_backend/pkg/logger"
	"log"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	configDir := pflag.StringP("config", "c", "configs", "配置文件目录（包含 config.yaml）")
	migrateOnly := pflag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := pflag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	// 迁移完成后直接退出
	if *migrateOnly {
		logger.InitLogger(cfg)
		defer logger.Log.Sync()
		if _, err := database.InitDB(cfg); err != nil {
			logger.Log.Fatal("Migration failed", zap.Error(err))
		}
		logger.Log.Info("数据库迁移完成，退出程序")
		return
	}

	application := app.NewApp(cfg)
	application.ConfigDir = *configDir
	defer logger.Log.Sync()

	application.Run()
}
