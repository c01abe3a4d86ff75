// 从 YAML 目录文件批量导入课程
//
// 课程按 ID upsert，可重复执行。字段名与接口 JSON 一致。
//
// 用法: go run scripts/seed_catalog.go -c configs -f scripts/catalog.yaml

package main

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/service"
	"aerovision_backend/pkg/database"
	"aerovision_backend/pkg/logger"
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Courses []map[string]interface{} `yaml:"courses"`
}

func loadCatalog(path string) ([]model.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	// 经 JSON 转一次，复用模型上的 json 标签
	raw, err := json.Marshal(file.Courses)
	if err != nil {
		return nil, err
	}
	var courses []model.Course
	if err := json.Unmarshal(raw, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func main() {
	configDir := pflag.StringP("config", "c", "configs", "配置文件目录")
	catalogPath := pflag.StringP("file", "f", "scripts/catalog.yaml", "课程目录文件")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	courses, err := loadCatalog(*catalogPath)
	if err != nil {
		log.Fatalf("读取课程目录失败: %v", err)
	}

	courseService := service.NewCourseService(
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
	)

	ctx := context.Background()
	for i := range courses {
		saved, err := courseService.Save(ctx, &courses[i])
		if err != nil {
			logger.Log.Error("Failed to seed course", zap.String("title", courses[i].Title), zap.Error(err))
			continue
		}
		logger.Log.Info("Course seeded", zap.String("id", saved.ID), zap.String("title", saved.Title))
	}
	log.Printf("完成！共处理 %d 门课程", len(courses))
}
