package configwatcher

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/pkg/logger"
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounce = time.Second

type ConfigReloader func(cfg *config.Config)

// Watch 监听配置目录下的 config.yaml，变更在防抖后重新加载并回调。
// 监听目录而不是文件本身，编辑器先写临时文件再 rename 时也能收到事件
func Watch(ctx context.Context, configDir string, reloader ConfigReloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(configDir)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(absDir); err != nil {
		watcher.Close()
		return err
	}

	go loop(ctx, watcher, absDir, reloader)
	return nil
}

func loop(ctx context.Context, watcher *fsnotify.Watcher, dir string, reloader ConfigReloader) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "config.yaml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// 防抖处理
			timer.Reset(debounce)
		case <-timer.C:
			newCfg, err := config.LoadConfig(dir)
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("dir", dir))
			reloader(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
