package controller

import (
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
	Hub   *service.MailboxHub
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, hub *service.MailboxHub) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Hub: hub}
}

// @Summary 健康检查
// @Description 检查数据库与 Redis 状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	components := gin.H{
		"database": "up",
		"redis":    "disabled",
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			util.Error(ctx, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
		components["redis"] = "up"
	}

	util.Success(ctx, gin.H{
		"status":           "ok",
		"components":       components,
		"streamUsers":      len(c.Hub.ConnectedUsers()),
		"pollIntervalSecs": c.Hub.PollInterval().Seconds(),
	})
}
