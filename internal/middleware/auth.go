package middleware

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionResolver 把令牌解析为仍然有效的会话
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.Session, error)
}

// 流式接口无法设置请求头，允许通过 token 查询参数传递
func extractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if token := strings.TrimPrefix(authHeader, "Bearer "); token != authHeader {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

func attach(c *gin.Context, sess *model.Session) {
	c.Set("session", sess)
	c.Set("user", &util.Claims{
		UserID: sess.UserID,
		Role:   sess.Role,
		Email:  sess.Email,
		Name:   sess.Name,
	})
	c.Request = c.Request.WithContext(service.WithSession(c.Request.Context(), sess))
}

func AuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		sess, err := sessions.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			util.HandleError(c, err)
			c.Abort()
			return
		}

		attach(c, sess)
		c.Next()
	}
}

// TryAuthMiddleware 公开接口上可选的身份识别，令牌无效时按访客处理
func TryAuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if sess, err := sessions.Resolve(c.Request.Context(), tokenString); err == nil {
				attach(c, sess)
			}
		}
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			// 管理员直接放行
			if user.Role == model.Admin || user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetSession(c *gin.Context) *model.Session {
	v, ok := c.Get("session")
	if !ok {
		return nil
	}
	sess, _ := v.(*model.Session)
	return sess
}
