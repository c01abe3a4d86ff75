package middleware

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/util"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubResolver map[string]*model.Session

func (s stubResolver) Resolve(_ context.Context, token string) (*model.Session, error) {
	if sess, ok := s[token]; ok {
		return sess, nil
	}
	return nil, util.ErrSessionNotFound
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := stubResolver{
		"student-token": {ID: "s1", UserID: 2, Email: "ana@example.com", Role: model.Student},
		"admin-token":   {ID: "s2", UserID: 1, Email: "admin@aerovision.com", Role: model.Admin},
	}

	r := gin.New()
	r.GET("/public", TryAuthMiddleware(sessions), func(c *gin.Context) {
		if sess := GetSession(c); sess != nil {
			c.String(http.StatusOK, sess.Email)
			return
		}
		c.String(http.StatusOK, "guest")
	})
	r.GET("/private", AuthMiddleware(sessions), func(c *gin.Context) {
		c.String(http.StatusOK, util.GetUserFromContext(c).Email)
	})
	r.GET("/admin", AuthMiddleware(sessions), RoleMiddleware(model.Admin), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func do(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/private", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/private", "Bearer revoked").Code)

	w := do(r, "/private", "Bearer student-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", w.Body.String())

	// 流式接口通过查询参数携带令牌
	w = do(r, "/private?token=student-token", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTryAuthMiddleware(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, "guest", do(r, "/public", "").Body.String())
	assert.Equal(t, "guest", do(r, "/public", "Bearer revoked").Body.String())
	assert.Equal(t, "admin@aerovision.com", do(r, "/public", "Bearer admin-token").Body.String())
}

func TestRoleMiddleware(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer student-token").Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "Bearer admin-token").Code)
}
