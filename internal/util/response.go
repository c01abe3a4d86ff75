package util

import (
	"aerovision_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// HandleError 按错误类别映射 HTTP 状态码，未识别的错误按 500 处理并记录日志
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRegistrationConflict):
		Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		Unauthorized(c)
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrLessonNotFound),
		errors.Is(err, ErrBlockNotFound),
		errors.Is(err, ErrOptionNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidCourse),
		errors.Is(err, ErrInvalidProgress),
		errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrInvalidUpload):
		BadRequest(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}
