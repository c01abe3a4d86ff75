package controller

import (
	"aerovision_backend/internal/middleware"
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// RegisterRequest defines model for registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	DNI      string `json:"dni" binding:"required,dni"`
}

// LoginRequest defines model for login
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// AuthResponse 登录与注册的返回体
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

func authResponse(user *model.User, issued *service.IssuedSession) AuthResponse {
	return AuthResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      user,
	}
}

// Register godoc
// @Summary 注册新学员
// @Description 邮箱与 DNI 均不可重复，注册成功后自动登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "注册信息"
// @Success 201 {object} util.Response{data=AuthResponse} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱或 DNI 已被注册"
// @Router /api/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, issued, err := c.AuthService.Register(ctx.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		DNI:      req.DNI,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, authResponse(user, issued))
}

// Login godoc
// @Summary 用户登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录凭证"
// @Success 200 {object} util.Response{data=AuthResponse}
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, issued, err := c.AuthService.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, authResponse(user, issued))
}

// Logout godoc
// @Summary 退出登录
// @Description 销毁当前会话，令牌立即失效
// @Tags 认证
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	if err := c.AuthService.Logout(ctx.Request.Context(), middleware.GetSession(ctx)); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetProfile godoc
// @Summary 获取当前用户信息
// @Tags 用户
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} util.Response{data=model.User}
// @Router /api/profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	user, err := c.AuthService.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// UpdateProfile godoc
// @Summary 修改姓名
// @Tags 用户
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body UpdateProfileRequest true "新姓名"
// @Success 200 {object} util.Response{data=model.User}
// @Router /api/profile [put]
func (c *AuthController) UpdateProfile(ctx *gin.Context) {
	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	user, err := c.AuthService.UpdateProfile(ctx.Request.Context(), claims.UserID, req.Name)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ChangePassword godoc
// @Summary 修改密码
// @Description 新密码至少 6 位，且必须提供正确的当前密码
// @Tags 用户
// @Security ApiKeyAuth
// @Accept json
// @Param body body ChangePasswordRequest true "密码"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "当前密码错误"
// @Router /api/profile/password [put]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.AuthService.ChangePassword(ctx.Request.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
