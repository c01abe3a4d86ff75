package controller

import (
	"aerovision_backend/internal/middleware"
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	StudentService *service.StudentService
	CourseService  *service.CourseService
	MediaService   *service.MediaService
}

func NewAdminController(studentService *service.StudentService, courseService *service.CourseService, mediaService *service.MediaService) *AdminController {
	return &AdminController{
		StudentService: studentService,
		CourseService:  courseService,
		MediaService:   mediaService,
	}
}

// ListCourses godoc
// @Summary 全部课程（含未发布）
// @Tags 课程管理
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /api/admin/courses [get]
func (c *AdminController) ListCourses(ctx *gin.Context) {
	courses, err := c.CourseService.List(ctx.Request.Context(), middleware.GetSession(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// ListStudents godoc
// @Summary 学员名册
// @Description 每位学员的报名课程及完成度
// @Tags 管理
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.StudentOverview}
// @Router /api/admin/students [get]
func (c *AdminController) ListStudents(ctx *gin.Context) {
	students, err := c.StudentService.List(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, students)
}

// GetStudent godoc
// @Summary 学员详情
// @Tags 管理
// @Security ApiKeyAuth
// @Param email path string true "学员邮箱"
// @Success 200 {object} util.Response{data=service.StudentOverview}
// @Failure 404 {object} util.Response
// @Router /api/admin/students/{email} [get]
func (c *AdminController) GetStudent(ctx *gin.Context) {
	student, err := c.StudentService.Get(ctx.Request.Context(), ctx.Param("email"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, student)
}

// Stats godoc
// @Summary 管理端统计
// @Tags 管理
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.AdminStats}
// @Router /api/admin/stats [get]
func (c *AdminController) Stats(ctx *gin.Context) {
	stats, err := c.StudentService.Stats(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// Upload godoc
// @Summary 上传课程媒体
// @Description 支持图片与视频；视频会返回时长与封面
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept multipart/form-data
// @Param file formData file true "文件"
// @Success 201 {object} util.Response{data=service.MediaAsset}
// @Failure 400 {object} util.Response "文件类型或大小不合法"
// @Router /api/admin/uploads [post]
func (c *AdminController) Upload(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	asset, err := c.MediaService.Upload(ctx.Request.Context(), header)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, asset)
}

type DeleteUploadRequest struct {
	URL string `json:"url" binding:"required"`
}

// DeleteUpload godoc
// @Summary 删除课程媒体
// @Description 替换或删除图片 / 视频内容块后清理已上传的文件
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body DeleteUploadRequest true "上传返回的 URL"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "文件不存在"
// @Router /api/admin/uploads [delete]
func (c *AdminController) DeleteUpload(ctx *gin.Context) {
	var req DeleteUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.MediaService.Delete(ctx.Request.Context(), req.URL); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
