package controller

import (
	"aerovision_backend/internal/middleware"
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

type AddBlockRequest struct {
	Type    model.BlockType `json:"type" binding:"required,oneof=text image video"`
	Content string          `json:"content"`
}

type UpdateBlockRequest struct {
	Content string `json:"content"`
}

type MoveBlockRequest struct {
	Direction model.MoveDirection `json:"direction" binding:"required,oneof=up down"`
}

type SetCorrectOptionRequest struct {
	OptionID string `json:"optionId" binding:"required"`
}

// ListCourses godoc
// @Summary 课程目录
// @Description 学员与访客只能看到已发布课程；管理员看到全部课程
// @Tags 课程
// @Produce json
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	courses, err := c.CourseService.List(ctx.Request.Context(), middleware.GetSession(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// GetCourse godoc
// @Summary 课程详情
// @Description 未报名时只返回目录，报名后返回完整课时内容
// @Tags 课程
// @Produce json
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseView}
// @Failure 404 {object} util.Response "课程不存在或未发布"
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	view, err := c.CourseService.Get(ctx.Request.Context(), ctx.Param("id"), middleware.GetSession(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body model.Course true "课程"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response "标题为空或测验不合法"
// @Router /api/admin/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var course model.Course
	if err := ctx.ShouldBindJSON(&course); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	saved, err := c.CourseService.Save(ctx.Request.Context(), &course)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, saved)
}

// UpdateCourse godoc
// @Summary 保存课程
// @Description 按 ID upsert，请求体为完整课程
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param body body model.Course true "课程"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/admin/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	var course model.Course
	if err := ctx.ShouldBindJSON(&course); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course.ID = ctx.Param("id")

	saved, err := c.CourseService.Save(ctx.Request.Context(), &course)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, saved)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Description 同时删除该课程的报名与学习进度
// @Tags 课程管理
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	if err := c.CourseService.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddBlock godoc
// @Summary 添加内容块
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param body body AddBlockRequest true "内容块"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Router /api/admin/courses/{id}/lessons/{lessonId}/blocks [post]
func (c *CourseController) AddBlock(ctx *gin.Context) {
	var req AddBlockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.CourseService.AddBlock(ctx.Request.Context(), ctx.Param("id"), ctx.Param("lessonId"), req.Type, req.Content)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// UpdateBlock godoc
// @Summary 修改内容块
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param blockId path string true "内容块ID"
// @Param body body UpdateBlockRequest true "内容"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/admin/courses/{id}/lessons/{lessonId}/blocks/{blockId} [put]
func (c *CourseController) UpdateBlock(ctx *gin.Context) {
	var req UpdateBlockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.CourseService.UpdateBlock(ctx.Request.Context(), ctx.Param("id"), ctx.Param("lessonId"), ctx.Param("blockId"), req.Content)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// RemoveBlock godoc
// @Summary 删除内容块
// @Tags 课程管理
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param blockId path string true "内容块ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/admin/courses/{id}/lessons/{lessonId}/blocks/{blockId} [delete]
func (c *CourseController) RemoveBlock(ctx *gin.Context) {
	lesson, err := c.CourseService.RemoveBlock(ctx.Request.Context(), ctx.Param("id"), ctx.Param("lessonId"), ctx.Param("blockId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// MoveBlock godoc
// @Summary 调整内容块顺序
// @Description 已在首位上移或末位下移时不做改动
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param blockId path string true "内容块ID"
// @Param body body MoveBlockRequest true "方向"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/admin/courses/{id}/lessons/{lessonId}/blocks/{blockId}/move [post]
func (c *CourseController) MoveBlock(ctx *gin.Context) {
	var req MoveBlockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.CourseService.MoveBlock(ctx.Request.Context(), ctx.Param("id"), ctx.Param("lessonId"), ctx.Param("blockId"), req.Direction)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// SetCorrectOption godoc
// @Summary 设置测验正确选项
// @Tags 课程管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param body body SetCorrectOptionRequest true "选项"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/admin/courses/{id}/lessons/{lessonId}/quiz/correct [put]
func (c *CourseController) SetCorrectOption(ctx *gin.Context) {
	var req SetCorrectOptionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.CourseService.SetCorrectOption(ctx.Request.Context(), ctx.Param("id"), ctx.Param("lessonId"), req.OptionID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}
