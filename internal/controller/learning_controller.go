package controller

import (
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningController struct {
	EnrollmentService *service.EnrollmentService
	ProgressService   *service.ProgressService
}

func NewLearningController(enrollmentService *service.EnrollmentService, progressService *service.ProgressService) *LearningController {
	return &LearningController{
		EnrollmentService: enrollmentService,
		ProgressService:   progressService,
	}
}

// SaveProgressRequest 客户端提交完整的进度状态
type SaveProgressRequest struct {
	CurrentModuleIndex int      `json:"currentModuleIndex" binding:"min=0"`
	CurrentLessonIndex int      `json:"currentLessonIndex" binding:"min=0"`
	CompletedLessons   []string `json:"completedLessons"`
}

type AnswerQuizRequest struct {
	OptionID string `json:"optionId" binding:"required"`
}

// GetEnrollment godoc
// @Summary 查询是否已报名
// @Description 管理员对所有课程均视为已报名
// @Tags 学习
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/courses/{id}/enrollment [get]
func (c *LearningController) GetEnrollment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrolled, err := c.EnrollmentService.IsEnrolled(ctx.Request.Context(), claims.Email, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"enrolled": enrolled})
}

// Enroll godoc
// @Summary 报名课程
// @Description 模拟即时支付确认；重复报名不会产生新记录
// @Tags 学习
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.EnrollmentReceipt}
// @Failure 404 {object} util.Response "课程不存在或未发布"
// @Router /api/courses/{id}/enroll [post]
func (c *LearningController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	receipt, err := c.EnrollmentService.Enroll(ctx.Request.Context(), claims.Email, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, receipt)
}

// GetProgress godoc
// @Summary 获取课程进度
// @Description 尚无记录时 data 为 null
// @Tags 学习
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Failure 403 {object} util.Response "未报名"
// @Router /api/courses/{id}/progress [get]
func (c *LearningController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	result, err := c.ProgressService.Get(ctx.Request.Context(), claims.Email, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if result == nil {
		util.Success(ctx, nil)
		return
	}
	util.Success(ctx, result)
}

// SaveProgress godoc
// @Summary 保存课程进度
// @Description 完成全部课时的那一次保存会返回 justCompleted=true
// @Tags 学习
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param body body SaveProgressRequest true "进度"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Failure 400 {object} util.Response "游标超出课程范围"
// @Failure 403 {object} util.Response "未报名"
// @Router /api/courses/{id}/progress [put]
func (c *LearningController) SaveProgress(ctx *gin.Context) {
	var req SaveProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.ProgressService.Save(ctx.Request.Context(), claims.Email, service.ProgressInput{
		CourseID:           ctx.Param("id"),
		CurrentModuleIndex: req.CurrentModuleIndex,
		CurrentLessonIndex: req.CurrentLessonIndex,
		CompletedLessons:   req.CompletedLessons,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// AnswerQuiz godoc
// @Summary 提交测验答案
// @Description 答对时该课时记为已完成
// @Tags 学习
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param body body AnswerQuizRequest true "选项"
// @Success 200 {object} util.Response{data=service.QuizResult}
// @Router /api/courses/{id}/lessons/{lessonId}/answer [post]
func (c *LearningController) AnswerQuiz(ctx *gin.Context) {
	var req AnswerQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.ProgressService.AnswerQuiz(ctx.Request.Context(), claims.Email, ctx.Param("id"), ctx.Param("lessonId"), req.OptionID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Dashboard godoc
// @Summary 学员首页
// @Description 已报名课程及完成度
// @Tags 学习
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.DashboardEntry}
// @Router /api/dashboard [get]
func (c *LearningController) Dashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	entries, err := c.ProgressService.Dashboard(ctx.Request.Context(), claims.Email)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}
