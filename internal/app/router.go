package app

import (
	"aerovision_backend/docs"
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/middleware"
	"aerovision_backend/internal/model"

	"aerovision_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	sessions := a.services.sessions

	// 1. 公共路由(无需登录，登录用户可看到更多内容)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(sessions))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AuthMiddleware(sessions), middleware.RoleMiddleware(model.Admin))
	{
		a.registerAdminRoutes(adminGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 课程目录对访客开放
	catalog := router.Group("/api/courses")
	catalog.Use(middleware.TryAuthMiddleware(a.services.sessions))
	{
		catalog.GET("", c.course.ListCourses)
		catalog.GET("/:id", c.course.GetCourse)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	// 账号
	rg.POST("/logout", c.auth.Logout)
	rg.GET("/profile", c.auth.GetProfile)
	rg.PUT("/profile", c.auth.UpdateProfile)
	rg.PUT("/profile/password", c.auth.ChangePassword)

	// 报名与学习进度
	rg.GET("/dashboard", c.learning.Dashboard)
	rg.GET("/courses/:id/enrollment", c.learning.GetEnrollment)
	rg.POST("/courses/:id/enroll", c.learning.Enroll)
	rg.GET("/courses/:id/progress", c.learning.GetProgress)
	rg.PUT("/courses/:id/progress", c.learning.SaveProgress)
	rg.POST("/courses/:id/lessons/:lessonId/answer", c.learning.AnswerQuiz)

	// 站内信
	rg.GET("/messages", c.message.GetThread)
	rg.POST("/messages", c.message.SendMessage)
	rg.POST("/messages/read", c.message.MarkRead)
	rg.GET("/messages/unread", c.message.UnreadCount)
	rg.GET("/messages/stream", c.message.Stream)
	rg.GET("/messages/ws", c.message.WebSocket)
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	// 课程管理
	rg.GET("/courses", c.admin.ListCourses)
	rg.POST("/courses", c.course.CreateCourse)
	rg.PUT("/courses/:id", c.course.UpdateCourse)
	rg.DELETE("/courses/:id", c.course.DeleteCourse)

	// 课时内容块编辑
	rg.POST("/courses/:id/lessons/:lessonId/blocks", c.course.AddBlock)
	rg.PUT("/courses/:id/lessons/:lessonId/blocks/:blockId", c.course.UpdateBlock)
	rg.DELETE("/courses/:id/lessons/:lessonId/blocks/:blockId", c.course.RemoveBlock)
	rg.POST("/courses/:id/lessons/:lessonId/blocks/:blockId/move", c.course.MoveBlock)
	rg.PUT("/courses/:id/lessons/:lessonId/quiz/correct", c.course.SetCorrectOption)

	rg.POST("/uploads", c.admin.Upload)
	rg.DELETE("/uploads", c.admin.DeleteUpload)

	// 学员与收件箱
	rg.GET("/students", c.admin.ListStudents)
	rg.GET("/students/:email", c.admin.GetStudent)
	rg.GET("/conversations", c.message.Conversations)
	rg.GET("/stats", c.admin.Stats)
}
