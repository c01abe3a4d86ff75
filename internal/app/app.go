package app

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/controller"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/configwatcher"
	"aerovision_backend/pkg/database"
	"aerovision_backend/pkg/logger"
	"aerovision_backend/pkg/monitoring"
	"aerovision_backend/pkg/security"
	"aerovision_backend/pkg/tracing"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	limiter         *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	course     *repository.CourseRepository
	enrollment *repository.EnrollmentRepository
	progress   *repository.ProgressRepository
	message    *repository.MessageRepository
}

type services struct {
	sessions   *service.SessionService
	auth       *service.AuthService
	course     *service.CourseService
	enrollment *service.EnrollmentService
	progress   *service.ProgressService
	mailboxHub *service.MailboxHub
	mailbox    *service.MailboxService
	student    *service.StudentService
	storage    *service.StorageService
	media      *service.MediaService
}

type controllers struct {
	auth     *controller.AuthController
	course   *controller.CourseController
	learning *controller.LearningController
	message  *controller.MessageController
	admin    *controller.AdminController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		course:     repository.NewCourseRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
		progress:   repository.NewProgressRepository(db),
		message:    repository.NewMessageRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.sessions = service.NewSessionService(rdb, cfg)
	s.auth = service.NewAuthService(repos.user, s.sessions)

	s.course = service.NewCourseService(repos.course, repos.enrollment)
	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.course, repos.user)
	s.progress = service.NewProgressService(repos.progress, repos.course, s.enrollment)

	s.mailboxHub = service.NewMailboxHub(rdb, repos.message, cfg.Mailbox.ClientBuffer, cfg.Mailbox.PollInterval)
	s.mailbox = service.NewMailboxService(repos.message, repos.user, s.mailboxHub, service.NormalizeEmail(cfg.Admin.Email))

	s.student = service.NewStudentService(
		repos.user,
		repos.course,
		repos.enrollment,
		repos.progress,
		repos.message,
		service.NormalizeEmail(cfg.Admin.Email),
	)

	s.storage = service.NewStorageService(&cfg.Storage)
	s.media = service.NewMediaService(s.storage, cfg.Storage.MaxUploadMB)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		course:   controller.NewCourseController(s.course),
		learning: controller.NewLearningController(s.enrollment, s.progress),
		message:  controller.NewMessageController(s.mailbox, s.mailboxHub),
		admin:    controller.NewAdminController(s.student, s.course, s.media),
		health:   controller.NewHealthController(db, rdb, s.mailboxHub),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// 配置热更新：日志级别、消息对账间隔、限流阈值
func (a *App) registerReloaders() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetLevel(cfg)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.mailboxHub.SetPollInterval(cfg.Mailbox.PollInterval)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.limiter.SetLimit(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	})
}

func (a *App) reload(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// New 组装仓储、服务与路由；数据库与 Redis 由调用方初始化
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	if err := util.RegisterValidators(); err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		ConfigDir: "configs",
		DB:        db,
		Redis:     rdb,
		limiter:   security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute),
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if local, ok := app.services.storage.Provider.(*service.LocalStorageProvider); ok {
		router.Static("/uploads", local.Root)
	}

	app.registerReloaders()
	return app, nil
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app, err := New(cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to assemble application", zap.Error(err))
	}
	app.tracer = tp
	return app
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.services.mailboxHub.Start(ctx); err != nil {
		logger.Log.Fatal("Failed to start mailbox hub", zap.Error(err))
	}

	go a.limiter.Cleanup(ctx.Done())

	if err := configwatcher.Watch(ctx, a.ConfigDir, a.reload); err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 先停止推送循环并关闭长连接，否则 Shutdown 会等待 SSE 请求结束
	cancel()
	a.services.mailboxHub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
