package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tokengate_backend/internal/config"
	"tokengate_backend/internal/controller"
	"tokengate_backend/internal/registry"
	"tokengate_backend/internal/repository"
	"tokengate_backend/internal/service"
	"tokengate_backend/pkg/configwatcher"
	"tokengate_backend/pkg/database"
	"tokengate_backend/pkg/logger"
	"tokengate_backend/pkg/monitoring"
	"tokengate_backend/pkg/security"
	"tokengate_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client
	services  *services
	scheduler *gocron.Scheduler
}

type repositories struct {
	user     *repository.UserRepository
	course   *repository.CourseRepository
	progress *repository.ProgressRepository
	xp       *repository.XPRepository
	bounty   *repository.BountyRepository
}

type services struct {
	auth        *service.AuthService
	course      *service.CourseService
	credential  *service.CredentialService
	sync        *service.SyncService
	xp          *service.XPService
	progression *service.ProgressionService
	bounty      *service.BountyService
	hub         *service.ProgressHub
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	progression *controller.ProgressionController
	xp          *controller.XPController
	bounty      *controller.BountyController
	admin       *controller.AdminController
	health      *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		course:   repository.NewCourseRepository(db),
		progress: repository.NewProgressRepository(db),
		xp:       repository.NewXPRepository(db),
		bounty:   repository.NewBountyRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.course = service.NewCourseService(repos.course)

	checker := registry.NewClient(
		cfg.Registry.BaseURL,
		cfg.Registry.APIKey,
		cfg.Registry.Timeout,
		cfg.Registry.RetryAttempts,
	)
	s.credential = service.NewCredentialService(checker, rdb, cfg.Registry.CacheTTL)

	s.hub = service.NewProgressHub(rdb)
	go s.hub.Run()

	cache := service.NewRedisVectorCache(rdb, cfg.Sync.CacheTTL)
	s.sync = service.NewSyncService(cache, repos.progress, s.hub, cfg.Sync.MaxRetries)

	s.xp = service.NewXPService(repos.xp, cfg.XP.QuizReward)
	s.progression = service.NewProgressionService(s.course, s.credential, s.sync, s.xp)
	s.bounty = service.NewBountyService(repos.bounty, s.xp)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		course:      controller.NewCourseController(s.course),
		progression: controller.NewProgressionController(s.progression, s.hub),
		xp:          controller.NewXPController(s.xp),
		bounty:      controller.NewBountyController(s.bounty),
		admin:       controller.NewAdminController(s.progression, repos.user),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 冲刷调度：周期性把排队的进度向量写入权威存储
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(cfg.Sync.FlushInterval).Do(func() {
		s.sync.FlushPending(context.Background())
	}); err != nil {
		logger.Log.Fatal("Failed to schedule progress flush", zap.Error(err))
	}
	scheduler.StartAsync()
	a.scheduler = scheduler
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("tokengate-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks(services, cfg)

	// 配置热更新：只回调，不重启服务
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		logger.Log.Info("config reloaded", zap.String("mode", newCfg.Server.Mode))
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// 关停前把排队的进度向量冲刷完，尽量不丢乐观写入
	if a.services != nil && a.services.sync != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.services.sync.FlushPending(flushCtx)
		cancel()
	}

	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
