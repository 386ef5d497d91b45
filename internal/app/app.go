package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"student_control_backend/internal/config"
	"student_control_backend/internal/controller"
	"student_control_backend/internal/repository"
	"student_control_backend/internal/service"
	"student_control_backend/pkg/configwatcher"
	"student_control_backend/pkg/database"
	"student_control_backend/pkg/logger"
	"student_control_backend/pkg/monitoring"
	"student_control_backend/pkg/security"
	"student_control_backend/pkg/tracing"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	LMSDB  *gorm.DB
	Redis  *redis.Client

	// 热重载会整体替换配置指针，读写两侧都走原子操作
	cfg atomic.Pointer[config.Config]

	services       *services
	tracerProvider *sdktrace.TracerProvider
}

// Config 当前生效的配置快照
func (a *App) Config() *config.Config {
	return a.cfg.Load()
}

type repositories struct {
	cache *repository.CacheRepository
	lms   *repository.LMSRepository
	admin *repository.AdminRepository
}

type services struct {
	auth        *service.AuthService
	aggregation *service.AggregationService
	refresh     *service.RefreshService
	query       *service.StudentQueryService
}

type controllers struct {
	auth    *controller.AuthController
	student *controller.StudentController
	course  *controller.CourseController
	health  *controller.HealthController
}

func (a *App) initRepositories(cfg *config.Config, db, lmsDB *gorm.DB, loc *time.Location) *repositories {
	return &repositories{
		cache: repository.NewCacheRepository(db, loc),
		lms:   repository.NewLMSRepository(lmsDB, &cfg.LMS, loc),
		admin: repository.NewAdminRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.admin, cfg)
	s.aggregation = service.NewAggregationService(repos.lms, repos.cache, cfg)
	s.refresh = service.NewRefreshService(
		s.aggregation,
		repos.lms,
		repos.cache,
		service.NewIntervalPacer(cfg.Cache.BatchPause),
		cfg,
	)
	s.query = service.NewStudentQueryService(repos.cache, repos.lms, rdb)

	return s
}

func (a *App) initControllers(s *services, db, lmsDB *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		student: controller.NewStudentController(s.query, s.refresh),
		course:  controller.NewCourseController(s.query),
		health:  controller.NewHealthController(db, lmsDB),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// nextDailyRun 下一次定时刷新的时刻（本地时区的指定整点）
func nextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func (a *App) startBackgroundTasks(s *services, configPath string) {
	if a.Config().Cache.DailyRefreshEnable {
		go func() {
			for {
				next := nextDailyRun(time.Now(), a.Config().Cache.DailyRefreshHour)
				time.Sleep(time.Until(next))

				total, failed, err := s.refresh.RefreshAll(context.Background())
				if err != nil {
					logger.Log.Error("daily cache refresh failed", zap.Error(err))
					continue
				}
				logger.Log.Info("daily cache refresh finished",
					zap.Int("total", total),
					zap.Int("failed", failed))
			}
		}()
	}

	go configwatcher.WatchConfig(configPath, func(cfg *config.Config) {
		a.cfg.Store(cfg)
		logger.Log.Info("configuration reloaded")
	})
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	lmsDB, err := database.InitLMSDB(&cfg.LMS.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize LMS database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.LMS.Timezone)
	if err != nil || cfg.LMS.Timezone == "" {
		loc = time.Local
	}

	app := &App{
		DB:    db,
		LMSDB: lmsDB,
		Redis: rdb,
	}
	app.cfg.Store(cfg)

	repos := app.initRepositories(cfg, db, lmsDB, loc)

	// 缓存表结构自愈：建表/补列/删废弃列，可重复执行
	if err := repos.cache.EnsureSchema(); err != nil {
		logger.Log.Fatal("Failed to ensure cache schema", zap.Error(err))
	}

	services := app.initServices(repos, cfg, rdb)
	app.services = services

	if err := services.auth.EnsureBootstrapAdmin(); err != nil {
		logger.Log.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	controllers := app.initControllers(services, db, lmsDB)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("student-control", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, cfg)
	app.startBackgroundTasks(services, configPath)

	return app
}

// RebuildAll 命令行一次性全量重建入口
func (a *App) RebuildAll(ctx context.Context) (int, int, error) {
	return a.services.refresh.RebuildAll(ctx)
}

func (a *App) Run() {
	port := a.Config().Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
