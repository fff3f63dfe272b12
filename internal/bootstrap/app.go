package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/SinarPandora/Jellyfish-sub000/internal/configcache"
	"github.com/SinarPandora/Jellyfish-sub000/internal/dispatch"
	httpHandler "github.com/SinarPandora/Jellyfish-sub000/internal/handler/http"
	gormpersistence "github.com/SinarPandora/Jellyfish-sub000/internal/infra/persistence/gorm"
	"github.com/SinarPandora/Jellyfish-sub000/internal/infra/setup"
	redisstate "github.com/SinarPandora/Jellyfish-sub000/internal/infra/state/redis"
	"github.com/SinarPandora/Jellyfish-sub000/internal/middleware"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform/kook"
	"github.com/SinarPandora/Jellyfish-sub000/internal/service"
	"github.com/SinarPandora/Jellyfish-sub000/internal/tasks"
	"github.com/SinarPandora/Jellyfish-sub000/internal/worker"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBUser        string
	DBPassword    string
	DBHost        string
	DBPort        string
	DBName        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	ServerPort    string
	LogLevel      string
	AppEnv        string
	KeyPrefix     string

	BotToken  string
	BotUserID snowflake.ID

	RateLimitMax    int
	RateLimitWindow time.Duration

	LockTTL        time.Duration // 建房锁过期时间
	GraceWindow    time.Duration // 回收宽限期
	SweepSchedule  string        // 回收任务的 cron/@every 表达式
	EventWorkers   int           // 事件分发器 worker 数
	EventQueueSize int           // 事件队列容量

	// 配置缓存失效通知的 Redis 频道
	InvalidationChannel string
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		BotToken:      os.Getenv("BOT_TOKEN"),
		SweepSchedule: os.Getenv("SWEEP_SCHEDULE"),
		// --- 默认值 ---
		RateLimitMax:        100,
		RateLimitWindow:     1 * time.Second,
		LockTTL:             20 * time.Second,
		GraceWindow:         5 * time.Minute,
		EventWorkers:        4,
		EventQueueSize:      256,
		InvalidationChannel: "jf:room:config:invalidate",
	}

	// 处理 Redis DB
	redisDBStr := os.Getenv("REDIS_DB")
	cfg.RedisDB, _ = strconv.Atoi(redisDBStr) // 忽略错误，默认为 0

	// 机器人自身的用户 ID，回收任务判断“只剩机器人”时需要
	if botIDStr := os.Getenv("BOT_USER_ID"); botIDStr != "" {
		botID, err := snowflake.ParseString(botIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid BOT_USER_ID %q: %w", botIDStr, err)
		}
		cfg.BotUserID = botID
	}

	// 可选的时长覆写
	if s := os.Getenv("LOCK_TTL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCK_TTL %q: %w", s, err)
		}
		cfg.LockTTL = d
	}
	if s := os.Getenv("GRACE_WINDOW"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid GRACE_WINDOW %q: %w", s, err)
		}
		cfg.GraceWindow = d
	}
	if s := os.Getenv("EVENT_WORKERS"); s != "" {
		cfg.EventWorkers, _ = strconv.Atoi(s)
	}
	if s := os.Getenv("EVENT_QUEUE_SIZE"); s != "" {
		cfg.EventQueueSize, _ = strconv.Atoi(s)
	}

	// --- 设置其他默认值和进行必要检查 ---
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "jf:"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 5m"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("environment variable BOT_TOKEN must be set")
	}
	if cfg.BotUserID == 0 {
		return nil, fmt.Errorf("environment variable BOT_USER_ID must be set")
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Dispatcher  *dispatch.Dispatcher
	ConfigCache *configcache.Cache
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler

	// 后台 goroutine (分发器、失效监听) 的生命周期控制
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	logrus.SetLevel(logLevel) // 各包使用的全局 logger 与 App logger 保持同级
	log.Infof("Logger initialized (Level: %s)", logLevel.String())
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	log.Info("Database initialized")

	if err = setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	// 4. 初始化 Repositories 与平台客户端
	log.Info("Initializing repositories...")
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	configRepo := gormpersistence.NewGormRoomConfigRepository(db)
	textRepo := gormpersistence.NewGormTextChannelRepository(db)
	creationLock := redisstate.NewRedisCreationLock(redisClient, cfg.KeyPrefix, cfg.LockTTL)
	gateway := kook.NewClient(cfg.BotToken, log)
	log.Info("Repositories initialized")

	// 5. 初始化配置缓存并预热
	cache := configcache.NewCache(configRepo)
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWarm()
	if err := cache.Warm(warmCtx); err != nil {
		return nil, fmt.Errorf("failed to warm config cache: %w", err)
	}
	log.Info("Room config cache warmed")

	// 6. 初始化 Services
	log.Info("Initializing services...")
	retrier := platform.NewRetrier()
	roomService := service.NewRoomService(roomRepo, textRepo, creationLock, gateway, retrier)
	membershipService := service.NewMembershipService(
		roomRepo, cache, roomService, gateway, retrier, cfg.BotUserID, service.NopNotifier{})
	sweepService := service.NewSweepService(
		roomRepo, textRepo, gateway, retrier, cfg.BotUserID, cfg.GraceWindow)
	log.Info("Services initialized")

	// 7. 初始化事件分发器并挂载成员处理器
	dispatcher := dispatch.NewDispatcher(cfg.EventWorkers, cfg.EventQueueSize, 0)
	membershipService.RegisterHandlers(dispatcher)
	log.Info("Event dispatcher initialized")

	// 8. 初始化 Worker Server
	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, sweepService, log)
	log.Info("Worker server initialized")

	// 9. 初始化 Gin Engine 和路由
	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))

	roomHandler := httpHandler.NewRoomHandler(roomRepo, roomService)
	api := router.Group("/api").Use(middleware.Auth(cfg.JWTSecret))
	{
		api.GET("/guilds/:guild/rooms", roomHandler.ListRooms)
		api.DELETE("/rooms/:id", roomHandler.ForceDissolve)
	}
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	log.Info("Router setup complete")

	// 10. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// 11. 组装 App 对象
	bgCtx, bgCancel := context.WithCancel(context.Background())
	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Dispatcher:     dispatcher,
		ConfigCache:    cache,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
		bgCtx:          bgCtx,
		bgCancel:       bgCancel,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")

	a.Dispatcher.Start(a.bgCtx)
	a.Log.Info("Event dispatcher started")

	go a.ConfigCache.ListenInvalidations(a.bgCtx, a.RedisClient, a.Config.InvalidationChannel)
	a.Log.Info("Config invalidation listener started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	// 启动 HTTP 服务器
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	task, err := tasks.NewRoomSweepTask()
	if err != nil {
		a.Log.Errorf("Failed to create room sweep task payload: %v", err)
		return
	}

	entryID, err := scheduler.Register(a.Config.SweepSchedule, task, asynq.Queue(tasks.QueueSweep))
	if err != nil {
		a.Log.Errorf("Could not register periodic room sweep task: %v", err)
	} else {
		a.Log.Infof("Periodic room sweep task registered with schedule '%s' (EntryID: %s)",
			a.Config.SweepSchedule, entryID)
	}

	a.scheduler = scheduler
	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新事件并等待在途事件处理完毕
	a.bgCancel()
	a.Dispatcher.Wait()
	a.Log.Info("Event dispatcher drained")

	// 2. 停止调度器与 Worker Server
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 3. 优雅关闭 HTTP 服务器
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 4. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	// 5. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else {
			if statusCode >= 500 {
				entry.Error("Server error")
			} else if statusCode >= 400 {
				entry.Warn("Client error")
			} else {
				entry.Info("Request handled")
			}
		}
	}
}
