package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	// --- 导入内部包 ---
	"desk-ledger/internal/broadcast"
	"desk-ledger/internal/directory"
	httpHandler "desk-ledger/internal/handler/http"
	wsHandler "desk-ledger/internal/handler/websocket"
	"desk-ledger/internal/hub"
	gormpersistence "desk-ledger/internal/infra/persistence/gorm"
	"desk-ledger/internal/infra/setup"
	redisstate "desk-ledger/internal/infra/state/redis"
	"desk-ledger/internal/ledger"
	"desk-ledger/internal/metrics"
	"desk-ledger/internal/middleware"
	"desk-ledger/internal/serializer"
	"desk-ledger/internal/service"
	"desk-ledger/internal/worker"
)

// snapshotFunc 让 Hub 在 RoomService 创建之前就能引用它。
type snapshotFunc func(ctx context.Context, roomCode string, deliver func(payload []byte)) error

func (f snapshotFunc) Snapshot(ctx context.Context, roomCode string, deliver func(payload []byte)) error {
	return f(ctx, roomCode, deliver)
}

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Registry    *prometheus.Registry
	Serializer  *serializer.Serializer
	Hub         *hub.Hub
	Relay       *redisstate.Relay
	RoomService *service.RoomService
	Worker      *worker.WorkerServer
	Scheduler   *worker.Scheduler
	Router      *gin.Engine
	HttpServer  *http.Server

	cancel context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp(cfg *Config) (*App, error) {
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Env: %s)", log.GetLevel(), cfg.AppEnv)

	// 1. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(setup.DBOptions{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = setup.InitRedis(ctx, setup.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
	} else {
		log.Warn("DESK_REDIS_ADDR not set, running in single-instance mode")
	}

	// 2. 初始化 Repositories 和指标
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	userRepo := gormpersistence.NewGormUserRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 3. 初始化核心组件与 Services
	log.Info("Initializing services...")
	serial := serializer.New(m)
	dir := directory.New(roomRepo, cfg.CodeAttempts)
	led := ledger.New(ledger.WithMaxMembers(cfg.MaxMembers), ledger.WithTTL(cfg.RoomTTL))

	var roomService *service.RoomService
	hubInstance := hub.NewHub(snapshotFunc(func(ctx context.Context, code string, deliver func(payload []byte)) error {
		return roomService.Snapshot(ctx, code, deliver)
	}))

	// 有 Redis 时经由频道广播，由每个实例的 Relay 扇出；否则直接交给本地 Hub
	var channel broadcast.Channel = hubInstance
	var stateRepo *redisstate.RedisStateRepository
	var relay *redisstate.Relay
	if redisClient != nil {
		stateRepo = redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
		relay = redisstate.NewRelay(redisClient, cfg.KeyPrefix, hubInstance)
		channel = stateRepo
	}
	gateway := broadcast.NewGateway(channel, m)

	roomService = service.NewRoomService(roomRepo, dir, led, serial, gateway, m)
	userService := service.NewUserService(userRepo)

	// 4. 初始化 Worker
	var workerServer *worker.WorkerServer
	var scheduler *worker.Scheduler
	if redisClient != nil {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		workerServer = worker.NewWorkerServer(redisOpt, roomService, log)
		scheduler, err = worker.NewScheduler(redisOpt, cfg.SweepSchedule, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init scheduler: %w", err)
		}
	}

	// 5. 初始化 Gin Engine 和路由
	log.Info("Setting up Gin router...")
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	if stateRepo != nil {
		api.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))
	}
	httpHandler.RegisterRoutes(api, httpHandler.NewRoomHandler(roomService), httpHandler.NewUserHandler(userService))

	ws := wsHandler.NewWebSocketHandler(hubInstance, roomService, cfg.CORSAllowedOrigin)
	router.GET("/ws/rooms/:code", ws.HandleConnection)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		Registry:    registry,
		Serializer:  serial,
		Hub:         hubInstance,
		Relay:       relay,
		RoomService: roomService,
		Worker:      workerServer,
		Scheduler:   scheduler,
		Router:      router,
		HttpServer:  httpServer,
	}, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.Hub.Run(ctx)
	a.Log.Info("Hub routine started")

	if a.Relay != nil {
		go func() {
			if err := a.Relay.Run(ctx, nil); err != nil {
				a.Log.WithError(err).Error("Relay stopped with error")
			}
		}()
	}
	if a.Worker != nil {
		go a.Worker.Start()
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			a.Log.WithError(err).Error("Failed to start scheduler")
		}
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用，未启动的组件会被跳过
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	}

	// 2. 停止后台任务
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.Worker != nil {
		a.Worker.Shutdown()
	}

	// 3. 等待已入队的变更执行完，再停止 Hub 和 Relay
	a.Serializer.Close()
	if a.cancel != nil {
		a.cancel()
	}

	// 4. 关闭连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}
