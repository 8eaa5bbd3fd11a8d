package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-gin-bus-reservation/config"
	"go-gin-bus-reservation/internal/cache"
	"go-gin-bus-reservation/internal/confirmation"
	"go-gin-bus-reservation/internal/database"
	"go-gin-bus-reservation/internal/handler"
	"go-gin-bus-reservation/internal/inventory"
	"go-gin-bus-reservation/internal/middleware"
	"go-gin-bus-reservation/internal/notify"
	"go-gin-bus-reservation/internal/payment"
	"go-gin-bus-reservation/internal/queue"
	"go-gin-bus-reservation/internal/ratelimit"
	"go-gin-bus-reservation/internal/repository"
	"go-gin-bus-reservation/internal/seatmap"
	"go-gin-bus-reservation/internal/service"
	"go-gin-bus-reservation/internal/session"
	"go-gin-bus-reservation/internal/worker"
	"go-gin-bus-reservation/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var configPath string
	var debug bool

	flagSet := pflag.NewFlagSet("bus-reservation", pflag.ExitOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (overrides environment variables)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging and gin debug mode")
	_ = flagSet.Parse(os.Args[1:])

	if debug {
		logger.SetLevel(zapcore.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.WithComponent("main")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = database.InitDatabase(ctx, &cfg.Database)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer pool.Close()

		if err := repository.EnsureSchema(ctx, pool); err != nil {
			log.Fatal("Failed to ensure ticket schema", zap.Error(err))
		}
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = database.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	seed := cfg.Workflow.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var inv inventory.Inventory
	switch cfg.Workflow.InventorySource {
	case "postgres":
		inv = inventory.NewRepositoryInventory(repository.NewTicketRepository(pool))
	default:
		inv = inventory.NewSimulatedInventory(cfg.Workflow.LookupLatency, inventory.DefaultTickets())
	}
	if cfg.Workflow.SearchCacheTTL > 0 {
		inv = inventory.NewCachedInventory(inv, cache.NewRedisSearchCache(rdb, cfg.Workflow.SearchCacheTTL))
	}

	var store session.Store
	switch cfg.Workflow.SessionStore {
	case "redis":
		store = session.NewRedisStore(rdb, cfg.Workflow.SessionTTL)
	default:
		store = session.NewMemoryStore(cfg.Workflow.SessionTTL)
	}

	var receipts queue.ReceiptQueue
	switch cfg.Workflow.ReceiptQueue {
	case "redis":
		receipts, err = queue.NewRedisStreamReceiptQueue(ctx, rdb, "", nil)
		if err != nil {
			log.Fatal("Failed to initialize receipt queue", zap.Error(err))
		}
	case "memory":
		receipts = queue.NewReceiptQueue(100)
	}
	// worker 在 HTTP server 停止後才結束
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	var workerDone <-chan struct{}
	if receipts != nil {
		receiptWorker := worker.NewReceiptWorker(receipts, confirmation.NewLogDispatcher())
		workerDone, err = receiptWorker.Start(workerCtx)
		if err != nil {
			log.Fatal("Failed to start receipt worker", zap.Error(err))
		}
	}

	reservationService := service.NewReservationService(
		store,
		inv,
		payment.NewSimulatedGateway(cfg.Workflow.PaymentLatency, payment.NewRand(seed)),
		notify.NewLogNotifier(),
		seatmap.NewRand(seed),
		receipts,
		cfg.Workflow,
	)

	searchLimiter := ratelimit.NewClientLimiter(ratelimit.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
	})

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	handler.NewReservationHandler(reservationService, searchLimiter.Middleware()).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting bus reservation server",
			zap.String("port", cfg.Server.Port),
			zap.String("inventory", cfg.Workflow.InventorySource),
			zap.String("sessions", cfg.Workflow.SessionStore),
			zap.String("receipts", cfg.Workflow.ReceiptQueue),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	stopWorker()
	if workerDone != nil {
		select {
		case <-workerDone:
		case <-time.After(30 * time.Second):
			log.Warn("Receipt worker did not stop in time")
		}
	}
}
