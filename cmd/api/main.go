package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/api"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/api/handler"
	apimiddleware "github.com/VishalSolanki135/Capsule-Cabs/internal/api/middleware"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/application"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/config"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/infrastructure/postgres"
	redisinfra "github.com/VishalSolanki135/Capsule-Cabs/internal/infrastructure/redis"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/logger"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/metrics"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/queue"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/worker"
)

func main() {
	// .envは存在すれば読み込む（本番は環境変数のみ）
	_ = godotenv.Load()

	cfg := config.Load()

	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer logger.Sync()

	m := metrics.Init()

	// PostgreSQL
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisinfra.Ping(pingCtx, redisClient); err != nil {
		pingCancel()
		logger.Fatal("Redis接続に失敗", zap.Error(err))
	}
	pingCancel()

	// メッセージキュー（無効時はnilで発行スキップ）
	var publisher application.EventPublisher
	if cfg.Queue.Enabled {
		p, err := queue.NewPublisher(cfg.Queue.URL)
		if err != nil {
			logger.Fatal("メッセージキュー接続に失敗", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	}

	// リポジトリ
	inventoryRepo := postgres.NewInventoryRepository(db)
	routeRepo := postgres.NewRouteRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)

	// サービス
	lockManager := application.NewRedisLockManager(redisinfra.NewRouteLockManager(redisClient))
	holdsIndex := redisinfra.NewHoldsIndex(redisClient)
	lockingService := application.NewSeatLockingService(
		inventoryRepo, routeRepo, lockManager, holdsIndex, m,
		application.SeatLockingConfig{
			LeaseTTL:           cfg.Locking.LeaseTTL,
			DefaultHoldMinutes: cfg.Locking.DefaultHoldMinutes,
			MaxHoldMinutes:     cfg.Locking.MaxHoldMinutes,
		},
	)
	bookingService := application.NewBookingService(bookingRepo, routeRepo, lockingService, publisher, m)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	registerRoutes(e, cfg, lockingService, bookingService, routeRepo)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	reaper := worker.NewExpiredLockReaper(lockingService, cfg.Reaper.Interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("APIサーバー起動", zap.String("port", cfg.Server.Port))
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		reaper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("シャットダウン開始")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("サーバー終了エラー", zap.Error(err))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func registerRoutes(
	e *echo.Echo,
	cfg *config.Config,
	lockingService *application.SeatLockingService,
	bookingService *application.BookingService,
	routeRepo handler.RouteServiceInterface,
) {
	healthHandler := handler.NewHealthHandler()
	inventoryHandler := handler.NewInventoryHandler(lockingService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	routeHandler := handler.NewRouteHandler(routeRepo)

	v1 := e.Group("/api/v1")

	v1.GET("/health", healthHandler.Check)

	v1.GET("/routes", routeHandler.List)
	v1.GET("/routes/:id", routeHandler.GetByID)

	v1.GET("/routes/:route_id/inventory/:date", inventoryHandler.Get)
	v1.POST("/routes/:route_id/inventory/:date/lock", inventoryHandler.Lock)
	v1.POST("/routes/:route_id/inventory/:date/release", inventoryHandler.Release)
	v1.POST("/routes/:route_id/inventory/:date/confirm", bookingHandler.Confirm)
	v1.POST("/seat-locks/extend", inventoryHandler.Extend)

	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings", bookingHandler.GetUserBookings)
	v1.GET("/bookings/:id", bookingHandler.GetByID)
	v1.POST("/bookings/:id/cancel", bookingHandler.Cancel)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsAuth(cfg.Server.MetricsToken))
}
