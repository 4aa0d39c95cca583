package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/auth"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/config"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/httpx"
	kafkax "github.com/ariefcatur/chulbuli-jewels.git/internal/kafka"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/logger"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/postgres"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/reviews"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/telemetry"
	"github.com/joho/godotenv"
)

const (
	minSecretLen    = 32
	adminRatePerMin = 60
	version         = "1.0.0"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.JWTSecret) < minSecretLen {
		log.Fatal().Int("min_length", minSecretLen).Msg("JWT_SECRET must be set and at least 32 characters")
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, version, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing init")
	}

	// DB
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one writer for every topic
	events := &httpx.Events{Service: cfg.ServiceName, Log: log}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(ctx)
		events.Pub = prod
	} else {
		log.Warn().Msg("KAFKA_BROKERS empty, events disabled")
	}

	// Repos & handlers
	productRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db, LockTimeout: cfg.LockTimeout}
	processor := &orders.Processor{Store: orderRepo, Timeout: cfg.OrderTxTimeout, Log: log}
	reviewRepo := &reviews.Repo{DB: db}
	verifier := auth.NewVerifier(cfg.JWTSecret)

	publicLimit := &redisx.FixedWindow{Redis: rdb, Scope: "api", Limit: cfg.RateLimitPerMinute, Window: time.Minute}
	adminLimit := &redisx.FixedWindow{Redis: rdb, Scope: "admin", Limit: adminRatePerMin, Window: time.Minute}

	router := httpx.NewRouter(log, map[string]httpx.Check{
		"postgres": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	(&httpx.ProductsHandler{Repo: productRepo, Redis: rdb, Log: log, Limit: publicLimit}).Register(router)
	(&httpx.OrdersHandler{
		Placer: processor,
		Repo:   orderRepo,
		Redis:  rdb,
		Auth:   verifier,
		Events: events,
		Log:    log,
		Limit:  publicLimit,
	}).Register(router)
	(&httpx.ReviewsHandler{Store: reviewRepo, Auth: verifier, Events: events, Log: log, Limit: publicLimit}).Register(router)
	(&httpx.AdminHandler{
		Products: productRepo,
		Orders:   orderRepo,
		Reviews:  reviewRepo,
		Redis:    rdb,
		Auth:     verifier,
		Events:   events,
		Log:      log,
		Limit:    adminLimit,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancel() // stop producer loop, which flushes what is buffered
	if prod != nil {
		prod.WaitClosed()
	}
	if err := shutdownTracing(ctx2); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
