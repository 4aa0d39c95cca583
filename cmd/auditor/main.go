package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/audit"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/config"
	kafkax "github.com/ariefcatur/chulbuli-jewels.git/internal/kafka"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/logger"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/postgres"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-auditor"
	log := logger.New(service, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required")
	}

	// DB
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, service)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Repo:        &audit.Repo{DB: db},
		Redis:       rdb,
		ServiceName: "audit",
		Log:         log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, audit.Topics, cfg.AuditWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().
			Str("group", cfg.AuditGroup).
			Str("topics", strings.Join(audit.Topics, ",")).
			Int("workers", cfg.AuditWorkers).
			Msg("audit consumer started")
		if err := cons.Start(ctx, svc.HandleMessage); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
