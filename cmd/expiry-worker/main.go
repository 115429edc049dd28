package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/bookloop/bookloop-api/internal/config"
	"github.com/bookloop/bookloop-api/internal/domain/cancellation"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/pkg/database"
	"github.com/bookloop/bookloop-api/internal/pkg/lock"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
)

// wakeChannel lets operators force an immediate sweep:
// PUBLISH cancellations:sweep now
const wakeChannel = "cancellations:sweep"

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, LogFile: cfg.LogFile}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().Msg("Starting expiry-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	// No clients connect here; with Redis the API instances deliver what the
	// hub publishes.
	hub := chat.NewHub(rdb)
	go hub.Run()
	defer hub.Shutdown()
	transport := chat.NewTransport(chat.NewRepository(db), hub)
	notifications := notification.NewService(notification.NewRepository(db), notification.NewWSPublisher(hub))
	svc := cancellation.NewService(cancellation.NewPostgresStore(db), transport, notifications, cfg.CancellationWindow)

	worker := cancellation.NewWorker(svc, lock.New(rdb), cfg.ExpirySweepInterval, cfg.ExpirySweepBatch)

	if *once {
		if !worker.RunOnce() {
			log.Info().Msg("Another instance holds the sweep lock")
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := make(chan struct{}, 1)
	if rdb != nil {
		go subscribeWakeups(ctx, rdb, wake)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	worker.Start()
	defer worker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry-worker stopped")
			return
		case <-wake:
			worker.RunOnce()
		}
	}
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, wakeChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
