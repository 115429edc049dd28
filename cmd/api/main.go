package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/bookloop/bookloop-api/internal/config"
	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/cancellation"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/credit"
	"github.com/bookloop/bookloop-api/internal/domain/moderation"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/middleware"
	"github.com/bookloop/bookloop-api/internal/pkg/database"
	"github.com/bookloop/bookloop-api/internal/pkg/jwt"
	"github.com/bookloop/bookloop-api/internal/pkg/lock"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
	pkgresponse "github.com/bookloop/bookloop-api/internal/pkg/response"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, LogFile: cfg.LogFile}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting BookLoop API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- WebSocket hub ----------
	chatHub := chat.NewHub(redisClient)
	go chatHub.Run()
	defer chatHub.Shutdown()

	// ---------- Repositories ----------
	chatRepo := chat.NewRepository(db)
	notificationRepo := notification.NewRepository(db)
	auditRepo := audit.NewRepository(db)
	ledger := credit.NewLedger(db)

	// ---------- Services ----------
	transport := chat.NewTransport(chatRepo, chatHub)
	notificationService := notification.NewService(notificationRepo, notification.NewWSPublisher(chatHub))
	cancellationService := cancellation.NewService(
		cancellation.NewPostgresStore(db),
		transport,
		notificationService,
		cfg.CancellationWindow,
	)
	moderationService := moderation.NewService(
		moderation.NewPostgresStore(db),
		transport,
		notificationService,
	)

	// ---------- Background jobs ----------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.InProcessSweep() {
		worker := cancellation.NewWorker(cancellationService, lock.New(redisClient), cfg.ExpirySweepInterval, cfg.ExpirySweepBatch)
		worker.Start()
		defer worker.Stop()
	}
	go notification.NewCleanupJob(notificationRepo, cfg.NotificationRetention).Start(ctx, time.Hour)

	// ---------- Router ----------
	r := newRouter(routerDeps{
		allowedOrigins: cfg.AllowedOrigins,
		auth:           middleware.Auth(jwtService),
		admin:          middleware.RequireAdmin(),
		sweepGuard:     middleware.RequireSchedulerOrAdmin(jwtService, cfg.SchedulerToken),
		cancellations:  cancellation.NewHandler(cancellationService, cfg.ExpirySweepBatch),
		reports:        moderation.NewHandler(moderationService),
		chat:           chat.NewHandler(transport, chatRepo, chatHub, redisClient, cfg.AllowedOrigins),
		notifications:  notification.NewHandler(notificationService),
		credits:        credit.NewHandler(ledger),
		audit:          audit.NewHandler(auditRepo),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type mw = func(http.Handler) http.Handler

type routerDeps struct {
	allowedOrigins []string
	auth           mw
	admin          mw
	sweepGuard     mw

	cancellations *cancellation.Handler
	reports       *moderation.Handler
	chat          *chat.Handler
	notifications *notification.Handler
	credits       *credit.Handler
	audit         *audit.Handler
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(d.allowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.NotFound(w, "route not found")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/cancellations", d.cancellations.Routes(d.auth, d.sweepGuard))
		r.Mount("/reports", d.reports.Routes(d.auth))
		r.Mount("/chat", d.chat.Routes(d.auth))
		r.Mount("/notifications", d.notifications.Routes(d.auth))
		r.Mount("/credits", d.credits.Routes(d.auth))

		r.Route("/admin", func(r chi.Router) {
			r.Mount("/reports", d.reports.AdminRoutes(d.auth, d.admin))
			r.Mount("/audit", d.audit.AdminRoutes(d.auth, d.admin))
		})
	})

	return r
}
