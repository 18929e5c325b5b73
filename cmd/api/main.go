package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autodialer/internal/audit"
	"autodialer/internal/calls"
	"autodialer/internal/command"
	"autodialer/internal/config"
	"autodialer/internal/dispatch"
	"autodialer/internal/httpapi"
	"autodialer/internal/numbers"
	"autodialer/internal/reconcile"
	"autodialer/internal/reporting"
	"autodialer/internal/telephony"
	"autodialer/migrations"
	"autodialer/pkg/logger"
	"autodialer/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

type stores struct {
	numbers numbers.Repository
	calls   calls.Repository
	audit   audit.Repository
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	st, db, err := openStores(rootCtx, cfg, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	var limiter dispatch.Limiter = dispatch.NewRateLimiter(cfg.Dial.RatePerSecond, cfg.Dial.Burst)
	if cfg.RedisEnabled() && cfg.Dial.RatePerSecond > 0 {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = redisLimiter(rdb, cfg)
		log.Info("dial pacing shared through redis", "key", cfg.Dial.LimiterKey)
	}

	gateway := telephony.NewTwilioGateway(telephony.TwilioOptions{
		AccountSID:        cfg.Twilio.AccountSID,
		AuthToken:         cfg.Twilio.AuthToken,
		FromNumber:        cfg.Twilio.PhoneNumber,
		StatusCallbackURL: cfg.Twilio.StatusCallbackURL,
		Voice:             cfg.Twilio.Voice,
		Record:            true,
		BaseURL:           cfg.Twilio.APIBaseURL,
	})
	if cfg.Twilio.AccountSID == "" {
		log.Warn("twilio credentials missing; call placement will fail")
	}

	auditSvc := audit.NewService(st.audit, log)
	reconciler := reconcile.NewReconciler(st.calls, log)
	orchestrator := dispatch.NewOrchestrator(st.calls, gateway, limiter, log, dispatch.Options{
		FromNumber:    cfg.Twilio.PhoneNumber,
		DefaultScript: cfg.Dial.DefaultScript,
	})
	stats := reporting.NewService(st.numbers, st.calls)
	executor := command.NewExecutor(command.NewInterpreter(st.numbers), orchestrator, stats, st.numbers, auditSvc)

	api := httpapi.Handlers{
		Numbers:    st.numbers,
		Importer:   numbers.NewImporter(st.numbers, log),
		Calls:      st.calls,
		Dispatcher: orchestrator,
		Fetcher:    gateway,
		Reconciler: reconciler,
		Commands:   executor,
		Stats:      stats,
		Audit:      auditSvc,
	}
	webhook := telephony.StatusCallbackHandler{
		Reconciler:        reconciler,
		AuthToken:         cfg.Twilio.AuthToken,
		ValidateSignature: cfg.Twilio.ValidateSignature,
		CallbackURL:       cfg.Twilio.StatusCallbackURL,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, api, webhook)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           withCORS(r, cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, *sql.DB, error) {
	if cfg.Store.Driver == "memory" {
		log.Warn("using in-memory stores; data is lost on restart")
		return stores{
			numbers: numbers.NewMemoryRepo(),
			calls:   calls.NewMemoryRepo(),
			audit:   audit.NewMemoryRepo(),
		}, nil, nil
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return stores{}, nil, err
	}
	if cfg.Store.AutoMigrate {
		applied, err := utils.ApplyMigrations(ctx, db, migrations.FS)
		if err != nil {
			_ = db.Close()
			return stores{}, nil, err
		}
		log.Info("migrations applied", "files", applied)
	}
	return stores{
		numbers: numbers.NewPostgresRepo(db),
		calls:   calls.NewPostgresRepo(db),
		audit:   audit.NewPostgresRepo(db),
	}, db, nil
}

// redisLimiter turns rate and burst into a sliding window shared by every
// replica: at most burst placements per burst/rate seconds, so fractional rates
// keep their exact average.
func redisLimiter(rdb *redis.Client, cfg config.Config) dispatch.Limiter {
	limit, window := redisWindow(cfg.Dial.RatePerSecond, cfg.Dial.Burst)
	return dispatch.NewRedisLimiter(rdb, cfg.Dial.LimiterKey, limit, window)
}

func redisWindow(perSecond float64, burst int) (int, time.Duration) {
	if burst < 1 {
		burst = 1
	}
	return burst, time.Duration(float64(burst) * float64(time.Second) / perSecond)
}

func withCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
	}).Handler(h)
}
