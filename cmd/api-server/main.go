package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/clinic-booking/internal/api"
	"github.com/careloop/clinic-booking/internal/appointment"
	"github.com/careloop/clinic-booking/internal/config"
	"github.com/careloop/clinic-booking/internal/db"
	"github.com/careloop/clinic-booking/internal/payment"
	redisclient "github.com/careloop/clinic-booking/internal/redis"
	"github.com/careloop/clinic-booking/internal/schedule"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env).With().Str("service", "api-server").Logger()
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres and apply schema
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: int32(cfg.PGMaxConns),
		MinConns: int32(cfg.PGMinConns),
	})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		log.Fatal().Err(err).Msg("schema migration error")
	}
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	runner := db.NewTxRunner(pgPool, db.TxOptions{MaxWait: cfg.TxMaxWait, Timeout: cfg.TxTimeout}, log)
	locker := redisclient.NewSlotLocker(rdb, cfg.LockTTL)

	schedRepo := schedule.NewPgRepository(pgPool)
	generator := schedule.NewGenerator(schedRepo, log)
	availability := schedule.NewAvailability(schedRepo)

	apptRepo := appointment.NewPgRepository(pgPool)
	booking := appointment.NewService(apptRepo, schedRepo, locker, runner, cfg.AppointmentTTL, cfg.MaxCancelNoteLen, log)

	payRepo := payment.NewPgRepository(pgPool)
	verifier := payment.NewHTTPVerifier(cfg.VerifyBaseURL, cfg.VerifyTimeout)
	processor := payment.NewProcessor(payRepo, verifier, booking, runner, log)

	router := api.NewRouter(api.RouterConfig{
		Booking:      booking,
		Availability: availability,
		Schedules:    schedRepo,
		Generator:    generator,
		Payments:     processor,
		WebhookKey:   cfg.WebhookKey,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
}

func newLogger(env string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}
