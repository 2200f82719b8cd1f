package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/clinic-booking/internal/appointment"
	"github.com/careloop/clinic-booking/internal/config"
	"github.com/careloop/clinic-booking/internal/db"
	redisclient "github.com/careloop/clinic-booking/internal/redis"
	"github.com/careloop/clinic-booking/internal/schedule"
)

// The scheduler worker does two jobs per tick: keep slots materialized for
// every active template over the configured horizon, and cancel pending
// appointments whose payment window has elapsed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "scheduler-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	apptRepo := appointment.NewPgRepository(pgPool)
	booking := appointment.NewService(apptRepo, schedRepo, locker, runner, cfg.AppointmentTTL, cfg.MaxCancelNoteLen, log)

	w := &worker{
		schedules: schedRepo,
		generator: generator,
		booking:   booking,
		horizon:   cfg.GenerateHorizon,
		log:       log,
	}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping scheduler worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

type worker struct {
	schedules schedule.Repository
	generator *schedule.Generator
	booking   *appointment.Service
	horizon   int
	log       zerolog.Logger
}

func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()

	w.materialize(runCtx)

	if err := w.booking.ExpireStalePending(runCtx); err != nil {
		w.log.Error().Err(err).Msg("expiry run error")
	}

	w.log.Info().Dur("took", time.Since(start)).Msg("worker run complete")
}

func (w *worker) materialize(ctx context.Context) {
	templates, err := w.schedules.ListActiveTemplates(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("list active templates")
		return
	}

	from := time.Now()
	to := from.AddDate(0, 0, w.horizon)

	for i := range templates {
		tpl := &templates[i]
		inserted, err := w.generator.Generate(ctx, tpl, from, to)
		if err != nil {
			w.log.Error().Err(err).Str("template_id", tpl.ID.String()).Msg("slot generation error")
			continue
		}
		if inserted > 0 {
			w.log.Info().Str("template_id", tpl.ID.String()).Int("inserted", inserted).Msg("materialized slots")
		}
	}
}
