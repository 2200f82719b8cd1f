package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careloop/clinic-booking/internal/appointment"
	"github.com/careloop/clinic-booking/internal/payment"
	"github.com/careloop/clinic-booking/internal/schedule"
)

type RouterConfig struct {
	Booking      *appointment.Service
	Availability *schedule.Availability
	Schedules    schedule.Repository
	Generator    *schedule.Generator
	Payments     *payment.Processor
	WebhookKey   string
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
	Log          zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Booking
	r.Post("/appointments", createAppointmentHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
	r.Patch("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Booking))

	// Availability and schedule management
	r.Get("/doctors/{id}/slots", listAvailabilityHandler(cfg.Availability))
	r.Post("/schedules", createTemplateHandler(cfg.Schedules))
	r.Post("/schedules/{id}/generate", generateSlotsHandler(cfg.Schedules, cfg.Generator))

	// Payment webhook, guarded by the pre-shared key
	r.Group(func(g chi.Router) {
		g.Use(WebhookAuthMiddleware(cfg.WebhookKey))
		g.Post("/webhooks/payment", paymentWebhookHandler(cfg.Payments))
	})

	return r
}
