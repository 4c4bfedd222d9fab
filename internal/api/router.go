package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medilink/appointment-booking/internal/auth"
	"github.com/medilink/appointment-booking/internal/booking"
	"github.com/medilink/appointment-booking/internal/notify"
)

type RouterConfig struct {
	Service         *booking.Service
	Hub             *notify.Hub
	Verifier        *auth.Verifier
	PgPool          *pgxpool.Pool
	Redis           *redis.Client
	Logger          zerolog.Logger
	Env             string
	Version         string
	WSAllowedOrigin string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Live slot and status notifications
	r.Handle("/ws", notify.NewHandler(cfg.Hub, cfg.WSAllowedOrigin))

	h := &handlers{svc: cfg.Service, log: cfg.Logger}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Verifier))

		r.Get("/doctors/{doctorID}/availability", h.availability)
		r.Get("/doctors/me/availability", h.getMyAvailability)
		r.Put("/doctors/me/availability", h.setMyAvailability)

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Put("/appointments/{id}/reschedule", h.reschedule)
		r.Put("/appointments/{id}/cancel", h.cancel)
		r.Put("/appointments/{id}/complete", h.complete)
		r.Put("/appointments/{id}/hide", h.hide)
	})

	return r
}
