package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"genqueue/internal/http/handlers"
	"genqueue/internal/infra"
	"genqueue/internal/middleware"
)

// Options carries the router's cross-cutting dependencies.
type Options struct {
	JWTSecret       string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	AllowedOrigins  []string
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup))
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/stats", app.StatsSummary)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Post("/jobs", app.JobsEnqueue)
		r.Get("/jobs/{job_id}", app.JobStatus)
		r.Post("/jobs/{job_id}/cancel", app.JobCancel)
		r.Get("/credits/balance", app.CreditsBalance)
	})

	// Internal trigger; authenticated by the service credential inside the
	// handler, not by user middleware.
	r.Post("/internal/scheduler/run", app.SchedulerRun)

	return r
}
