package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/partquote/internal/batch"
	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/health"
	"github.com/noah-isme/partquote/internal/obs"
	"github.com/noah-isme/partquote/internal/quote"
	"github.com/noah-isme/partquote/internal/ratelimit"
	"github.com/noah-isme/partquote/internal/security"
)

// RouterOptions toggles the optional parts of the HTTP surface.
type RouterOptions struct {
	Metrics      *obs.HTTPMetrics
	Tracing      bool
	RedisTimeout time.Duration
}

// NewRouter assembles the API router.
func NewRouter(deps *Dependencies, opts RouterOptions) http.Handler {
	maxBody := deps.Config.HTTPMaxBodyBytes

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.BodyLimit{Max: maxBody}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: deps.Config.AppEnv == "production"}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: deps.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(deps.Config.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", common.IdempotencyHeader},
		ExposedHeaders: []string{"Location", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Checker: deps, RedisTimeout: opts.RedisTimeout}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: deps.Quotes, MaxBodyBytes: maxBody})
	batchHandler := batch.NewHandler(batch.HandlerConfig{Service: deps.Batches, MaxBodyBytes: maxBody})
	idem := common.Idem{R: deps.Redis, TTL: deps.Config.BatchResultTTL}
	limit := ratelimit.Handler{
		Limiter: deps.Limiter,
		Key:     ratelimit.ClientKey,
		OnError: func(err error) {
			deps.Logger.Warn().Err(err).Msg("rate_limit_store_failed")
		},
		OnReject: func(*http.Request) { obs.RecordRateLimited() },
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limit.Middleware)
		v.Get("/pricing/tiers", quoteHandler.Tiers)
		v.Get("/pricing/limits", quoteHandler.Limits)
		v.Post("/quotes", quoteHandler.Create)
		v.With(idem.Middleware).Post("/quotes/batch", batchHandler.Submit)
		v.Get("/quotes/batch/{id}", batchHandler.Get)
	})

	if !opts.Tracing {
		return r
	}
	return otelhttp.NewHandler(r, "partquote-api",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
