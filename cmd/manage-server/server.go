package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tendant/simple-manage/pkg/managecms/config"
	"github.com/tendant/simple-manage/pkg/managecms/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter assembles the management API with its middleware and the
// /metrics endpoint. A nil registerer and gatherer select the global
// Prometheus registry.
func NewRouter(svc managecms.Service, cfg *config.ServerConfig, logger *slog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, error) {
	instrumented, err := metrics.NewService(svc, reg)
	if err != nil {
		return nil, err
	}
	httpMetrics, err := metrics.NewHTTP(reg, gatherer)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(instrumented, api.NewAuth(cfg.JWTSecret),
		api.WithLogger(logger),
		api.WithMaxUploadSize(cfg.MaxUploadSize),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(httpMetrics.Middleware)

	r.Handle("/metrics", httpMetrics.Handler())
	r.Mount("/", handler.Routes())

	return otelhttp.NewHandler(r, "manage-server"), nil
}
