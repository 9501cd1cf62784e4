package api

import (
	"net/http"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
)

type RouteConfig struct {
	Hub            *broadcast.Hub
	Dispatcher     *Dispatcher
	Metrics        *metrics.Registry
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

func RegisterRoutes(mux *http.ServeMux, cfg RouteConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Component("api")
	rest := &RestHandler{
		Dispatcher: cfg.Dispatcher,
		Hub:        cfg.Hub,
		Metrics:    cfg.Metrics,
		DaemonLogs: logger.Buffer(),
		Logger:     logger,
	}
	routes := routeSet{mux: mux, token: cfg.AuthToken, logger: logger}

	routes.raw("/ws", &SurfaceHandler{
		Hub:            cfg.Hub,
		Dispatcher:     cfg.Dispatcher,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	routes.rest("/api/status", http.MethodGet, rest.handleStatus)
	routes.rest("/api/server/start", http.MethodPost, rest.command(broadcast.CommandServerStart))
	routes.rest("/api/server/stop", http.MethodPost, rest.command(broadcast.CommandServerStop))
	routes.rest("/api/server/logs", http.MethodGet, rest.handleServerLogs)
	routes.rest("/api/assets/extract", http.MethodPost, rest.command(broadcast.CommandAssetsExtract))
	routes.rest("/api/assets/status", http.MethodGet, rest.command(broadcast.CommandAssetsStatus))
	routes.rest("/api/mods", http.MethodGet, rest.handleMods)
	routes.rest("/api/mods/toggle", http.MethodPost, rest.command(broadcast.CommandModsToggle))
	routes.rest("/api/logs", http.MethodGet, rest.handleDaemonLogs)
	routes.rest("/metrics", http.MethodGet, rest.handleMetrics)
}
