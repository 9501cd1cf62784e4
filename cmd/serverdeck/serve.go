package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"serverdeck/internal/api"
	"serverdeck/internal/assets"
	"serverdeck/internal/broadcast"
	"serverdeck/internal/config"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
	"serverdeck/internal/notifier"
	"serverdeck/internal/supervisor"
	"serverdeck/internal/version"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	watch          bool
	startServer    bool
	extractOnStart bool
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor, change notifier and asset cache behind the HTTP/websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "watch the server data directories on startup")
	cmd.Flags().BoolVar(&opts.startServer, "start-server", false, "launch the game server on startup")
	cmd.Flags().BoolVar(&opts.extractOnStart, "extract-assets", true, "populate the asset cache on startup when it is empty")
	return cmd
}

type services struct {
	hub        *broadcast.Hub
	store      *config.Store
	supervisor *supervisor.Supervisor
	notifier   *notifier.Notifier
	assets     *assets.Manager
	dispatcher *api.Dispatcher
}

func buildServices(cfg config.Config, logger *logging.Logger, registry *metrics.Registry) services {
	hub := broadcast.NewHub(logger.Component("broadcast"), registry)
	store := config.NewStore(cfg)
	sup := supervisor.New(supervisor.Options{
		ProjectRoot:   cfg.ProjectRoot,
		ReadyPatterns: cfg.ReadyPatterns,
		KillTimeout:   cfg.KillTimeout,
		Logger:        logger,
		Broadcaster:   hub,
		Metrics:       registry,
	})
	watch := notifier.New(notifier.Options{
		Debounce:    cfg.Debounce,
		Logger:      logger,
		Broadcaster: hub,
		Metrics:     registry,
	})
	cache := assets.NewManager(assets.Options{
		DataDir:     cfg.DataDir,
		Logger:      logger,
		Broadcaster: hub,
		Metrics:     registry,
	})
	dispatcher := api.NewDispatcher(api.Services{
		Server:      sup,
		Assets:      cache,
		Watcher:     watch,
		Settings:    store,
		Broadcaster: hub,
	}, logger)
	return services{
		hub:        hub,
		store:      store,
		supervisor: sup,
		notifier:   watch,
		assets:     cache,
		dispatcher: dispatcher,
	}
}

func runServe(parent context.Context, cfg config.Config, logger *logging.Logger, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	registry := metrics.Default
	svc := buildServices(cfg, logger, registry)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.RouteConfig{
		Hub:            svc.hub,
		Dispatcher:     svc.dispatcher,
		Metrics:        registry,
		Logger:         logger,
		AuthToken:      cfg.Token,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(logger, cancel, signalCh)
	defer stopSignals()

	coordinator := newShutdownCoordinator(logger)
	coordinator.Add("http", httpServer.Shutdown)
	coordinator.Add("notifier", func(context.Context) error {
		return svc.notifier.Close()
	})
	coordinator.Add("supervisor", svc.supervisor.Shutdown)

	logger.Info("serverdeck listening", map[string]string{
		"addr":       listener.Addr().String(),
		"version":    version.Version,
		"server_dir": cfg.ServerDir,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return coordinator.Run(shutdownCtx)
	})

	startBackground(groupCtx, svc, logger, opts)
	return group.Wait()
}

// startBackground applies the startup options. Failures are logged; the API
// stays up so a surface can fix the configuration.
func startBackground(ctx context.Context, svc services, logger *logging.Logger, opts serveOptions) {
	serverDir := svc.store.ServerDir()
	if opts.watch {
		if !config.IsServerDirValid(serverDir) {
			logger.Warn("server directory not recognised; watcher not started", map[string]string{"server_dir": serverDir})
		} else if err := svc.notifier.Start(serverDir); err != nil {
			logger.Warn("watcher start failed", map[string]string{"server_dir": serverDir, "error": err.Error()})
		}
	}
	if opts.extractOnStart && !svc.assets.AreCached() {
		go svc.assets.Extract(ctx, serverDir)
	}
	if opts.startServer {
		if err := svc.supervisor.Start(); err != nil {
			logger.Warn("server start failed", map[string]string{"error": err.Error()})
		}
	}
}
