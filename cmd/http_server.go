package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/events"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport/rest"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/metrics"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *database
	Router *chi.Mux
	Logger *slog.Logger

	// Exactly one of Bus and Redis is set, depending on redis.enabled.
	Bus   *events.EventBus
	Redis *redis.Client
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// close waits for in-process mail deliveries, then releases connections.
func (d *Dependencies) close(ctx context.Context) {
	if d.Bus != nil {
		if err := d.Bus.Wait(ctx); err != nil {
			d.Logger.Warn("pending notifications abandoned", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	initLogger(config)
	lg := logger.LoggerWrapper()

	db, err := openDatabase(config.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	files, err := newStorage(config.Storage)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := newMetrics(config.Observability.Metrics)
	deps := &Dependencies{Config: config, DB: db, Logger: lg}

	app := appDeps{
		Config:  config,
		DB:      db,
		Files:   files,
		Metrics: m,
		Checks:  map[string]rest.Check{},
		Logger:  lg,
	}

	if config.Redis.Enabled {
		rdb, err := notification.OpenRedis(config.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = rdb
		app.Notifier = notification.NewRedisQueue(rdb, config.Redis.QueueKey, lg)
		app.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		lg.Info("password reset mail queued to redis; run `worker mail` to deliver", "queue", config.Redis.QueueKey)
	} else {
		bus, err := newMailBus(config.Mail, m, lg)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		deps.Bus = bus
		app.Notifier = notification.NewBusNotifier(bus)
	}

	router, err := newRouter(app)
	if err != nil {
		deps.close(context.Background())
		return nil, err
	}
	deps.Router = router

	return deps, nil
}

// newMailBus delivers notifications in-process through the event bus.
func newMailBus(cfg internal.MailConfig, m *metrics.Metrics, lg *slog.Logger) (*events.EventBus, error) {
	mailer, err := notification.NewMailer(cfg, lg)
	if err != nil {
		return nil, err
	}
	bus := events.NewEventBus(lg)
	notification.SubscribeDeliverer(bus, notification.NewDeliverer(mailer, cfg.Transport, cfg.SendTimeout, m, lg))
	return bus, nil
}
