package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start worker pools for background jobs such as outgoing mail.`,
}

// Mail worker command
var mailWorkerCmd = &cobra.Command{
	Use:   "mail",
	Short: "Start the mail worker pool",
	Long:  `Pop queued mail jobs from Redis and deliver them through the configured mail transport`,
	Run: func(cmd *cobra.Command, args []string) {
		startMailWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	metricsAddr  string
)

func startMailWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogger(config)
	logger := logger.LoggerWrapper()

	if !config.Redis.Enabled {
		logger.Error("mail worker needs redis.enabled; without it mail is delivered in-process by the server")
		os.Exit(1)
	}

	rdb, err := notification.OpenRedis(config.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	mailer, err := notification.NewMailer(config.Mail, logger)
	if err != nil {
		logger.Error("failed to build mailer", "error", err)
		os.Exit(1)
	}

	m := newMetrics(config.Observability.Metrics)
	var metricsServer *http.Server
	if m != nil && metricsAddr != "" {
		metricsServer = serveMetrics(metricsAddr, config.Observability.Metrics.Path, m)
	}

	// Use command line flags if provided, otherwise use config values
	poolConfig := notification.PoolConfig{
		MaxWorkers:   getIntFlag(maxWorkers, config.Mail.Workers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Mail.QueueSize),
	}

	logger.Info("starting mail worker",
		"max_workers", poolConfig.MaxWorkers,
		"job_queue_size", poolConfig.JobQueueSize,
		"transport", config.Mail.Transport,
		"queue", config.Redis.QueueKey)

	deliverer := notification.NewDeliverer(mailer, config.Mail.Transport, config.Mail.SendTimeout, m, logger)
	pool := notification.NewPool(poolConfig, deliverer.Process, logger)
	consumer := notification.NewConsumer(notification.NewRedisQueue(rdb, config.Redis.QueueKey, logger), pool, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mail worker is running. Press Ctrl+C to stop.")
	if err := consumer.Run(ctx); err != nil {
		logger.Error("mail consumer stopped", "error", err)
	}

	shutdownDone := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info("mail worker shutdown completed")
	case <-time.After(30 * time.Second):
		logger.Warn("mail worker shutdown timed out")
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr, path string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LoggerWrapper().Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// Helper functions to get flag values or fallback to config
func getIntFlag(flagValue, configValue int) int {
	if flagValue != 0 {
		return flagValue
	}
	return configValue
}

func init() {
	mailWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of mail workers")
	mailWorkerCmd.Flags().IntVar(&jobQueueSize, "queue-size", 0, "Local job queue size")
	mailWorkerCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve worker metrics on this address, e.g. :9091")

	workerCmd.AddCommand(mailWorkerCmd)
}
