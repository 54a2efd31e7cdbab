// Package main runs the background job worker: go-live emails and recording archive.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/spotlight/config"
	"github.com/aura-webinar/spotlight/internal/attendance"
	"github.com/aura-webinar/spotlight/internal/auth"
	"github.com/aura-webinar/spotlight/internal/emaillogs"
	"github.com/aura-webinar/spotlight/internal/notify"
	"github.com/aura-webinar/spotlight/internal/recordings"
	"github.com/aura-webinar/spotlight/internal/worker"
	"github.com/aura-webinar/spotlight/pkg/database"
	"github.com/aura-webinar/spotlight/pkg/metrics"
	"github.com/aura-webinar/spotlight/pkg/queue"
	"github.com/aura-webinar/spotlight/pkg/redis"
	"github.com/aura-webinar/spotlight/pkg/storage"
	"github.com/aura-webinar/spotlight/pkg/telemetry"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName+"-worker")
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	jobQueue := queue.NewQueue(rdb.Client, logger)
	runner := worker.NewRunner(jobQueue, []string{queue.QueueNotifications, queue.QueueRecordings}, m, logger)

	mailer, err := notify.NewResendMailer(cfg.Email.APIKey, cfg.Email.From(), cfg.Email.BaseURL, httpClient, logger)
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}
	runner.Handle(queue.JobTypeWebinarStarted, worker.NewNotifier(
		attendance.NewRepository(pool),
		emaillogs.NewRepository(pool),
		auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours),
		mailer,
		cfg.App.PublicURL,
		logger,
	))

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Warn("s3 disabled, recording archive jobs will dead-letter", zap.Error(err))
	} else {
		// downloads can be large; the client must not time out mid-stream
		runner.Handle(queue.JobTypeRecordingUpload, worker.NewArchiver(recordings.NewRepository(pool), s3Client, &http.Client{}, logger))
	}

	metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not drain before shutdown")
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
