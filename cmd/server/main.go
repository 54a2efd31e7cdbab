// Package main runs the Spotlight HTTP API with the chat websocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/spotlight/config"
	"github.com/aura-webinar/spotlight/internal/access"
	"github.com/aura-webinar/spotlight/internal/agents"
	"github.com/aura-webinar/spotlight/internal/analytics"
	"github.com/aura-webinar/spotlight/internal/attendance"
	"github.com/aura-webinar/spotlight/internal/auth"
	"github.com/aura-webinar/spotlight/internal/emaillogs"
	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/internal/payments"
	"github.com/aura-webinar/spotlight/internal/realtime"
	"github.com/aura-webinar/spotlight/internal/recordings"
	"github.com/aura-webinar/spotlight/internal/sessionlog"
	"github.com/aura-webinar/spotlight/internal/streaming"
	"github.com/aura-webinar/spotlight/internal/streams"
	"github.com/aura-webinar/spotlight/internal/webinars"
	"github.com/aura-webinar/spotlight/pkg/database"
	"github.com/aura-webinar/spotlight/pkg/metrics"
	"github.com/aura-webinar/spotlight/pkg/queue"
	"github.com/aura-webinar/spotlight/pkg/redis"
	"github.com/aura-webinar/spotlight/pkg/response"
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
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.RecordingsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	streamClient := streaming.NewClient(streaming.Config{
		APIKey:    cfg.Stream.APIKey,
		APISecret: cfg.Stream.APISecret,
		BaseURL:   cfg.Stream.BaseURL,
		CallType:  cfg.Stream.CallType,
	}, httpClient, logger)

	// Repositories
	authRepo := auth.NewRepository(pool)
	webinarRepo := webinars.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)
	agentRepo := agents.NewRepository(pool)
	streamRepo := streams.NewRepository(pool)
	sessionLogRepo := sessionlog.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)

	// Realtime chat
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub, m)

	// Session status machine
	lifecycle := webinars.NewLifecycle(webinars.Deps{
		Store:            webinarRepo,
		Provisioner:      streamClient,
		Leaser:           rdb.Locker("lease:"),
		Streams:          streamRepo,
		Events:           hub,
		Outbox:           jobQueue,
		Metrics:          m,
		ProvisionTimeout: cfg.Lifecycle.ProvisionTimeout,
		LeaseTTL:         cfg.Lifecycle.LeaseTTL,
	}, logger)
	webinarService := webinars.NewService(webinarRepo, agentRepo, lifecycle, logger)

	// Funnel and gate
	tracker := attendance.NewTracker(attendanceRepo, webinarRepo, m, logger)
	playback := recordings.NewPlayback(recordingRepo, s3Presigner(s3Client), logger)
	gate := access.NewGate(webinarRepo, lifecycle, tracker, playback, agentRepo, logger)

	presence := realtime.NewPresence(sessionLogRepo, tracker, streamRepo, logger)
	hub.SetAudienceChangeHandler(presence.AudienceChanged)

	agentService := agents.NewService(agentRepo, agents.NewVapiClient(cfg.Vapi.APIKey, cfg.Vapi.BaseURL, httpClient), logger)
	paymentService := payments.NewService(
		payments.Config{WebhookSecret: cfg.Stripe.WebhookSecret, PublicURL: cfg.App.PublicURL},
		session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.Stripe.SecretKey},
		webinarRepo, authRepo, tracker, paymentRepo, logger,
	)
	analyticsService := analytics.NewService(attendanceRepo, sessionLogRepo, streamRepo, paymentRepo)

	// Handlers
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	webinarHandler := webinars.NewHandler(webinarRepo, webinarService, lifecycle, hub, logger)
	attendanceHandler := attendance.NewHandler(tracker, jwtService, logger)
	accessHandler := access.NewHandler(gate, logger)
	agentHandler := agents.NewHandler(agentService, tracker, cfg.Vapi.WebhookSecret, logger)
	paymentHandler := payments.NewHandler(paymentService, logger)
	streamHandler := streaming.NewHandler(streamClient, webinarRepo, tracker, logger)
	chatHandler := realtime.NewHandler(hub, webinarRepo, tracker, presence, cfg.Server.AllowedOrigins(), logger)
	recordingHandler := recordings.NewHandler(recordingRepo, logger)
	recordingWebhook := recordings.NewWebhookHandler(recordingRepo, jobQueue, streamClient, logger)
	sessionLogHandler := sessionlog.NewHandler(sessionLogRepo, logger)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, logger)
	analyticsHandler := analytics.NewHandler(analyticsService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Public
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}
	router.POST("/webinars/:id/register", attendanceHandler.Register)

	// Webhooks authenticate themselves
	router.POST("/webhooks/stripe", paymentHandler.Webhook)
	router.POST("/webhooks/recordings", recordingWebhook.RecordingReady)
	router.POST("/webhooks/voice/call-status", agentHandler.CallStatusWebhook)

	// Presenter or attendee
	viewer := router.Group("")
	viewer.Use(middleware.Viewer(jwtService))
	{
		viewer.GET("/webinars/:id/view", accessHandler.View)
		viewer.GET("/webinars/:id/call", accessHandler.Call)
		viewer.POST("/webinars/:id/call/status", agentHandler.ReportCallStatus)
		viewer.POST("/webinars/:id/checkout", paymentHandler.Checkout)
		viewer.GET("/webinars/:id/stream-token", streamHandler.Token)
		viewer.GET("/webinars/:id/chat", chatHandler.ServeWs)
		viewer.GET("/webinars/:id/attendees/:attendeeId", attendanceHandler.GetAttendee)
	}

	// Presenter only
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RolePresenter, models.RoleAdmin))
	{
		api.GET("/auth/me", authHandler.Me)
		api.PUT("/auth/me/stripe-account", authHandler.SetStripeAccount)

		api.GET("/webinars", webinarHandler.List)
		api.POST("/webinars", webinarHandler.Create)
		api.GET("/webinars/live", webinarHandler.ListLive)
		api.POST("/webinars/force-end", webinarHandler.ForceEnd)
		api.GET("/webinars/:id", webinarHandler.GetByID)
		api.POST("/webinars/:id/start", webinarHandler.Start)
		api.POST("/webinars/:id/end", webinarHandler.End)
		api.POST("/webinars/:id/cancel", webinarHandler.Cancel)
		api.POST("/webinars/:id/cta", webinarHandler.OpenCTA)

		api.GET("/webinars/:id/attendance", attendanceHandler.Aggregate)
		api.GET("/webinars/:id/pipeline", attendanceHandler.Pipeline)
		api.PUT("/webinars/:id/attendees/:attendeeId/stage", attendanceHandler.UpdateStage)
		api.GET("/leads", attendanceHandler.Leads)

		api.POST("/agents", agentHandler.Create)
		api.GET("/agents", agentHandler.List)
		api.PUT("/agents/:id", agentHandler.Update)

		owner := middleware.WebinarOwner(tracker, logger)
		api.GET("/webinars/:id/analytics", owner, analyticsHandler.GetByWebinar)
		api.GET("/webinars/:id/emails", owner, emailLogsHandler.ListByWebinar)
		api.GET("/webinars/:id/recordings", owner, recordingHandler.ListByWebinar)
		api.GET("/webinars/:id/sessions", owner, sessionLogHandler.List)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout must cover provisioning; websockets manage their own deadlines.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout)*time.Second + cfg.Lifecycle.ProvisionTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// s3Presigner keeps a nil *storage.S3 from becoming a non-nil interface.
func s3Presigner(s *storage.S3) recordings.Presigner {
	if s == nil {
		return nil
	}
	return s
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
