package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/docs"
	"github.com/estudioia/videos-api/internal/auth"
	"github.com/estudioia/videos-api/internal/backoff"
	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/config"
	"github.com/estudioia/videos-api/internal/db"
	"github.com/estudioia/videos-api/internal/handler"
	"github.com/estudioia/videos-api/internal/logger"
	"github.com/estudioia/videos-api/internal/middleware"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/queue"
	"github.com/estudioia/videos-api/internal/service"
	"github.com/estudioia/videos-api/internal/store"
	ws "github.com/estudioia/videos-api/internal/websocket"
	"github.com/estudioia/videos-api/internal/worker"
	"github.com/estudioia/videos-api/pkg/response"
)

// @title          Estúdio IA de Vídeos API
// @version        1.0
// @description    Turns PPTX presentations into narrated videos through a queued render pipeline.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	// Swagger host follows the deployment
	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis not available")
	}
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Job store: Postgres, or in memory for local runs without a database
	var (
		jobs          store.JobStore
		presentations store.PresentationStore
		directory     store.ProjectDirectory
	)
	gdb, err := db.Connect(&cfg.Database, log)
	if err == nil {
		err = db.AutoMigrateAndIndexes(gdb)
	}
	dbOK := err == nil
	switch {
	case dbOK:
		pg := store.NewPostgresStore(gdb)
		jobs, presentations, directory = pg, pg, pg
		log.Info("Using Postgres job store")
	case cfg.Server.Env == "production":
		log.WithError(err).Fatal("Database not available")
	default:
		log.WithError(err).Warn("Database not available, using in-memory store")
		mem := store.NewMemoryStore()
		jobs, presentations, directory = mem, mem, mem
	}

	if cfg.Supabase.Enabled() {
		sb, err := store.NewSupabaseDirectory(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		if err != nil {
			log.WithError(err).Warn("Supabase directory not initialized, using local collaborators")
		} else {
			directory = sb
		}
	}

	// Initialize storage (optional - continues with in-memory storage if not configured)
	var (
		storage    client.StorageClient
		memStorage *client.MemoryStorage
	)
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.WithError(err).Warn("R2 client not initialized")
		} else {
			storage = r2
		}
	}
	if storage == nil {
		log.Info("R2 storage not configured, using in-memory storage")
		memStorage = client.NewMemoryStorage("http://localhost:" + cfg.Server.Port + "/files")
		storage = memStorage
	}

	// External clients
	tts := newTTS(cfg, log)
	var renderer client.Renderer = client.NewMockRenderer()
	if cfg.Renderer.ServiceURL != "" {
		renderer = client.NewRemotionClient(&cfg.Renderer, log)
	} else {
		log.Info("Renderer service not configured, using mock renderer")
	}
	webhooks := client.NewHTTPWebhookNotifier(cfg.Webhook.Timeout)

	// Queue and control channel
	dispatcher := queue.NewAsynqQueue(redisOpt, queue.Options{
		MaxRetry:  10,
		Timeout:   cfg.Worker.JobTimeout,
		Retention: 24 * time.Hour,
		Backoff: backoff.Policy{
			Attempts:  cfg.Dispatch.MaxAttempts,
			BaseDelay: cfg.Dispatch.BaseDelay,
			MaxDelay:  cfg.Dispatch.MaxDelay,
		},
	}, log)
	defer dispatcher.Close()
	control := queue.NewControlBus(redisClient, log)

	// WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// Initialize services
	jobService := service.NewJobService(service.JobServiceDeps{
		Jobs:          jobs,
		Presentations: presentations,
		Directory:     directory,
		Dispatcher:    dispatcher,
		Control:       control,
		Hub:           hub,
		Webhooks:      webhooks,
	}, log)
	presentationService := service.NewPresentationService(presentations, directory, storage, cfg.Server.MaxUploadMB, log)

	// Initialize handlers
	validate := handler.NewValidator()
	jobHandler := handler.NewJobHandler(jobService, validate, log)
	presentationHandler := handler.NewPresentationHandler(presentationService, validate, cfg.Server.MaxUploadMB, log)

	// Initialize Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var tokenVerifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.WithError(err).Warn("JWKS verifier not initialized")
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	var apiAuth, wsAuth fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Info("Gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
		wsAuth = apiAuth
	} else {
		authMiddleware := middleware.NewAuthMiddleware(tokenVerifier, cfg.JWT.Secret)
		apiAuth = authMiddleware.Authenticate()
		wsAuth = authMiddleware.AuthenticateQuery()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(log),
		BodyLimit:    (cfg.Server.MaxUploadMB + 1) * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigin,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-Id",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		redisOK := redisClient.Ping(c.UserContext()).Err() == nil
		status := "ok"
		if !redisOK {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"redis":    redisOK,
				"database": dbOK,
				"storage":  memStorage == nil,
				"tts":      tts.Len() > 0,
				"renderer": cfg.Renderer.ServiceURL != "",
				"auth":     tokenVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// API documentation
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// Local object storage for development
	if memStorage != nil {
		app.Get("/files/*", func(c *fiber.Ctx) error {
			data, err := memStorage.Read(c.UserContext(), c.Params("*"))
			if err != nil {
				return response.NotFound(c, "File not found")
			}
			return c.Send(data)
		})
	}

	// API routes
	api := app.Group("/api", apiAuth)

	presentationRoutes := api.Group("/presentations")
	presentationRoutes.Post("/", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), presentationHandler.Upload)
	presentationRoutes.Get("/:id", presentationHandler.Get)

	jobRoutes := api.Group("/jobs")
	jobRoutes.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), jobHandler.Submit)
	jobRoutes.Get("/", jobHandler.List)
	jobRoutes.Get("/:jobId", jobHandler.Status)
	jobRoutes.Patch("/:jobId/pause", jobHandler.Pause)
	jobRoutes.Patch("/:jobId/resume", jobHandler.Resume)
	jobRoutes.Patch("/:jobId/cancel", jobHandler.Cancel)
	jobRoutes.Post("/:jobId/retry", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), jobHandler.Retry)
	jobRoutes.Delete("/:jobId", jobHandler.Delete)

	api.Get("/queue/stats", jobHandler.QueueStats)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", wsAuth, func(c *fiber.Ctx) error {
		view, err := jobService.GetStatus(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c))
		if err != nil {
			if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrForbidden) {
				return response.NotFound(c, "Job not found")
			}
			return response.ServiceError(c, "Internal server error")
		}
		c.Locals("snapshot", view)
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"), c.Locals("snapshot"))
	}))

	// Start Asynq worker server and scheduler
	workerServer := startWorkerServer(cfg, log, redisOpt, worker.Deps{
		Jobs:          jobs,
		Presentations: presentations,
		TTS:           tts,
		Renderer:      renderer,
		Storage:       storage,
		Webhooks:      webhooks,
		Hub:           hub,
		Control:       control,
	})

	scheduler, err := queue.NewScheduler(redisOpt, cfg.Retention.Cron, log)
	if err != nil {
		log.WithError(err).Warn("Cleanup scheduler not started")
	} else if err := scheduler.Start(); err != nil {
		log.WithError(err).Warn("Cleanup scheduler not started")
		scheduler = nil
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.WithField("addr", addr).Info("Server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Error("Server error")
	}

	if scheduler != nil {
		scheduler.Shutdown()
	}
	if workerServer != nil {
		workerServer.Shutdown()
	}
	log.Info("Server stopped")
}

// newTTS chains the configured speech providers. With none configured the
// pipeline renders silent slides timed by estimated narration length.
func newTTS(cfg *config.Config, log logrus.FieldLogger) *client.FallbackTTS {
	eleven := client.NewElevenLabsClient(&cfg.TTS)
	azure := client.NewAzureTTSClient(&cfg.TTS)

	var providers []client.TTSProvider
	switch strings.ToLower(cfg.TTS.Provider) {
	case "elevenlabs":
		if eleven.IsConfigured() {
			providers = append(providers, eleven)
		}
	case "azure":
		if azure.IsConfigured() {
			providers = append(providers, azure)
		}
	default:
		if eleven.IsConfigured() {
			providers = append(providers, eleven)
		}
		if azure.IsConfigured() {
			providers = append(providers, azure)
		}
	}
	if len(providers) == 0 {
		log.Info("No TTS provider configured, narration will be silent")
	}
	return client.NewFallbackTTS(log, providers...)
}

func startWorkerServer(cfg *config.Config, log logrus.FieldLogger, redisOpt asynq.RedisConnOpt, deps worker.Deps) *asynq.Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          queue.ServerQueues(),
		StrictPriority:  true,
		Logger:          logger.NewAsynqLogger(log),
		LogLevel:        logger.AsynqLevel(cfg.Server.LogLevel),
		ShutdownTimeout: 15 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			log.WithError(err).WithFields(logrus.Fields{
				"task":    task.Type(),
				"task_id": id,
				"retried": retried,
			}).Warn("Task failed")
		}),
	})

	renderWorker := worker.NewRenderWorker(deps, worker.OptionsFromConfig(cfg), log)
	cleanupWorker := worker.NewCleanupWorker(deps.Jobs, cfg.Retention.Days, log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeRender, renderWorker.ProcessTask)
	mux.HandleFunc(queue.TaskTypeCleanup, cleanupWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		log.WithError(err).Error("Asynq worker not started")
		return nil
	}
	return srv
}

func customErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		} else {
			log.WithError(err).WithField("path", c.Path()).Error("Unhandled error")
		}

		return response.Error(c, code, errorCode(code), message, nil)
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return response.CodeValidationError
	case fiber.StatusUnauthorized:
		return response.CodeUnauthorized
	case fiber.StatusForbidden:
		return response.CodeForbidden
	case fiber.StatusNotFound:
		return response.CodeNotFound
	case fiber.StatusTooManyRequests:
		return response.CodeRateLimited
	default:
		return response.CodeServiceError
	}
}
