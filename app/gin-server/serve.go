package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/voiceinterview/config"
	"github.com/yoockh/voiceinterview/internal/api/handlers"
	"github.com/yoockh/voiceinterview/internal/api/middleware"
	"github.com/yoockh/voiceinterview/internal/api/routes"
	"github.com/yoockh/voiceinterview/internal/cache"
	"github.com/yoockh/voiceinterview/internal/logger"
	"github.com/yoockh/voiceinterview/internal/providers/llm"
	mongorepo "github.com/yoockh/voiceinterview/internal/repositories/mongo"
	pgrepo "github.com/yoockh/voiceinterview/internal/repositories/postgres"
	"github.com/yoockh/voiceinterview/internal/services"
	"github.com/yoockh/voiceinterview/internal/sessionstore"
	"github.com/yoockh/voiceinterview/internal/storage"
	"github.com/yoockh/voiceinterview/internal/workers"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger.New(cfg.LogLevel))
		},
	}
}

func newProvider(ctx context.Context, cfg *config.AppConfig) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "openai":
		return llm.NewOpenAIChat(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel), nil
	default:
		return llm.NewVertexGemini(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.LLMModel, cfg.GoogleCredentialsFile)
	}
}

func serve(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) error {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.UsesRedis() {
		if err := config.InitRedis(cfg.RedisAddr); err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer config.RedisClient.Close()
		log.Info("redis connected")
	}

	var store sessionstore.Store
	if cfg.SessionStore == "redis" {
		store = sessionstore.NewRedisStore(cache.NewRedisCache(config.RedisClient), sessionstore.RedisOptions{
			IdleTTL: cfg.SessionIdleTTL,
			LockTTL: cfg.SessionLockTTL,
		})
	} else {
		store = sessionstore.NewMemoryStore(cfg.SessionIdleTTL)
	}
	defer store.Close()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	defer provider.Close()

	questions := services.NewQuestionGenerator(provider, cfg.LLMTimeout, cfg.MaxQuestions)
	deps := services.DispatcherDeps{
		Store:        store,
		Questions:    questions,
		Evaluator:    services.NewEvaluator(provider, cfg.LLMTimeout),
		Logger:       log,
		CleanupDelay: cfg.SessionCleanupDelay,
	}

	var transcripts services.TranscriptService
	if cfg.MongoURI != "" {
		if err := config.InitMongo(cfg); err != nil {
			return fmt.Errorf("mongo init: %w", err)
		}
		defer func() { _ = config.MongoClient.Disconnect(context.Background()) }()
		if err := config.EnsureMongoIndexes(cfg.MongoDB); err != nil {
			log.WithError(err).Warn("mongo index setup failed")
		}
		transcripts = services.NewTranscriptService(mongorepo.NewTranscriptRepo(config.MongoClient.Database(cfg.MongoDB)), cfg.TranscriptTTL)
		deps.Transcripts = transcripts
		log.Info("mongo connected")
	}

	var interviews services.InterviewService
	if cfg.PostgresURI != "" {
		if err := config.InitPostgres(cfg.PostgresURI); err != nil {
			return fmt.Errorf("postgres init: %w", err)
		}
		interviews = services.NewInterviewService(pgrepo.NewInterviewRepo(config.PostgresDB))
		log.Info("postgres connected")
	}

	var pool *workers.JobPool
	if cfg.UsesRedis() {
		deps.Status = workers.NewRedisStatusNotifier(config.RedisClient)
		if interviews != nil {
			deps.Jobs = workers.NewRedisJobQueue(config.RedisClient, workers.DefaultJobStream)
			pool = &workers.JobPool{
				Redis:      config.RedisClient,
				Interviews: interviews,
				NumWorkers: cfg.WorkerCount,
				Logger:     log,
			}
			if cfg.RecordingBucket != "" {
				up, err := storage.NewGCSUploader(ctx, cfg.RecordingBucket, cfg.GoogleCredentialsFile)
				if err != nil {
					return fmt.Errorf("gcs init: %w", err)
				}
				defer up.Close()
				pool.Recordings = services.NewRecordingService(up, &http.Client{Timeout: 5 * time.Minute})
			}
		}
	}

	rd := routes.Deps{
		Vapi:       handlers.NewVapiHandler(services.NewDispatcher(deps)),
		Questions:  handlers.NewQuestionHandler(questions),
		Calls:      handlers.NewCallHandler(store, transcripts),
		VapiSecret: cfg.VapiServerSecret,
		JWT: middleware.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
	}
	if interviews != nil {
		rd.Interviews = handlers.NewInterviewHandler(interviews)
	}
	if cfg.UsesRedis() {
		rd.WS = handlers.NewWSHandler(store, config.RedisClient, cfg.WSAllowedOrigins)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, rd)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if pool != nil {
		g.Go(func() error {
			return pool.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}
