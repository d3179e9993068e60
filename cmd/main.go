package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/CDeX-Labs/CDeX-Judge-Service/config"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/executor"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/handlers"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/judge"
	judgekafka "github.com/CDeX-Labs/CDeX-Judge-Service/internal/kafka"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/middleware"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/pipeline"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/presence"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.InitConfig(os.Getenv("APP_ENV") != "production")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var st store.Store
	var presenceMirror handlers.PresenceMirror
	redisStore, err := store.NewRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory store")
		st = store.NewMemory()
	} else {
		st = redisStore
		presenceMirror = presence.NewMirror(redisStore.Client())
		defer redisStore.Close()
	}

	exec := executor.NewHTTPExecutor(cfg.Judge.ExecutorURL, cfg.Judge.Languages, logger)
	engine := judge.NewEngine(exec, cfg.Judge.SystemRetries, logger)

	h := hub.NewHub(hub.Config{
		MaxMembers:  cfg.Rooms.MaxMembers,
		ReplayDepth: cfg.Rooms.ReplayBuffer,
		SendBuffer:  cfg.Rooms.SendBuffer,
		IdleTTL:     cfg.Rooms.IdleTTL,
	}, m, logger)

	producer := judgekafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.JudgedTopic, logger)
	defer producer.Close()

	pipe := pipeline.New(st, engine, exec, h, producer, m, pipeline.Config{
		Workers:   cfg.Judge.Workers,
		QueueSize: cfg.Judge.QueueSize,
		TimeLimit: cfg.Judge.TimeLimit,
	}, logger)

	handlers.NewJudgeHandler(h, pipe, logger).Register()

	consumer := judgekafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.IngressTopics, m, logger)
	judgekafka.NewHandlers(h, logger).RegisterAll(consumer)

	wsHandler := handlers.NewWebSocketHandler(h, presenceMirror, logger)
	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)

	mux := http.NewServeMux()
	mux.Handle("/v1/ws", limiter.Middleware(auth.Middleware(validator, m)(wsHandler)))
	mux.HandleFunc("/healthz", handlers.HealthHandler())
	mux.HandleFunc("/readyz", handlers.ReadyHandler(h))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(ctx)
		return nil
	})
	g.Go(func() error {
		pipe.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return consumer.Run(ctx)
	})
	g.Go(func() error {
		logger.Info().Str("port", cfg.App.Port).Str("app", cfg.App.Name).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
	logger.Info().Msg("Server stopped")
}
