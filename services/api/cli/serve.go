package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/firmbeat/recurflow/internal/kafka"
	"github.com/firmbeat/recurflow/internal/postgres"
	redisstore "github.com/firmbeat/recurflow/internal/redis"
	"github.com/firmbeat/recurflow/pkg/telemetry"
	"github.com/firmbeat/recurflow/services/api/config"
	"github.com/firmbeat/recurflow/services/api/handler"
	"github.com/firmbeat/recurflow/services/api/middleware"
	"github.com/firmbeat/recurflow/services/generator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-port", "8080", "HTTP server port")
	serveCmd.Flags().String("metrics-addr", ":9091", "Prometheus metrics server address")
	serveCmd.Flags().String("kafka-brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address (host:port)")
	serveCmd.Flags().Int("generate-limit", 3, "manual generation runs allowed per firm per window")
	serveCmd.Flags().Duration("generate-window", time.Hour, "manual generation rate-limit window")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("http_port", serveCmd.Flags(), "http-port")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("kafka_brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("generate_limit", serveCmd.Flags(), "generate-limit")
	bindFlag("generate_window", serveCmd.Flags(), "generate-window")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := buildLogger(cfg.LogLevel, "api")

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "api", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer := kafka.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	redisClient := redisstore.NewClient(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	limiter := redisstore.NewRateLimiter(redisClient, cfg.GenerateLimit, cfg.GenerateWindow)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	templates := postgres.NewTemplateRepository(pool)
	schedules := postgres.NewScheduleRepository(pool)
	tasks := postgres.NewTaskRepository(pool)

	// Manual runs share the generator's pass logic. No leader lock here: the
	// version guard already makes an overlap with the cron runner harmless.
	runner := generator.NewRunner(schedules, templates, producer, nil, logger)

	restHandler := handler.NewREST(templates, schedules, tasks, runner, limiter, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1MB limit
	r.Get("/healthz", restHandler.Healthz)
	r.Get("/readyz", restHandler.Readyz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/templates", restHandler.CreateTemplate)
		r.Get("/templates/{id}", restHandler.GetTemplate)
		r.Post("/schedules", restHandler.CreateSchedule)
		r.Get("/schedules", restHandler.ListSchedules)
		r.Get("/schedules/{id}", restHandler.GetSchedule)
		r.Get("/schedules/{id}/tasks", restHandler.ListScheduleTasks)
		r.Post("/schedules/{id}/toggle", restHandler.ToggleSchedule)
		r.Delete("/schedules/{id}", restHandler.DeleteSchedule)
		r.Post("/patterns/preview", restHandler.PreviewPattern)
		r.Post("/generate", restHandler.Generate)
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger)

	go func() {
		logger.Info("api HTTP starting", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down...")
	runCancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("stopped")
	return nil
}
