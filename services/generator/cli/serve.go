package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/firmbeat/recurflow/internal/kafka"
	"github.com/firmbeat/recurflow/internal/postgres"
	redisstore "github.com/firmbeat/recurflow/internal/redis"
	"github.com/firmbeat/recurflow/pkg/telemetry"
	"github.com/firmbeat/recurflow/services/generator"
	"github.com/firmbeat/recurflow/services/generator/config"
)

const leaderKey = "recurflow:generator:leader"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the generator on its configured cadence",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("kafka-brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address (host:port)")
	serveCmd.Flags().String("generation-cron", "0 2 * * *", "cron expression for the daily generation pass")
	serveCmd.Flags().String("metrics-addr", ":9092", "Prometheus metrics server address")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("kafka_brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("generation_cron", serveCmd.Flags(), "generation-cron")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := buildLogger(cfg.LogLevel, "generator")
	instanceID := "generator-" + uuid.New().String()[:8]

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "generator", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer := kafka.NewProducer(brokers)
	defer producer.Close()

	redisClient := redisstore.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	leader := redisstore.NewLeaderLock(redisClient, leaderKey, instanceID, 5*time.Minute)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	runCtx, runCancel := context.WithCancel(context.Background())
	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down...")
		runCancel()
	}()

	runner := generator.NewRunner(
		postgres.NewScheduleRepository(pool),
		postgres.NewTemplateRepository(pool),
		producer,
		leader,
		logger,
	)

	logger.Info("generator starting",
		slog.String("instance_id", instanceID),
		slog.String("cadence", cfg.GenerationCron),
	)
	if err := runner.Run(runCtx, cfg.GenerationCron); err != nil {
		return err
	}

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer releaseCancel()
	_ = leader.Release(releaseCtx)

	logger.Info("stopped")
	return nil
}
