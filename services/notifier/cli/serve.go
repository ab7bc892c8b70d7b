package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/firmbeat/recurflow/internal/kafka"
	"github.com/firmbeat/recurflow/internal/notify"
	"github.com/firmbeat/recurflow/pkg/telemetry"
	"github.com/firmbeat/recurflow/services/notifier"
	"github.com/firmbeat/recurflow/services/notifier/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the notifier",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("kafka-brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	serveCmd.Flags().String("group-id", "recurflow-notifier", "Kafka consumer group ID")
	serveCmd.Flags().StringSlice("channels", []string{"email"}, "notification channels to enable: email, webhook")
	serveCmd.Flags().String("metrics-addr", ":9093", "Prometheus metrics server address")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("kafka_brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("group_id", serveCmd.Flags(), "group-id")
	bindFlag("channels", serveCmd.Flags(), "channels")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := buildLogger(cfg.LogLevel, "notifier")

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "notifier", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	registry := notify.NewRegistry()
	for _, name := range cfg.Channels {
		switch name {
		case "email":
			registry.Register(notify.NewEmailChannel(notify.EmailConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				From:     cfg.SMTPFrom,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
			}))
		case "webhook":
			if cfg.WebhookURL == "" {
				return fmt.Errorf("webhook channel enabled but webhook_url is empty")
			}
			registry.Register(notify.NewWebhookChannel(cfg.WebhookURL))
		default:
			return fmt.Errorf("unknown notification channel %q", name)
		}
	}
	if len(registry.Names()) == 0 {
		return fmt.Errorf("no notification channels enabled")
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	consumer := kafka.NewConsumer(brokers, kafka.TopicTaskGenerated, cfg.GroupID, logger)
	defer consumer.Close()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down...")
		runCancel()
	}()

	n := notifier.NewNotifier(registry, logger)
	logger.Info("notifier starting",
		slog.String("topic", kafka.TopicTaskGenerated),
		slog.String("group_id", cfg.GroupID),
		slog.Any("channels", registry.Names()),
	)
	if err := n.Run(runCtx, consumer); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
