// Package notifier consumes generated-task events and fans them out to the
// configured notification channels.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/firmbeat/recurflow/internal/kafka"
	"github.com/firmbeat/recurflow/internal/notify"
	"github.com/firmbeat/recurflow/pkg/retry"
	"github.com/firmbeat/recurflow/pkg/telemetry"
)

const sendTimeout = 30 * time.Second

// Notifier turns one task event into one notification per assignee, delivered
// on every registered channel.
type Notifier struct {
	registry *notify.Registry
	logger   *slog.Logger
}

// NewNotifier creates a Notifier delivering through the given registry.
func NewNotifier(registry *notify.Registry, logger *slog.Logger) *Notifier {
	return &Notifier{registry: registry, logger: logger}
}

// Run consumes events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, consumer kafka.Consumer) error {
	return consumer.Subscribe(ctx, n.HandleMessage)
}

// HandleMessage processes one task event. It always returns nil: a malformed
// payload is skipped (retrying cannot fix it), and a channel that stays down
// after retries only costs that notification, never the consumer's progress.
func (n *Notifier) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer("notifier").Start(ctx, "notifier.handle_message")
	defer span.End()

	var event kafka.TaskGeneratedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		n.logger.Error("malformed task event, skipping",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return nil
	}

	span.SetAttributes(
		attribute.String("task.id", event.TaskID),
		attribute.String("firm_id", event.FirmID),
		attribute.Int("assignees", len(event.AssignedTo)),
	)

	log := n.logger.With(
		slog.String("task_id", event.TaskID),
		slog.String("firm_id", event.FirmID),
	)

	for _, assignee := range event.AssignedTo {
		notification := &notify.Notification{
			FirmID:    event.FirmID,
			Recipient: assignee,
			TaskID:    event.TaskID,
			Title:     event.Title,
			DueDate:   event.DueDate,
		}
		for _, name := range n.registry.Names() {
			n.deliver(ctx, name, notification, log)
		}
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, channelName string, notification *notify.Notification, log *slog.Logger) {
	channel, err := n.registry.Get(channelName)
	if err != nil {
		log.Error("channel lookup failed", slog.String("channel", channelName), slog.String("error", err.Error()))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err = retry.Do(sendCtx, retry.Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		OnRetry: func(attempt int, err error) {
			log.Warn("notification retry",
				slog.String("channel", channelName),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}, func() error {
		return channel.Send(sendCtx, notification)
	})
	if err != nil {
		telemetry.NotifierFailed.WithLabelValues(channelName).Inc()
		log.Error("notification failed",
			slog.String("channel", channelName),
			slog.String("recipient", notification.Recipient),
			slog.String("error", err.Error()),
		)
		return
	}

	telemetry.NotifierDelivered.WithLabelValues(channelName).Inc()
	log.Info("notification delivered",
		slog.String("channel", channelName),
		slog.String("recipient", notification.Recipient),
	)
}
