//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firmbeat/recurflow/internal/kafka"
)

func TestProducerConsumerRoundTrip(t *testing.T) {
	topic := "test.tasks.generated.roundtrip"
	createTopic(t, topic)

	producer := kafka.NewProducer(testKafkaBrokers)
	t.Cleanup(func() { _ = producer.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	consumer := kafka.NewConsumer(testKafkaBrokers, topic, "test-roundtrip-group", logger)
	t.Cleanup(func() { _ = consumer.Close() })

	event := kafka.TaskGeneratedEvent{
		TaskID:     "task-1",
		ScheduleID: "sched-1",
		FirmID:     "firm-1",
		Title:      "GSTR-3B filing",
		AssignedTo: []string{"user-1"},
		DueDate:    time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, producer.Publish(ctx, topic, event.TaskID, payload))

	received := make(chan kafka.TaskGeneratedEvent, 1)
	go func() {
		_ = consumer.Subscribe(ctx, func(_ context.Context, msg kafka.Message) error {
			var got kafka.TaskGeneratedEvent
			if err := json.Unmarshal(msg.Value, &got); err != nil {
				return err
			}
			received <- got
			cancel()
			return nil
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, event.TaskID, got.TaskID)
		assert.Equal(t, event.FirmID, got.FirmID)
		assert.Equal(t, event.AssignedTo, got.AssignedTo)
		assert.True(t, got.DueDate.Equal(event.DueDate))
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
