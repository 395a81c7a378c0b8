//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"

	"example.com/wellness/internal/events"
	"example.com/wellness/internal/outbox"
)

type channelHandler chan Message

func (h channelHandler) Handle(_ context.Context, msg Message) error {
	h <- msg
	return nil
}

func TestKafkaRoundTripFromOutboxProducer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.Run(ctx, "confluentinc/confluent-local:7.5.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	topic := "wellness.activity.recorded"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
	require.NoError(t, conn.Close())

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()

	evt := events.ActivityRecorded{
		ActivityID:   "3f1c2a9e-8d64-4b0f-9a57-1c2d3e4f5a6b",
		UserID:       "u1",
		ActivityType: "Water",
		Emoji:        "💧",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, producer.WriteMessages(ctx, topic, kafka.Message{
		Key:   []byte(evt.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeActivityRecorded)},
			{Key: "user_id", Value: []byte(evt.UserID)},
			{Key: "aggregate_id", Value: []byte(evt.ActivityID)},
		},
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "wellness-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	received := make(channelHandler, 1)
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = NewProcessor(reader, received, WithLogger(zap.NewNop())).Run(consumerCtx)
	}()

	select {
	case msg := <-received:
		require.Equal(t, events.TypeActivityRecorded, msg.EventType)
		require.Equal(t, "u1", msg.UserID)
		recorded, ok := msg.Event.(events.ActivityRecorded)
		require.True(t, ok)
		require.Equal(t, evt.ActivityID, recorded.ActivityID)
		require.True(t, evt.CreatedAt.Equal(recorded.CreatedAt))
	case <-ctx.Done():
		t.Fatal("timed out waiting for the activity event")
	}
}
