// Package notify publishes saga notifications: emails through the
// notification queue and realtime pushes to per-user channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"eventgo-saga/models"
)

// Publisher is the at-least-once, fire-and-forget notification contract.
// Sagas log publish failures and move on; they never retry or abort on them.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// QueuePublisher writes notifications to the notification topic for the
// downstream email consumer.
type QueuePublisher struct {
	writer *kafka.Writer
}

func NewQueuePublisher(brokers []string, topic string) *QueuePublisher {
	return &QueuePublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *QueuePublisher) Publish(ctx context.Context, n models.Notification) error {
	if n.NotificationID == "" {
		n.NotificationID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.RecipientEmail),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish notification to %s: %w", n.RecipientEmail, err)
	}

	log.Printf("notify: published %s notification %s for %s", n.Type, n.NotificationID, n.RecipientEmail)
	return nil
}

func (p *QueuePublisher) Close() error {
	return p.writer.Close()
}
