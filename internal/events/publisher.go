// Package events publishes cart activity records to Kafka. Publishing is
// best-effort: failures are logged and never surfaced to the caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	TypeItemAdded       Type = "cart.item_added"
	TypeItemRemoved     Type = "cart.item_removed"
	TypeDiscountApplied Type = "cart.discount_applied"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Code      string    `json:"code,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Kafka publishes events to a single topic, keyed by user so one user's
// activity stays ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafka(brokers []string, topic string, log zerolog.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           2 * time.Second,
		},
		log: log,
	}
}

func (k *Kafka) Publish(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	value, err := json.Marshal(e)
	if err != nil {
		k.log.Warn().Err(err).Str("type", string(e.Type)).Msg("marshal event failed")
		return
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("user_%d", e.UserID)),
		Value: value,
	})
	if err != nil {
		k.log.Warn().Err(err).Str("type", string(e.Type)).Msg("publish event failed")
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
