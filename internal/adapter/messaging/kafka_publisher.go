package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	eventTypeCartChanged       = "cart_changed"
	eventTypeCheckoutCompleted = "checkout_completed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events as JSON, keyed by user id so that one
// user's events stay ordered within a partition.
type KafkaPublisher struct {
	cartChanged       messageWriter
	checkoutCompleted messageWriter
}

func newWriter(topic string, brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

func NewKafkaPublisher(brokers []string, cartChangedTopic, checkoutCompletedTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		cartChanged:       newWriter(cartChangedTopic, brokers),
		checkoutCompleted: newWriter(checkoutCompletedTopic, brokers),
	}
}

func (p *KafkaPublisher) PublishCartChanged(ctx context.Context, event domain.CartChanged) error {
	return publish(ctx, p.cartChanged, eventTypeCartChanged, event.UserID, event)
}

func (p *KafkaPublisher) PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error {
	return publish(ctx, p.checkoutCompleted, eventTypeCheckoutCompleted, event.UserID, event)
}

func publish(ctx context.Context, w messageWriter, eventType string, userID int64, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return errors.Join(p.cartChanged.Close(), p.checkoutCompleted.Close())
}
