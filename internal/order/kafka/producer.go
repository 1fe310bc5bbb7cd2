package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-orderflow/internal/models"
)

const (
	TopicOrderCreated = "order.created"
	TopicOrderShipped = "order.shipped"
)

// Producer streams order lifecycle notifications. Publishing is a
// best-effort side effect: the sagas log failures and keep going.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

type orderCreatedEvent struct {
	OrderID           string    `json:"order_id"`
	UserID            string    `json:"user_id,omitempty"`
	Status            string    `json:"status"`
	Total             string    `json:"total"`
	StakeCallRequired bool      `json:"stake_call_required"`
	CreatedAt         time.Time `json:"created_at"`
}

type orderShippedEvent struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id,omitempty"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	ShippedAt      time.Time `json:"shipped_at"`
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	ev := orderCreatedEvent{
		OrderID:           order.ID,
		UserID:            order.UserID,
		Status:            string(order.Status),
		Total:             order.Total.StringFixed(2),
		StakeCallRequired: order.StakeCallRequired,
		CreatedAt:         order.CreatedAt,
	}
	return p.publish(TopicOrderCreated, order.ID, ev)
}

func (p *Producer) PublishOrderShipped(order models.Order) error {
	ev := orderShippedEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Carrier:        order.Carrier,
		TrackingNumber: order.TrackingNumber,
	}
	if order.ShippedAt != nil {
		ev.ShippedAt = *order.ShippedAt
	}
	return p.publish(TopicOrderShipped, order.ID, ev)
}

func (p *Producer) publish(topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
