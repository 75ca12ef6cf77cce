package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobEnqueued      MessageType = "job.enqueued"
	MessageTypeJobFinished      MessageType = "job.finished"
	MessageTypePublishConfirmed MessageType = "publish.confirmed"
)

// Publisher публикует события конвейера в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobEnqueuedPayload — payload для сигнала о новом job.
type JobEnqueuedPayload struct {
	JobID     uuid.UUID `json:"job_id"`
	ChannelID uuid.UUID `json:"channel_id"`
}

// JobFinishedPayload — payload для события терминального статуса.
type JobFinishedPayload struct {
	JobID     uuid.UUID `json:"job_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	Status    string    `json:"status"` // SUCCEEDED, FAILED или CANCELLED
	Stage     string    `json:"stage"`
	Error     string    `json:"error,omitempty"`
}

// PublishConfirmedPayload — payload для подтверждённой публикации.
type PublishConfirmedPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	SlotID      uuid.UUID `json:"slot_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJobEnqueued публикует сигнал о новом job в очереди.
// Потребитель: Orchestrator (будит dispatch-цикл).
func (p *Publisher) PublishJobEnqueued(ctx context.Context, jobID, channelID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobEnqueued,
		Payload:   JobEnqueuedPayload{JobID: jobID, ChannelID: channelID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyEnqueued, msg)
}

// PublishJobFinished публикует событие о терминальном статусе job.
func (p *Publisher) PublishJobFinished(ctx context.Context, payload JobFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyFinished, msg)
}

// PublishPublishConfirmed публикует событие о подтверждённой публикации.
func (p *Publisher) PublishPublishConfirmed(ctx context.Context, payload PublishConfirmedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypePublishConfirmed,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyPublished, msg)
}
