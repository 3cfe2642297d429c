package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/swiftpay/wallet-service/internal/domain"
)

// RabbitMQPublisher publishes wallet domain events to a RabbitMQ topic
// exchange. It implements domain.EventPublisher.
type RabbitMQPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// transferCompletedEvent is the wire payload for a completed transfer.
type transferCompletedEvent struct {
	EntryID      string    `json:"entryId"`
	SenderID     string    `json:"senderId"`
	ReceiverID   string    `json:"receiverId"`
	Amount       string    `json:"amount"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	SenderName   string    `json:"senderName,omitempty"`
	ReceiverName string    `json:"receiverName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the topic exchange.
func NewRabbitMQPublisher(url, exchange, routingKey string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// PublishTransferCompleted publishes the canonical ledger entry of a
// completed transfer.
func (p *RabbitMQPublisher) PublishTransferCompleted(ctx context.Context, entry *domain.LedgerEntry) error {
	event := transferCompletedEvent{
		EntryID:      entry.ID.String(),
		SenderID:     senderLabel(entry.SenderID),
		ReceiverID:   entry.ReceiverID.String(),
		Amount:       domain.FormatAmount(entry.Amount),
		Type:         string(entry.Type),
		Status:       string(entry.Status),
		SenderName:   entry.SenderName,
		ReceiverName: entry.ReceiverName,
		Timestamp:    entry.CreatedAt.UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close releases the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return p.conn.Close()
}

func senderLabel(id uuid.UUID) string {
	if id == uuid.Nil {
		return "SYSTEM"
	}
	return id.String()
}
