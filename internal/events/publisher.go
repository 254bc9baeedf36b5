// Package events publishes pipeline lifecycle events to RabbitMQ so other
// CRM services can react to completed imports and dispatched outreach.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/models"
)

// Routing keys published on the topic exchange.
const (
	KeyImportCompleted    = "import.completed"
	KeyOutreachDispatched = "outreach.dispatched"
	KeySessionClosed      = "session.closed"
)

// Envelope wraps every published event with routing metadata.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// ImportCompleted is the payload published when an import run finishes.
type ImportCompleted struct {
	SessionID  string                `json:"sessionId"`
	PipelineID string                `json:"pipelineId"`
	Results    *models.ImportResults `json:"results"`
}

// OutreachDispatched is the payload published when a batch is submitted.
type OutreachDispatched struct {
	SessionID string `json:"sessionId"`
	BatchID   string `json:"batchId"`
	Count     int    `json:"count"`
	DelayMs   int    `json:"delayMs"`
}

// SessionClosed is the payload published when a wizard session is closed.
type SessionClosed struct {
	SessionID string `json:"sessionId"`
	FinalStep int    `json:"finalStep"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, data interface{}) error
	Close() error
}

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   logger.Logger
}

// New connects to RabbitMQ and declares the topic exchange.
func New(url, exchange string, log logger.Logger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &rmqPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   log.WithFields(map[string]interface{}{"component": "events"}),
	}, nil
}

func (p *rmqPublisher) Publish(ctx context.Context, key string, data interface{}) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    envelope.ID,
			Timestamp:    envelope.OccurredAt,
			Body:         body,
		},
	)
	if err == nil {
		p.logger.Info("event published", map[string]interface{}{
			"key":      key,
			"exchange": p.exchange,
		})
	}
	return err
}

func (p *rmqPublisher) Close() error {
	return p.conn.Close()
}

// noOpPublisher stands in when events are disabled or the broker is
// unreachable. Event publication is best-effort; a down broker must never
// block an import.
type noOpPublisher struct {
	logger logger.Logger
}

func NewNoOp(log logger.Logger) Publisher {
	return &noOpPublisher{logger: log}
}

func (p *noOpPublisher) Publish(ctx context.Context, key string, data interface{}) error {
	p.logger.Debug("event publishing disabled, skipping", map[string]interface{}{"key": key})
	return nil
}

func (p *noOpPublisher) Close() error { return nil }
