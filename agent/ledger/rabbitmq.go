package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultQueue = "chative.ledger.transfers"

// Config is loaded with the LEDGER prefix. An empty URL disables publishing.
type Config struct {
	URL     string `envconfig:"URL" split_words:"true"`
	Queue   string `envconfig:"QUEUE" split_words:"true" default:"chative.ledger.transfers"`
	Durable bool   `envconfig:"DURABLE" split_words:"true" default:"true"`
}

// RabbitMQPublisher sends transfer events to a RabbitMQ queue as persistent
// JSON messages.
type RabbitMQPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewRabbitMQPublisher(cfg Config) (*RabbitMQPublisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = defaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare rabbitmq queue: %w", err)
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *RabbitMQPublisher) PublishTransfer(ctx context.Context, ev TransferEvent) error {
	if p == nil || p.ch == nil {
		return errors.New("rabbitmq publisher not initialised")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.TransactionID,
		Type:         ev.Type,
		Timestamp:    ev.ExecutedAt,
		Body:         body,
	})
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Open returns a RabbitMQ publisher, or Noop when no URL is configured.
func Open(cfg Config) (Publisher, func() error, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return Noop{}, func() error { return nil }, nil
	}
	p, err := NewRabbitMQPublisher(cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
