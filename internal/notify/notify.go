// Package notify publishes run summaries for other services to consume.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/pipeline"
)

const (
	DefaultQueue   = "hire_responder.runs"
	publishTimeout = 5 * time.Second
)

type Publisher interface {
	Publish(ctx context.Context, stats *pipeline.Stats) error
	Close() error
}

// Nop drops every summary.
type Nop struct{}

func (Nop) Publish(context.Context, *pipeline.Stats) error { return nil }
func (Nop) Close() error                                   { return nil }

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP sends each summary as a persistent JSON message to a durable queue.
type AMQP struct {
	conn    *amqp.Connection
	channel channel
	queue   string
	logger  *zap.Logger
}

func NewAMQP(url, queue string, logger *zap.Logger) (*AMQP, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp url is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	logger.Info("connected to amqp", zap.String("queue", q.Name))

	return &AMQP{conn: conn, channel: ch, queue: q.Name, logger: logger}, nil
}

func (p *AMQP) Publish(ctx context.Context, stats *pipeline.Stats) error {
	if stats == nil {
		return errors.New("stats are required")
	}

	body, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    stats.RunID,
		Timestamp:    stats.FinishedAt,
		Type:         "pipeline.run",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}

	p.logger.Debug("run summary published", zap.String("run_id", stats.RunID), zap.String("queue", p.queue))
	return nil
}

func (p *AMQP) Close() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
