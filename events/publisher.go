package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher emits ledger events after a store mutation committed. Publishing
// is best-effort: callers log failures but never roll back the mutation.
type Publisher interface {
	PublishRecordCreated(ctx context.Context, msg RecordCreated) error
	PublishIncomeDeposited(ctx context.Context, msg IncomeDeposited) error
	Close() error
}

// Noop is used when no AMQP broker is configured.
type Noop struct{}

func (Noop) PublishRecordCreated(ctx context.Context, msg RecordCreated) error { return nil }

func (Noop) PublishIncomeDeposited(ctx context.Context, msg IncomeDeposited) error { return nil }

func (Noop) Close() error { return nil }

// AMQPPublisher publishes ledger events to a durable direct exchange, with
// a single queue bound to every routing key.
type AMQPPublisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewAMQPPublisher(url, exchangeName, queueName string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &AMQPPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := p.setup(); err != nil {
		p.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return p, nil
}

func (p *AMQPPublisher) setup() error {
	err := p.channel.ExchangeDeclare(
		p.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = p.channel.QueueDeclare(
		p.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range []string{KeyRecordCreated, KeyIncomeDeposited} {
		if err := p.channel.QueueBind(p.queueName, key, p.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue for %s: %w", key, err)
		}
	}

	return nil
}

func (p *AMQPPublisher) PublishRecordCreated(ctx context.Context, msg RecordCreated) error {
	if err := p.publish(ctx, KeyRecordCreated, msg); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published ledger event",
		"key", KeyRecordCreated,
		"record_id", msg.RecordID,
		"user_id", msg.UserID)
	return nil
}

func (p *AMQPPublisher) PublishIncomeDeposited(ctx context.Context, msg IncomeDeposited) error {
	if err := p.publish(ctx, KeyIncomeDeposited, msg); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published ledger event",
		"key", KeyIncomeDeposited,
		"user_id", msg.UserID,
		"balance", msg.Balance)
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		key,            // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
