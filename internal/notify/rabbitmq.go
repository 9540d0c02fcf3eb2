package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"freshchain-ledger-server/internal/ledger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher sends notifications to a durable queue as persistent JSON messages.
type RabbitPublisher struct {
	conn  *amqp.Connection
	chn   Channel
	queue string
}

var _ ledger.Publisher = (*RabbitPublisher)(nil)

// DialRabbit connects to url and declares queue.
func DialRabbit(url, queue string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	chn, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p, err := NewRabbitPublisher(chn, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewRabbitPublisher declares queue on an open channel.
func NewRabbitPublisher(chn Channel, queue string) (*RabbitPublisher, error) {
	_, err := chn.QueueDeclare(
		queue, // name of queue
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &RabbitPublisher{chn: chn, queue: queue}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, n ledger.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.chn.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Type:         string(n.Name),
			Body:         body,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	if err := p.chn.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
