package notify

import (
	"context"
	"encoding/json"
	"log"

	"freshchain-ledger-server/internal/ledger"

	skafka "github.com/segmentio/kafka-go"
)

// Writer is the subset of the segmentio kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaPublisher writes notifications as JSON, keyed by Notification.Key so that every event
// of a batch lands on the same partition.
type KafkaPublisher struct {
	writer Writer
}

var _ ledger.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokerURL, topic string) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:                   skafka.TCP(brokerURL),
		Topic:                  topic,
		Balancer:               &skafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n ledger.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	msg := skafka.Message{
		Key:   []byte(n.Key()),
		Value: b,
		Headers: []skafka.Header{
			{Key: "event", Value: []byte(n.Name)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Println("kafka write error:", err)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
