package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

const DefaultTopic = "receipt.created"

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher waits for the broker to come up, retrying a few times.
func NewKafkaPublisher(broker, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer([]string{broker}, config)
		if err == nil {
			slog.Info("✅ Kafka producer initialized", "broker", broker, "topic", topic)
			return NewKafkaPublisherFromProducer(producer, topic), nil
		}
		slog.Warn("Waiting for Kafka...", "attempt", i, "error", err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("unable to start kafka producer: %w", err)
}

func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishReceiptCreated(_ context.Context, event domain.ReceiptCreated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal receipt.created: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ReceiptID),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send receipt.created: %w", err)
	}

	slog.Info("📤 Published receipt.created", "receipt_id", event.ReceiptID, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
