package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// kafkaWriter is the subset of *kafka.Writer the producer uses.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaProducer struct {
	writer kafkaWriter
	logger *zap.Logger
}

// NewKafkaProducer creates a producer writing to the given brokers. Topics are
// created on first write. Messages with the same key land on the same
// partition.
func NewKafkaProducer(brokers []string, clientID string, logger *zap.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Transport:              &kafka.Transport{ClientID: clientID},
	}
	logger.Info("kafka producer created", zap.Strings("brokers", brokers), zap.String("client_id", clientID))
	return &kafkaProducer{writer: writer, logger: logger}, nil
}

func (p *kafkaProducer) Send(ctx context.Context, msg Message) error {
	record := kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for key, val := range msg.Headers {
		record.Headers = append(record.Headers, kafka.Header{Key: key, Value: []byte(val)})
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("kafka write %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
