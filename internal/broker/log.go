package broker

import (
	"context"

	"go.uber.org/zap"
)

type logProducer struct {
	logger *zap.Logger
}

// NewLogProducer returns a producer that only logs messages. It is the
// default when no broker is configured.
func NewLogProducer(logger *zap.Logger) Producer {
	return &logProducer{logger: logger}
}

func (p *logProducer) Send(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.String("key", msg.Key),
		zap.Int("bytes", len(msg.Value)),
		zap.Any("headers", msg.Headers),
	}
	if msg.Headers[HeaderContentType] == (jsonCodec{}).ContentType() {
		fields = append(fields, zap.ByteString("value", msg.Value))
	}
	p.logger.Info("event published", fields...)
	return nil
}

func (p *logProducer) Close() error { return nil }
