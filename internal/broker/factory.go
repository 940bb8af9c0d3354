package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

// NewProducerFactory returns the factory for the configured driver. The
// redis client is only used by the redis driver and may be nil otherwise.
func NewProducerFactory(cfg config.BrokerConfig, rdb *redis.Client, logger *zap.Logger) ProducerFactory {
	return func(ctx context.Context) (Producer, error) {
		switch cfg.Driver {
		case config.BrokerDriverKafka:
			return NewKafkaProducer(cfg.KafkaBrokers, cfg.ClientID, logger)
		case config.BrokerDriverSQS:
			return NewSQSProducer(ctx, SQSOptions{
				QueueURL: cfg.SQSQueueURL,
				Region:   cfg.SQSRegion,
				Endpoint: cfg.SQSEndpoint,
			}, logger)
		case config.BrokerDriverRedis:
			if rdb == nil {
				return nil, fmt.Errorf("broker driver %q requires a redis client", cfg.Driver)
			}
			return NewRedisStreamProducer(rdb, cfg.RedisStreamMaxLen)
		case config.BrokerDriverLog, "":
			return NewLogProducer(logger), nil
		default:
			return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
		}
	}
}
