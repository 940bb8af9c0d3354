package broker

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// sqsAPI is the subset of *sqs.Client the producer uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSOptions configures the SQS producer.
type SQSOptions struct {
	QueueURL string
	Region   string
	// Endpoint points the client at a local emulator such as ElasticMQ.
	Endpoint string
}

type sqsProducer struct {
	client   sqsAPI
	queueURL string
	fifo     bool
	logger   *zap.Logger
}

// NewSQSProducer loads AWS configuration and returns a producer for one queue.
// All topics share the queue; the topic travels as a message attribute.
func NewSQSProducer(ctx context.Context, opts SQSOptions, logger *zap.Logger) (Producer, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	var clientOpts []func(*sqs.Options)

	if opts.Endpoint != "" {
		logger.Info("configuring SQS for local endpoint", zap.String("endpoint", opts.Endpoint))
		configOpts = append(configOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	logger.Info("SQS producer created", zap.String("region", opts.Region), zap.String("queue_url", opts.QueueURL))
	return newSQSProducer(sqs.NewFromConfig(cfg, clientOpts...), opts.QueueURL, logger), nil
}

func newSQSProducer(client sqsAPI, queueURL string, logger *zap.Logger) *sqsProducer {
	return &sqsProducer{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		logger:   logger,
	}
}

func (p *sqsProducer) Send(ctx context.Context, msg Message) error {
	attributes := map[string]types.MessageAttributeValue{
		"Topic": {
			DataType:    aws.String("String"),
			StringValue: aws.String(msg.Topic),
		},
	}
	for key, val := range msg.Headers {
		attributes[key] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(val),
		}
	}

	// SQS bodies are text; binary encodings travel base64 encoded.
	body := string(msg.Value)
	if msg.Headers[HeaderContentType] != (jsonCodec{}).ContentType() {
		body = base64.StdEncoding.EncodeToString(msg.Value)
		attributes["ContentTransferEncoding"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String("base64"),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: attributes,
	}
	if p.fifo {
		input.MessageGroupId = aws.String(msg.Key)
		if id := msg.Headers[HeaderEventID]; id != "" {
			input.MessageDeduplicationId = aws.String(id)
		}
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs send %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *sqsProducer) Close() error { return nil }
