package broker

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.SendMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSQSProducer_StandardQueueJSON(t *testing.T) {
	client := new(mockSQS)
	client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		return aws.ToString(in.MessageBody) == `{"a":1}` &&
			aws.ToString(in.MessageAttributes["Topic"].StringValue) == "ticket.created" &&
			in.MessageGroupId == nil
	})).Return(&sqs.SendMessageOutput{}, nil)

	producer := newSQSProducer(client, "https://sqs.local/000/tickets", zap.NewNop())
	err := producer.Send(context.Background(), Message{
		Topic:   "ticket.created",
		Key:     "t1",
		Value:   []byte(`{"a":1}`),
		Headers: map[string]string{HeaderContentType: "application/json"},
	})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSQSProducer_FIFOQueueBinaryBody(t *testing.T) {
	value := []byte{0xa1, 0x61, 0x61, 0x01}
	client := new(mockSQS)
	client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		return aws.ToString(in.MessageBody) == base64.StdEncoding.EncodeToString(value) &&
			aws.ToString(in.MessageGroupId) == "t1" &&
			aws.ToString(in.MessageDeduplicationId) == "evt-9" &&
			aws.ToString(in.MessageAttributes["ContentTransferEncoding"].StringValue) == "base64"
	})).Return(&sqs.SendMessageOutput{}, nil)

	producer := newSQSProducer(client, "https://sqs.local/000/tickets.fifo", zap.NewNop())
	err := producer.Send(context.Background(), Message{
		Topic: "ticket.created",
		Key:   "t1",
		Value: value,
		Headers: map[string]string{
			HeaderContentType: "application/cbor",
			HeaderEventID:     "evt-9",
		},
	})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

type fakeKafkaWriter struct {
	written []kafka.Message
}

func (w *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error { return nil }

func TestKafkaProducer_Send(t *testing.T) {
	writer := &fakeKafkaWriter{}
	producer := &kafkaProducer{writer: writer, logger: zap.NewNop()}

	err := producer.Send(context.Background(), Message{
		Topic:   "ticket.created",
		Key:     "t1",
		Value:   []byte("{}"),
		Headers: map[string]string{HeaderEventID: "evt-1"},
	})

	require.NoError(t, err)
	require.Len(t, writer.written, 1)
	assert.Equal(t, "ticket.created", writer.written[0].Topic)
	assert.Equal(t, []byte("t1"), writer.written[0].Key)
	assert.Equal(t, []kafka.Header{{Key: HeaderEventID, Value: []byte("evt-1")}}, writer.written[0].Headers)
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(nil, "client", zap.NewNop())
	assert.Error(t, err)
}

func TestLogProducer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	producer := NewLogProducer(zap.New(core))

	require.NoError(t, producer.Send(context.Background(), Message{
		Topic:   "ticket.created",
		Key:     "t1",
		Value:   []byte(`{"id":"evt"}`),
		Headers: map[string]string{HeaderContentType: "application/json"},
	}))

	entries := logs.FilterMessage("event published").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ticket.created", entries[0].ContextMap()["topic"])
}

func TestProducerFactory(t *testing.T) {
	factory := NewProducerFactory(config.BrokerConfig{Driver: config.BrokerDriverLog}, nil, zap.NewNop())
	producer, err := factory(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &logProducer{}, producer)

	factory = NewProducerFactory(config.BrokerConfig{Driver: config.BrokerDriverRedis}, nil, zap.NewNop())
	_, err = factory(context.Background())
	assert.Error(t, err)

	factory = NewProducerFactory(config.BrokerConfig{Driver: "smoke-signal"}, nil, zap.NewNop())
	_, err = factory(context.Background())
	assert.Error(t, err)
}
