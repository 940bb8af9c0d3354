package broker

import (
	"context"
	"errors"
	"sync"
)

// Message is a single record handed to a broker.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer sends messages to a broker. Send returns once the broker has
// acknowledged the message.
type Producer interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// ProducerFactory builds a connected producer.
type ProducerFactory func(ctx context.Context) (Producer, error)

// ErrHolderClosed is returned by Get after Close.
var ErrHolderClosed = errors.New("broker: producer holder closed")

// Holder owns the process-wide producer. The producer is created on first
// use and reused afterwards. A failed creation is not remembered, so the next
// Get tries again.
type Holder struct {
	mu       sync.Mutex
	factory  ProducerFactory
	producer Producer
	closed   bool
}

// NewHolder returns a holder that builds its producer with factory.
func NewHolder(factory ProducerFactory) *Holder {
	return &Holder{factory: factory}
}

// Get returns the shared producer, creating it if needed.
func (h *Holder) Get(ctx context.Context) (Producer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHolderClosed
	}
	if h.producer != nil {
		return h.producer, nil
	}
	producer, err := h.factory(ctx)
	if err != nil {
		return nil, err
	}
	h.producer = producer
	return producer, nil
}

// Close releases the producer if one was created.
func (h *Holder) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	if h.producer == nil {
		return nil
	}
	err := h.producer.Close()
	h.producer = nil
	return err
}
