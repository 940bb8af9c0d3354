package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProducer keeps every message it was asked to send.
type recordingProducer struct {
	mu     sync.Mutex
	sent   []Message
	err    error
	closed bool
}

func (p *recordingProducer) Send(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingProducer) messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message{}, p.sent...)
}

func TestHolder_CreatesOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	producer := &recordingProducer{}
	holder := NewHolder(func(context.Context) (Producer, error) {
		calls.Add(1)
		return producer, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := holder.Get(context.Background())
			assert.NoError(t, err)
			assert.Same(t, producer, got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestHolder_RetriesAfterFailedInit(t *testing.T) {
	attempts := 0
	holder := NewHolder(func(context.Context) (Producer, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("broker down")
		}
		return &recordingProducer{}, nil
	})

	_, err := holder.Get(context.Background())
	require.Error(t, err)

	got, err := holder.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, 2, attempts)
}

func TestHolder_Close(t *testing.T) {
	producer := &recordingProducer{}
	holder := NewHolder(func(context.Context) (Producer, error) { return producer, nil })

	require.NoError(t, holder.Close(), "closing before first use is fine")

	holder = NewHolder(func(context.Context) (Producer, error) { return producer, nil })
	_, err := holder.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, holder.Close())
	assert.True(t, producer.closed)

	_, err = holder.Get(context.Background())
	assert.ErrorIs(t, err, ErrHolderClosed)
}
