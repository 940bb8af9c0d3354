package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
)

func statusEvent() events.Event {
	return events.Event{
		ID:       "evt-1",
		Type:     events.EventTicketStatusChanged,
		TicketID: "t1",
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusClosed,
			ChangedAt: time.Now(),
		},
	}
}

func TestNotificationService_LogsEachEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), statusEvent()))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Ticket status changed from OPEN to CLOSED", entries[0].ContextMap()["message"])
}

func TestNotificationService_PostsWebhook(t *testing.T) {
	received := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload webhookPayload
		_ = json.Unmarshal(body, &payload)
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{
		WebhookURL:            server.URL,
		WebhookTimeoutSeconds: 2,
	}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), statusEvent()))

	select {
	case payload := <-received:
		assert.Equal(t, "evt-1", payload.Event.ID)
		assert.Equal(t, events.EventTicketStatusChanged, payload.Event.Type)
		assert.Contains(t, payload.Message, "CLOSED")
	case <-time.After(time.Second):
		t.Fatal("webhook not called")
	}
}

func TestNotificationService_WebhookFailureIsLoggedNotReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{WebhookURL: server.URL}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), statusEvent()))

	entries := logs.FilterMessage("webhook delivery failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-1", entries[0].ContextMap()["event_id"])
	assert.Contains(t, entries[0].ContextMap()["error"], "502")
}

func TestNotificationService_WebhookSkippedForExpiredContext(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer server.Close()

	svc := NewNotificationService(nil, zap.NewNop(), config.NotificationConfig{WebhookURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.sendWebhook(ctx, statusEvent(), "msg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, called)
}

func TestWebhookTimeout(t *testing.T) {
	timeout, err := webhookTimeout(context.Background(), 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	timeout, err = webhookTimeout(ctx, 3*time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, timeout, 500*time.Millisecond)
	assert.Greater(t, timeout, time.Duration(0))

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	_, err = webhookTimeout(expired, 3*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview(" short ", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
