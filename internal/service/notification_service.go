package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	msg := "A new ticket has been created"
	if payload, ok := event.Payload.(events.TicketCreatedPayload); ok {
		msg = fmt.Sprintf("New ticket %q created with %s priority", payload.Title, payload.Priority)
	}
	return n.notify(ctx, event, msg)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	msg := "Ticket status changed"
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		msg = fmt.Sprintf("Ticket status changed from %s to %s", payload.OldStatus, payload.NewStatus)
	}
	return n.notify(ctx, event, msg)
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	msg := "A new comment was added"
	if payload, ok := event.Payload.(events.CommentAddedPayload); ok {
		msg = fmt.Sprintf("New comment from %s: %s", payload.AuthorID, preview(payload.Content, 80))
	}
	return n.notify(ctx, event, msg)
}

// notify never fails the dispatch: webhook trouble is reported here and kept
// apart from broker publish outcomes.
func (n *NotificationService) notify(ctx context.Context, event events.Event, message string) error {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("message", message))
	if err := n.sendWebhook(ctx, event, message); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}

type webhookPayload struct {
	Message string       `json:"message"`
	Event   events.Event `json:"event"`
}

// sendWebhook posts the notification when a webhook URL is configured. Any
// non-2xx answer counts as a failure.
func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event, message string) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	timeout, err := webhookTimeout(ctx, n.cfg.WebhookTimeout())
	if err != nil {
		return fmt.Errorf("webhook skipped: %w", err)
	}

	agent := fiber.Post(url).
		JSON(webhookPayload{Message: message, Event: event}).
		Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook delivery: %w", errs[0])
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %d", status)
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int("status", status))
	return nil
}

// webhookTimeout shortens the configured timeout to the context deadline.
// The fiber agent has no context support, so the deadline is all it can
// honour.
func webhookTimeout(ctx context.Context, configured time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if remaining < configured {
			return remaining, nil
		}
	}
	return configured, nil
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "..."
}
