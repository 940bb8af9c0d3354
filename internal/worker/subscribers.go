package worker

import (
	"github.com/spec-kit/ticket-tracker/internal/broker"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

// StartEventSubscribers attaches the broker publisher and the notification
// sink to the dispatcher. Either may be nil.
func StartEventSubscribers(dispatcher events.Dispatcher, publisher *broker.EventPublisher, notifications *service.NotificationService) {
	if dispatcher == nil {
		return
	}
	if publisher != nil {
		publisher.Attach(dispatcher)
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
}
