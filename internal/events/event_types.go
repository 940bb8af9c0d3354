package events

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventCommentAdded        EventType = "ticket.comment_added"
)

// AllTypes lists every event type the service emits.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventCommentAdded,
}

// Actor identifies who triggered the event. Both fields are empty for an
// anonymous caller.
type Actor struct {
	ID   string      `json:"id,omitempty" cbor:"id,omitempty"`
	Role domain.Role `json:"role,omitempty" cbor:"role,omitempty"`
}

// ActorFrom converts a request actor into event metadata.
func ActorFrom(actor *domain.Actor) Actor {
	if actor == nil {
		return Actor{}
	}
	return Actor{ID: actor.ID, Role: actor.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id" cbor:"id"`
	Type      EventType `json:"type" cbor:"type"`
	TicketID  string    `json:"ticket_id" cbor:"ticket_id"`
	Actor     Actor     `json:"actor" cbor:"actor"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
	Payload   any       `json:"payload" cbor:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string                `json:"title" cbor:"title"`
	Description string                `json:"description" cbor:"description"`
	Priority    domain.TicketPriority `json:"priority" cbor:"priority"`
	Status      domain.TicketStatus   `json:"status" cbor:"status"`
	CreatedAt   time.Time             `json:"created_at" cbor:"created_at"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status" cbor:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status" cbor:"new_status"`
	ActorID   string              `json:"actor_id,omitempty" cbor:"actor_id,omitempty"`
	ChangedAt time.Time           `json:"changed_at" cbor:"changed_at"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID string    `json:"comment_id" cbor:"comment_id"`
	Content   string    `json:"content" cbor:"content"`
	AuthorID  string    `json:"author_id" cbor:"author_id"`
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
}
