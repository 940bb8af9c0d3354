package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util"
)

// TicketService coordinates ticket workflows: it applies the role gate,
// mutates through the repository and publishes the resulting events.
type TicketService struct {
	tickets   repository.TicketRepository
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Publisher  events.Publisher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput lists the fields a generic update may change.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
}

// TicketListQuery describes listing filters and paging.
type TicketListQuery struct {
	Page     int
	PageSize int
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	// OwnerID is honoured for ADMIN callers only.
	OwnerID *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		publisher: deps.Publisher,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       clock,
	}
}

// CreateTicket creates a ticket owned by the actor and announces it.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := auth.Check(actor, auth.ActionCreate); err != nil {
		return nil, err
	}
	create := repository.TicketCreate{
		Title:       input.Title,
		Description: input.Description,
		OwnerID:     actor.ID,
		Priority:    input.Priority,
	}
	if err := repository.ValidateCreate(&create); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Create(ctx, create)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			Title:       ticket.Title,
			Description: ticket.Description,
			Priority:    ticket.Priority,
			Status:      ticket.Status,
			CreatedAt:   ticket.CreatedAt,
		},
	})
	return ticket, nil
}

// GetTicket returns a single ticket.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.Actor, id string) (*domain.Ticket, error) {
	if err := auth.Check(actor, auth.ActionRead); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns a page of tickets. A USER only ever sees their own
// tickets; an ADMIN may narrow by owner.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.Actor, query TicketListQuery) ([]domain.Ticket, error) {
	if err := auth.Check(actor, auth.ActionList); err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{
		Status:   query.Status,
		Priority: query.Priority,
	}
	switch {
	case actor.IsAdmin():
		filter.OwnerID = query.OwnerID
	case actor != nil:
		owner := actor.ID
		filter.OwnerID = &owner
	}
	if err := repository.ValidateFilter(filter); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.List(ctx, query.Page, query.PageSize, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateTicket applies a partial update. A status change made through the
// update is announced the same way ChangeStatus announces it.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.Actor, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	if err := auth.Check(actor, auth.ActionUpdate); err != nil {
		return nil, err
	}
	patch := repository.TicketPatch{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
	}
	if err := repository.ValidatePatch(patch); err != nil {
		return nil, err
	}

	prior, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	updated, err := s.tickets.Update(ctx, id, patch)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if statusChanged(prior, updated) {
		s.publishStatusChanged(ctx, actor, prior.Status, updated)
	}
	return updated, nil
}

// ChangeStatus moves a ticket to status. Any status may follow any other.
func (s *TicketService) ChangeStatus(ctx context.Context, actor *domain.Actor, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if err := auth.Check(actor, auth.ActionChangeStatus); err != nil {
		return nil, err
	}
	if status == "" {
		return nil, apperrors.NewValidationError("status is required", nil)
	}
	if err := repository.ValidatePatch(repository.TicketPatch{Status: &status}); err != nil {
		return nil, err
	}

	prior, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	updated, err := s.tickets.SetStatus(ctx, id, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if statusChanged(prior, updated) {
		s.publishStatusChanged(ctx, actor, prior.Status, updated)
	}
	return updated, nil
}

// AssignTicket sets the ticket assignee. Assignment emits no event.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.Actor, id, assignee string) (*domain.Ticket, error) {
	if err := auth.Check(actor, auth.ActionAssign); err != nil {
		return nil, err
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperrors.NewValidationError("assignedTo is required", nil)
	}

	ticket, err := s.tickets.SetAssignee(ctx, id, assignee)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// AddComment attaches a comment authored by the actor and announces it.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.Actor, ticketID, content string) (*domain.Comment, error) {
	if err := auth.Check(actor, auth.ActionComment); err != nil {
		return nil, err
	}
	if err := repository.ValidateComment(content); err != nil {
		return nil, err
	}

	comment, err := s.tickets.AddComment(ctx, ticketID, actor.ID, content)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticketID,
		Actor:    events.ActorFrom(actor),
		Payload: events.CommentAddedPayload{
			CommentID: comment.ID,
			Content:   comment.Content,
			AuthorID:  comment.AuthorID,
			CreatedAt: comment.CreatedAt,
		},
	})
	return comment, nil
}

// ListComments returns a ticket's comments, newest first.
func (s *TicketService) ListComments(ctx context.Context, actor *domain.Actor, ticketID string) ([]domain.Comment, error) {
	if err := auth.Check(actor, auth.ActionListComments); err != nil {
		return nil, err
	}
	comments, err := s.tickets.ListComments(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// DeleteTicket removes a ticket and its comments. Deleting a missing ticket
// succeeds. Deletion emits no event.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.Actor, id string) error {
	if err := auth.Check(actor, auth.ActionDelete); err != nil {
		return err
	}
	if _, err := s.tickets.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Stats returns ticket counts by status and priority.
func (s *TicketService) Stats(ctx context.Context, actor *domain.Actor) (*domain.TicketStats, error) {
	if err := auth.Check(actor, auth.ActionStats); err != nil {
		return nil, err
	}
	stats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// statusChanged compares the status read before a mutation with the one it
// produced. Concurrent writers can make prior stale; the last write wins.
func statusChanged(prior, updated *domain.Ticket) bool {
	return prior.Status != updated.Status
}

func (s *TicketService) publishStatusChanged(ctx context.Context, actor *domain.Actor, old domain.TicketStatus, ticket *domain.Ticket) {
	var actorID string
	if actor != nil {
		actorID = actor.ID
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: old,
			NewStatus: ticket.Status,
			ActorID:   actorID,
			ChangedAt: ticket.UpdatedAt,
		},
	})
}

// publishEvent is best-effort: the mutation has already been committed, so a
// failure is logged and counted but never returned.
func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.metrics.RecordEvent(string(event.Type), false)
		s.logger.Warn("event publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return
	}
	s.metrics.RecordEvent(string(event.Type), true)
}
