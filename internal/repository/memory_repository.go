package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// MemoryOption customizes the in-memory repository.
type MemoryOption func(*memoryTicketRepository)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *memoryTicketRepository) {
		r.now = now
	}
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(next func() string) MemoryOption {
	return func(r *memoryTicketRepository) {
		r.nextID = next
	}
}

// memoryTicketRepository keeps tickets and comments in process memory. A
// single mutex serializes writers, which gives each call the atomicity a
// database row lock would.
type memoryTicketRepository struct {
	mu       sync.RWMutex
	tickets  map[string]domain.Ticket
	comments map[string][]domain.Comment
	now      func() time.Time
	nextID   func() string
}

// NewMemoryTicketRepository builds an empty in-memory repository.
func NewMemoryTicketRepository(opts ...MemoryOption) TicketRepository {
	r := &memoryTicketRepository{
		tickets:  make(map[string]domain.Ticket),
		comments: make(map[string][]domain.Comment),
		now:      time.Now,
		nextID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *memoryTicketRepository) Create(_ context.Context, input TicketCreate) (*domain.Ticket, error) {
	if err := ValidateCreate(&input); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	ticket := domain.Ticket{
		ID:          r.nextID(),
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		OwnerID:     input.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket
	return cloneTicket(ticket), nil
}

func (r *memoryTicketRepository) Get(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ticketNotFound(id)
	}
	return cloneTicket(ticket), nil
}

func (r *memoryTicketRepository) List(_ context.Context, page, pageSize int, filter TicketFilter) ([]domain.Ticket, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	page, pageSize = NormalizePage(page, pageSize)

	r.mu.RLock()
	matched := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
			continue
		}
		matched = append(matched, ticket)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	result := make([]domain.Ticket, 0, end-offset)
	for _, ticket := range matched[offset:end] {
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func (r *memoryTicketRepository) Update(_ context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}
	return r.mutate(id, func(ticket *domain.Ticket) {
		if patch.Title != nil {
			ticket.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			ticket.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Status != nil {
			ticket.Status = *patch.Status
		}
		if patch.Priority != nil {
			ticket.Priority = *patch.Priority
		}
	})
}

func (r *memoryTicketRepository) SetStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, invalidStatus(status)
	}
	return r.mutate(id, func(ticket *domain.Ticket) {
		ticket.Status = status
	})
}

func (r *memoryTicketRepository) SetAssignee(_ context.Context, id, assignee string) (*domain.Ticket, error) {
	return r.mutate(id, func(ticket *domain.Ticket) {
		ticket.Assignee = &assignee
	})
}

// mutate applies change under the write lock and refreshes UpdatedAt.
func (r *memoryTicketRepository) mutate(id string, change func(*domain.Ticket)) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ticketNotFound(id)
	}
	change(&ticket)
	ticket.UpdatedAt = r.now().UTC()
	if ticket.UpdatedAt.Before(ticket.CreatedAt) {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	r.tickets[id] = ticket
	return cloneTicket(ticket), nil
}

func (r *memoryTicketRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, id)
	delete(r.comments, id)
	return true, nil
}

func (r *memoryTicketRepository) AddComment(_ context.Context, ticketID, authorID, content string) (*domain.Comment, error) {
	if err := ValidateComment(content); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticketID]; !ok {
		return nil, ticketNotFound(ticketID)
	}
	comment := domain.Comment{
		ID:        r.nextID(),
		TicketID:  ticketID,
		AuthorID:  authorID,
		Content:   strings.TrimSpace(content),
		CreatedAt: r.now().UTC(),
	}
	r.comments[ticketID] = append(r.comments[ticketID], comment)
	return &comment, nil
}

func (r *memoryTicketRepository) ListComments(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.RLock()
	result := append([]domain.Comment{}, r.comments[ticketID]...)
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *memoryTicketRepository) Stats(_ context.Context) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int64),
		ByPriority: make(map[domain.TicketPriority]int64),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ticket := range r.tickets {
		stats.ByStatus[ticket.Status]++
		stats.ByPriority[ticket.Priority]++
	}
	return stats, nil
}

func cloneTicket(ticket domain.Ticket) *domain.Ticket {
	if ticket.Assignee != nil {
		assignee := *ticket.Assignee
		ticket.Assignee = &assignee
	}
	return &ticket
}
