package dto

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *domain.TicketStatus   `json:"status"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	OwnerID     string                `json:"ownerId"`
	AssignedTo  *string               `json:"assignedTo"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// CommentResponse represents a ticket comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatsResponse carries ticket counts.
type StatsResponse struct {
	Total      int64                           `json:"total"`
	ByStatus   map[domain.TicketStatus]int64   `json:"byStatus"`
	ByPriority map[domain.TicketPriority]int64 `json:"byPriority"`
}

// PageMeta describes the returned page.
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// NewTicketResponse converts a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		OwnerID:     t.OwnerID,
		AssignedTo:  t.Assignee,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewCommentResponse converts a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// NewStatsResponse converts stats, reporting zero for every enumerated value
// that has no tickets.
func NewStatsResponse(s *domain.TicketStats) StatsResponse {
	resp := StatsResponse{
		ByStatus:   make(map[domain.TicketStatus]int64, len(domain.TicketStatuses)),
		ByPriority: make(map[domain.TicketPriority]int64, len(domain.TicketPriorities)),
	}
	for _, status := range domain.TicketStatuses {
		resp.ByStatus[status] = s.ByStatus[status]
		resp.Total += s.ByStatus[status]
	}
	for _, priority := range domain.TicketPriorities {
		resp.ByPriority[priority] = s.ByPriority[priority]
	}
	return resp
}
