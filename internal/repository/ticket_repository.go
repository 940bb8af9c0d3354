package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util"
)

// Page size bounds applied by List.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TicketCreate carries the fields accepted at ticket creation.
type TicketCreate struct {
	Title       string
	Description string
	OwnerID     string
	Priority    domain.TicketPriority
}

// TicketPatch lists the fields a generic update may change. Nil fields are
// left untouched.
type TicketPatch struct {
	Title       *string
	Description *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
}

// TicketFilter narrows List results.
type TicketFilter struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	OwnerID  *string
}

// TicketRepository owns ticket and comment persistence.
type TicketRepository interface {
	Create(ctx context.Context, input TicketCreate) (*domain.Ticket, error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, page, pageSize int, filter TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error)
	SetStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	SetAssignee(ctx context.Context, id, assignee string) (*domain.Ticket, error)
	// Delete reports success even when the ticket does not exist.
	Delete(ctx context.Context, id string) (bool, error)
	AddComment(ctx context.Context, ticketID, authorID, content string) (*domain.Comment, error)
	ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

// ValidateCreate checks creation input and applies the default priority.
func ValidateCreate(input *TicketCreate) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" || input.Description == "" {
		return apperrors.NewValidationError("title and description are required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return invalidPriority(input.Priority)
	}
	return nil
}

// ValidatePatch checks that every supplied field holds an acceptable value.
func ValidatePatch(patch TicketPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperrors.NewValidationError("title cannot be empty", nil)
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return apperrors.NewValidationError("description cannot be empty", nil)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return invalidStatus(*patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return invalidPriority(*patch.Priority)
	}
	return nil
}

// ValidateFilter rejects filter values outside the enumerations.
func ValidateFilter(filter TicketFilter) error {
	if filter.Status != nil && !filter.Status.Valid() {
		return invalidStatus(*filter.Status)
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return invalidPriority(*filter.Priority)
	}
	return nil
}

// ValidateComment checks comment content.
func ValidateComment(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.NewValidationError("content is required", nil)
	}
	return nil
}

// NormalizePage clamps page and pageSize into the supported range.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func invalidStatus(status domain.TicketStatus) error {
	return apperrors.NewValidationError("invalid status", map[string]any{
		"status":  status,
		"allowed": domain.TicketStatuses,
	})
}

func invalidPriority(priority domain.TicketPriority) error {
	return apperrors.NewValidationError("invalid priority", map[string]any{
		"priority": priority,
		"allowed":  domain.TicketPriorities,
	})
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

const ticketColumns = `id, title, description, status, priority, owner_id, assignee, created_at, updated_at`

type postgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &postgresTicketRepository{pool: pool}
}

func (r *postgresTicketRepository) Create(ctx context.Context, input TicketCreate) (*domain.Ticket, error) {
	if err := ValidateCreate(&input); err != nil {
		return nil, err
	}
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		OwnerID:     input.OwnerID,
	}
	const query = `
        INSERT INTO tickets (id, title, description, status, priority, owner_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	if err := r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.OwnerID,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return ticket, nil
}

func (r *postgresTicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticketNotFound(id)
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *postgresTicketRepository) List(ctx context.Context, page, pageSize int, filter TicketFilter) ([]domain.Ticket, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	query, args := buildListQuery(page, pageSize, filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *postgresTicketRepository) Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}
	query, args := buildUpdateQuery(id, patch)
	return r.updateOne(ctx, id, query, args)
}

func (r *postgresTicketRepository) SetStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, invalidStatus(status)
	}
	query, args := buildUpdateQuery(id, TicketPatch{Status: &status})
	return r.updateOne(ctx, id, query, args)
}

func (r *postgresTicketRepository) SetAssignee(ctx context.Context, id, assignee string) (*domain.Ticket, error) {
	query := `UPDATE tickets SET assignee=$1, updated_at=GREATEST(NOW(), created_at) WHERE id=$2 RETURNING ` + ticketColumns
	return r.updateOne(ctx, id, query, []any{assignee, id})
}

func (r *postgresTicketRepository) updateOne(ctx context.Context, id, query string, args []any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticketNotFound(id)
		}
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	return ticket, nil
}

func (r *postgresTicketRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id); err != nil {
		return false, fmt.Errorf("delete ticket: %w", err)
	}
	return true, nil
}

func (r *postgresTicketRepository) Stats(ctx context.Context) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int64),
		ByPriority: make(map[domain.TicketPriority]int64),
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var priority domain.TicketPriority
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		stats.ByPriority[priority] = count
	}
	return stats, rows.Err()
}

func buildListQuery(page, pageSize int, filter TicketFilter) (string, []any) {
	page, pageSize = NormalizePage(page, pageSize)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), pageSize, (page-1)*pageSize)
	return query, args
}

// buildUpdateQuery always refreshes updated_at, even for an empty patch.
// GREATEST keeps updated_at from falling behind created_at under clock skew.
func buildUpdateQuery(id string, patch TicketPatch) (string, []any) {
	sets := []string{}
	args := []any{}

	if patch.Title != nil {
		args = append(args, strings.TrimSpace(*patch.Title))
		sets = append(sets, fmt.Sprintf("title=$%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, strings.TrimSpace(*patch.Description))
		sets = append(sets, fmt.Sprintf("description=$%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.Priority != nil {
		args = append(args, *patch.Priority)
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	sets = append(sets, "updated_at=GREATEST(NOW(), created_at)")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)
	return query, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.OwnerID,
		&ticket.Assignee,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
