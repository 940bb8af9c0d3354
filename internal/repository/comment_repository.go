package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

const foreignKeyViolation = "23503"

// AddComment inserts only when the ticket exists; a ticket deleted between
// the existence check and the insert surfaces as a foreign key violation.
func (r *postgresTicketRepository) AddComment(ctx context.Context, ticketID, authorID, content string) (*domain.Comment, error) {
	if err := ValidateComment(content); err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TicketID: ticketID,
		AuthorID: authorID,
		Content:  strings.TrimSpace(content),
	}
	const query = `
        INSERT INTO ticket_comments (id, ticket_id, author_id, content)
        SELECT $1,$2,$3,$4 WHERE EXISTS (SELECT 1 FROM tickets WHERE id=$2)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.AuthorID,
		comment.Content,
	).Scan(&comment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation) {
			return nil, ticketNotFound(ticketID)
		}
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func (r *postgresTicketRepository) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
