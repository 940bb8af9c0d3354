package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util"
)

// stepClock advances by step on every read so timestamps are strictly increasing.
type stepClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{current: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(c.step)
	return c.current
}

func newTestRepo() TicketRepository {
	return NewMemoryTicketRepository(WithClock(newStepClock().Now))
}

func mustCreate(t *testing.T, repo TicketRepository, title, owner string) *domain.Ticket {
	t.Helper()
	ticket, err := repo.Create(context.Background(), TicketCreate{
		Title:       title,
		Description: "description of " + title,
		OwnerID:     owner,
	})
	require.NoError(t, err)
	return ticket
}

func TestMemoryRepository_CreateThenGet(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	for _, priority := range domain.TicketPriorities {
		created, err := repo.Create(ctx, TicketCreate{
			Title:       "Printer on fire",
			Description: "third floor",
			OwnerID:     "u1",
			Priority:    priority,
		})
		require.NoError(t, err)

		fetched, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Printer on fire", fetched.Title)
		assert.Equal(t, "third floor", fetched.Description)
		assert.Equal(t, priority, fetched.Priority)
		assert.Equal(t, domain.TicketStatusOpen, fetched.Status)
		assert.Equal(t, "u1", fetched.OwnerID)
		assert.Nil(t, fetched.Assignee)
		assert.Equal(t, fetched.CreatedAt, fetched.UpdatedAt)
	}
}

func TestMemoryRepository_CreateDefaultsPriority(t *testing.T) {
	ticket := mustCreate(t, newTestRepo(), "A", "u1")
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
}

func TestMemoryRepository_CreateValidation(t *testing.T) {
	repo := newTestRepo()
	tests := []struct {
		name  string
		input TicketCreate
	}{
		{name: "empty title", input: TicketCreate{Description: "d", OwnerID: "u1"}},
		{name: "blank description", input: TicketCreate{Title: "t", Description: "   ", OwnerID: "u1"}},
		{name: "invalid priority", input: TicketCreate{Title: "t", Description: "d", OwnerID: "u1", Priority: "URGENT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(context.Background(), tt.input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestMemoryRepository_GetUnknown(t *testing.T) {
	_, err := newTestRepo().Get(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMemoryRepository_ListOrderingAndPaging(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, mustCreate(t, repo, fmt.Sprintf("ticket-%d", i), "u1").ID)
	}

	seen := map[string]bool{}
	var ordered []string
	for page := 1; page <= 4; page++ {
		tickets, err := repo.List(ctx, page, 3, TicketFilter{})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(tickets), 3)
		for _, ticket := range tickets {
			assert.False(t, seen[ticket.ID], "id %s repeated on page %d", ticket.ID, page)
			seen[ticket.ID] = true
			ordered = append(ordered, ticket.ID)
		}
	}

	require.Len(t, ordered, 7)
	for i := range ordered {
		assert.Equal(t, ids[len(ids)-1-i], ordered[i], "newest first")
	}
}

func TestMemoryRepository_ListTieBreaksByIDDescending(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	counter := 0
	repo := NewMemoryTicketRepository(
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%02d", counter)
		}),
	)
	for i := 0; i < 3; i++ {
		mustCreate(t, repo, "same time", "u1")
	}

	tickets, err := repo.List(context.Background(), 1, 10, TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, []string{"id-03", "id-02", "id-01"}, []string{tickets[0].ID, tickets[1].ID, tickets[2].ID})
}

func TestMemoryRepository_ListFilters(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	a := mustCreate(t, repo, "a", "u1")
	mustCreate(t, repo, "b", "u2")
	_, err := repo.SetStatus(ctx, a.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	owner := "u2"
	tickets, err := repo.List(ctx, 1, 10, TicketFilter{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "u2", tickets[0].OwnerID)

	resolved := domain.TicketStatusResolved
	tickets, err = repo.List(ctx, 1, 10, TicketFilter{Status: &resolved})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, a.ID, tickets[0].ID)

	high := domain.TicketPriorityHigh
	tickets, err = repo.List(ctx, 1, 10, TicketFilter{Priority: &high})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.NotNil(t, tickets)

	bogus := domain.TicketStatus("PENDING")
	_, err = repo.List(ctx, 1, 10, TicketFilter{Status: &bogus})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestMemoryRepository_ListPageBeyondEnd(t *testing.T) {
	repo := newTestRepo()
	mustCreate(t, repo, "only", "u1")

	tickets, err := repo.List(context.Background(), 5, 10, TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestMemoryRepository_UpdatePartial(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	created := mustCreate(t, repo, "old", "u1")

	title := "new"
	updated, err := repo.Update(ctx, created.ID, TicketPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Status, updated.Status)
	assert.Equal(t, created.Priority, updated.Priority)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestMemoryRepository_UpdateEmptyPatchRefreshesUpdatedAt(t *testing.T) {
	repo := newTestRepo()
	created := mustCreate(t, repo, "t", "u1")

	updated, err := repo.Update(context.Background(), created.ID, TicketPatch{})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestMemoryRepository_UpdateValidation(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	created := mustCreate(t, repo, "t", "u1")

	badStatus := domain.TicketStatus("REOPENED")
	_, err := repo.Update(ctx, created.ID, TicketPatch{Status: &badStatus})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	badPriority := domain.TicketPriority("CRITICAL")
	_, err = repo.Update(ctx, created.ID, TicketPatch{Priority: &badPriority})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.UpdatedAt, fetched.UpdatedAt, "rejected update must not touch the row")

	_, err = repo.Update(ctx, "missing", TicketPatch{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMemoryRepository_SetStatusEveryTransition(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	for _, from := range domain.TicketStatuses {
		for _, to := range domain.TicketStatuses {
			ticket := mustCreate(t, repo, "t", "u1")
			_, err := repo.SetStatus(ctx, ticket.ID, from)
			require.NoError(t, err)

			_, err = repo.SetStatus(ctx, ticket.ID, to)
			require.NoError(t, err, "%s -> %s", from, to)

			fetched, err := repo.Get(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Equal(t, to, fetched.Status, "%s -> %s", from, to)
		}
	}
}

func TestMemoryRepository_SetStatusSameValueRefreshesUpdatedAt(t *testing.T) {
	repo := newTestRepo()
	created := mustCreate(t, repo, "t", "u1")

	updated, err := repo.SetStatus(context.Background(), created.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestMemoryRepository_UpdatedAtNeverBeforeCreatedAt(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	call := 0
	repo := NewMemoryTicketRepository(WithClock(func() time.Time {
		now := times[call%len(times)]
		call++
		return now
	}))
	created := mustCreate(t, repo, "t", "u1")

	updated, err := repo.SetAssignee(context.Background(), created.ID, "agent")
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestMemoryRepository_SetAssignee(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	created := mustCreate(t, repo, "t", "u1")

	updated, err := repo.SetAssignee(ctx, created.ID, "adminX")
	require.NoError(t, err)
	require.NotNil(t, updated.Assignee)
	assert.Equal(t, "adminX", *updated.Assignee)

	*updated.Assignee = "tampered"
	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "adminX", *fetched.Assignee, "returned tickets are copies")

	_, err = repo.SetAssignee(ctx, "missing", "adminX")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMemoryRepository_DeleteIsIdempotent(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	ok, err := repo.Delete(ctx, "never-existed")
	require.NoError(t, err)
	assert.True(t, ok)

	created := mustCreate(t, repo, "t", "u1")
	_, err = repo.AddComment(ctx, created.ID, "u1", "hello")
	require.NoError(t, err)

	ok, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Get(ctx, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	comments, err := repo.ListComments(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, comments, "comments are removed with their ticket")

	ok, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryRepository_Comments(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	ticket := mustCreate(t, repo, "t", "u1")

	first, err := repo.AddComment(ctx, ticket.ID, "u1", "first")
	require.NoError(t, err)
	second, err := repo.AddComment(ctx, ticket.ID, "u2", "  second  ")
	require.NoError(t, err)
	assert.Equal(t, "second", second.Content)

	comments, err := repo.ListComments(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, second.ID, comments[0].ID, "newest first")
	assert.Equal(t, first.ID, comments[1].ID)
}

func TestMemoryRepository_AddCommentRejections(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	_, err := repo.AddComment(ctx, "missing", "u1", "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	comments, err := repo.ListComments(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, comments, "no orphan comment is created")

	ticket := mustCreate(t, repo, "t", "u1")
	_, err = repo.AddComment(ctx, ticket.ID, "u1", " ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestMemoryRepository_Stats(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	a := mustCreate(t, repo, "a", "u1")
	mustCreate(t, repo, "b", "u1")
	_, err := repo.SetStatus(ctx, a.ID, domain.TicketStatusClosed)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ByStatus[domain.TicketStatusOpen])
	assert.Equal(t, int64(1), stats.ByStatus[domain.TicketStatusClosed])
	assert.Equal(t, int64(2), stats.ByPriority[domain.TicketPriorityMedium])
}

func TestMemoryRepository_ConcurrentUpdates(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	ticket := mustCreate(t, repo, "t", "u1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := domain.TicketStatuses[i%len(domain.TicketStatuses)]
			_, err := repo.SetStatus(ctx, ticket.ID, status)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	fetched, err := repo.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Status.Valid())
}
