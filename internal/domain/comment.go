package domain

import "time"

// Comment is a message attached to a ticket. It lives as long as its ticket.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}
