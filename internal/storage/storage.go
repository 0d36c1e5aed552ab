package storage

import (
	"context"
	"errors"

	"github.com/xaenox/support-bot/internal/models"
)

var (
	// ErrTicketNotFound is a normal negative result on lookups, not a failure.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrStoreUnavailable wraps any backend transport failure. Callers must
	// not assume partial writes succeeded once they see it.
	ErrStoreUnavailable = errors.New("store unavailable")
)

type Storage interface {
	// CreateTicket allocates the next ticket id and writes a new record with
	// status "new", inserting it into the open-set and the update-time index.
	CreateTicket(ctx context.Context, userID int64, username, lang, content string) (int64, error)

	// GetTicket reads a full record. Content decryption is best-effort: on
	// failure the raw stored value is returned with Ticket.ContentOpaque set.
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)

	// SetStatus updates status and updated_at. Resolved tickets leave the
	// open-set and the update-time index; any other status (re)inserts them.
	SetStatus(ctx context.Context, id int64, status models.Status) error

	// TouchTicket refreshes updated_at and the update-time index score
	// without changing status.
	TouchTicket(ctx context.Context, id int64) error

	// SetForwardedMessage records the operator-channel message id on the ticket.
	SetForwardedMessage(ctx context.Context, id int64, forwardedMsgID int) error

	ListOpenTickets(ctx context.Context) ([]int64, error)
	ListTicketsForUser(ctx context.Context, userID int64) ([]*models.Ticket, error)
	ListTickets(ctx context.Context) ([]*models.Ticket, error)

	// TicketsUpdatedBefore returns ids from the update-time index whose score
	// is at or below cutoff (unix seconds), oldest first.
	TicketsUpdatedBefore(ctx context.Context, cutoff int64) ([]int64, error)

	// RecordMapping links an operator-channel forwarded message to a ticket.
	RecordMapping(ctx context.Context, forwardedMsgID int, ticketID int64) error

	// ResolveTicket looks up the ticket a forwarded message belongs to.
	// A miss is reported as ok=false, not an error.
	ResolveTicket(ctx context.Context, forwardedMsgID int) (ticketID int64, ok bool, err error)

	SetUserLang(ctx context.Context, userID int64, lang string) error
	GetUserLang(ctx context.Context, userID int64) (string, error)

	Close() error
}
