package ticket

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
)

// ErrNotOwner is returned when a user tries to resolve a ticket they do
// not own. No mutation happens in that case.
var ErrNotOwner = errors.New("not the ticket owner")

// Engine drives the ticket state machine: creation, the
// new -> in_progress -> resolved transitions, and timestamp touches on
// reply exchanges. It is safe for concurrent use; consistency relies on
// the store's single-key atomicity.
type Engine struct {
	store  storage.Storage
	logger *zap.Logger
}

func NewEngine(store storage.Storage, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Open creates a ticket for an inbound user message.
func (e *Engine) Open(ctx context.Context, userID int64, username, lang, text string) (int64, error) {
	id, err := e.store.CreateTicket(ctx, userID, username, lang, text)
	if err != nil {
		return 0, fmt.Errorf("failed to create ticket: %w", err)
	}
	e.logger.Info("Ticket created",
		zap.Int64("ticket_id", id),
		zap.Int64("user_id", userID))
	return id, nil
}

// AttachForwarded records the operator-channel message the ticket was
// relayed as: the reverse-lookup mapping plus the id on the record.
func (e *Engine) AttachForwarded(ctx context.Context, ticketID int64, forwardedMsgID int) error {
	if err := e.store.RecordMapping(ctx, forwardedMsgID, ticketID); err != nil {
		return fmt.Errorf("failed to record mapping: %w", err)
	}
	if err := e.store.SetForwardedMessage(ctx, ticketID, forwardedMsgID); err != nil {
		return fmt.Errorf("failed to store forwarded message id: %w", err)
	}
	return nil
}

// RouteReply resolves an operator reply to its ticket. A reply whose
// forwarded message is unknown is dropped: ok=false, no error. The
// first reply moves a new ticket to in_progress; any reply to an
// unresolved ticket refreshes its timestamp. Resolved tickets are
// returned untouched so the caller may still relay the text.
func (e *Engine) RouteReply(ctx context.Context, forwardedMsgID int) (*models.Ticket, bool, error) {
	ticketID, ok, err := e.store.ResolveTicket(ctx, forwardedMsgID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve mapping: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	t, err := e.store.GetTicket(ctx, ticketID)
	if errors.Is(err, storage.ErrTicketNotFound) {
		e.logger.Warn("Mapping points at a missing ticket",
			zap.Int64("ticket_id", ticketID),
			zap.Int("forwarded_msg_id", forwardedMsgID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	switch t.Status {
	case models.StatusNew:
		if err := e.store.SetStatus(ctx, ticketID, models.StatusInProgress); err != nil {
			return nil, false, fmt.Errorf("failed to mark ticket in progress: %w", err)
		}
		t.Status = models.StatusInProgress
	case models.StatusInProgress:
		if err := e.store.TouchTicket(ctx, ticketID); err != nil {
			return nil, false, fmt.Errorf("failed to touch ticket: %w", err)
		}
	case models.StatusResolved:
		// Touching would re-insert the ticket into the update-time index
		// and break the index == open-set invariant.
	}
	return t, true, nil
}

// ResolveByUser closes a ticket on the owner's request. A user id
// mismatch yields ErrNotOwner and no mutation.
func (e *Engine) ResolveByUser(ctx context.Context, ticketID, userID int64) (*models.Ticket, error) {
	t, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotOwner
	}
	return e.resolve(ctx, t)
}

// ResolveByOperator closes a ticket from the operator/admin surface.
// Authorization is the admin surface's problem, not this layer's.
func (e *Engine) ResolveByOperator(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	t, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return e.resolve(ctx, t)
}

func (e *Engine) resolve(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	if t.Status == models.StatusResolved {
		return t, nil
	}
	if err := e.store.SetStatus(ctx, t.ID, models.StatusResolved); err != nil {
		return nil, fmt.Errorf("failed to resolve ticket: %w", err)
	}
	t.Status = models.StatusResolved
	e.logger.Info("Ticket resolved", zap.Int64("ticket_id", t.ID))
	return t, nil
}

// Touch refreshes a ticket's timestamp after a relay that bypasses
// RouteReply (e.g. an admin comment).
func (e *Engine) Touch(ctx context.Context, ticketID int64) error {
	return e.store.TouchTicket(ctx, ticketID)
}

func (e *Engine) Get(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	return e.store.GetTicket(ctx, ticketID)
}

func (e *Engine) TicketsForUser(ctx context.Context, userID int64) ([]*models.Ticket, error) {
	return e.store.ListTicketsForUser(ctx, userID)
}

func (e *Engine) List(ctx context.Context) ([]*models.Ticket, error) {
	return e.store.ListTickets(ctx)
}
