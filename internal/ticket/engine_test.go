package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
)

func newEngine(t *testing.T) (*Engine, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return NewEngine(store, zap.NewNop()), store
}

// User sends a message, the forwarded copy is mapped, an operator reply
// arrives: the ticket must move to in_progress.
func TestOperatorReplyMovesNewTicketToInProgress(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	id, err := e.Open(ctx, 100, "alice", "en", "Help me")
	require.NoError(t, err)
	require.NoError(t, e.AttachForwarded(ctx, id, 555))

	ticket, ok, err := e.RouteReply(ctx, 555)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, ticket.ID)
	assert.Equal(t, models.StatusInProgress, ticket.Status)

	stored, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestRouteReplyUnknownMessageIsDropped(t *testing.T) {
	e, _ := newEngine(t)

	ticket, ok, err := e.RouteReply(context.Background(), 12345)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, ticket)
}

func TestRouteReplyTouchesInProgressTicket(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	store.Now = func() time.Time { return base }

	id, err := e.Open(ctx, 100, "alice", "en", "Help me")
	require.NoError(t, err)
	require.NoError(t, e.AttachForwarded(ctx, id, 555))

	_, _, err = e.RouteReply(ctx, 555)
	require.NoError(t, err)

	store.Now = func() time.Time { return base.Add(time.Hour) }
	_, ok, err := e.RouteReply(ctx, 555)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, base.Add(time.Hour).Unix(), stored.UpdatedAt)
}

func TestRouteReplyToResolvedTicketDoesNotReopen(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id, err := e.Open(ctx, 100, "alice", "en", "Help me")
	require.NoError(t, err)
	require.NoError(t, e.AttachForwarded(ctx, id, 555))
	_, err = e.ResolveByUser(ctx, id, 100)
	require.NoError(t, err)

	ticket, ok, err := e.RouteReply(ctx, 555)
	require.NoError(t, err)
	require.True(t, ok, "reply should still be relayable")
	assert.Equal(t, models.StatusResolved, ticket.Status)

	open, err := store.ListOpenTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "resolved ticket must not re-enter the open set")

	indexed, err := store.TicketsUpdatedBefore(ctx, time.Now().Unix()+1)
	require.NoError(t, err)
	assert.Empty(t, indexed)
}

func TestResolveByUserRequiresOwnership(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	id, err := e.Open(ctx, 100, "alice", "en", "Help me")
	require.NoError(t, err)

	_, err = e.ResolveByUser(ctx, id, 200)
	assert.ErrorIs(t, err, ErrNotOwner)

	stored, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, stored.Status, "failed resolve must not mutate")
}

func TestResolveByUserMissingTicket(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.ResolveByUser(context.Background(), 999, 100)
	assert.ErrorIs(t, err, storage.ErrTicketNotFound)
}

func TestResolveIsTerminalAndIdempotent(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id, err := e.Open(ctx, 100, "alice", "en", "Help me")
	require.NoError(t, err)

	first, err := e.ResolveByUser(ctx, id, 100)
	require.NoError(t, err)
	second, err := e.ResolveByOperator(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, first.Status)
	assert.Equal(t, models.StatusResolved, second.Status)

	open, err := store.ListOpenTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestResolveByOperatorFromNew(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	id, err := e.Open(ctx, 100, "alice", "en", "Help me")
	require.NoError(t, err)

	ticket, err := e.ResolveByOperator(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, ticket.Status)
}
