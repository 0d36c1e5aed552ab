package reminder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/i18n"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
)

type fakeNotifier struct {
	userMsgs     map[int64][]string
	operatorMsgs []string
	devMsgs      []string

	failUser map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		userMsgs: make(map[int64][]string),
		failUser: make(map[int64]error),
	}
}

func (n *fakeNotifier) NotifyUser(chatID int64, text string) error {
	if err := n.failUser[chatID]; err != nil {
		return err
	}
	n.userMsgs[chatID] = append(n.userMsgs[chatID], text)
	return nil
}

func (n *fakeNotifier) NotifyOperators(text string) error {
	n.operatorMsgs = append(n.operatorMsgs, text)
	return nil
}

func (n *fakeNotifier) NotifyDev(text string) error {
	n.devMsgs = append(n.devMsgs, text)
	return nil
}

func testCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	dir := t.TempDir()
	content := `{
		"reminder_user": "Reminder: your ticket #{id} is still open.",
		"reminder_operator": "Reminder: ticket #{id} is still open. User: {user}"
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(content), 0o644))
	c, err := i18n.Load(dir, "en")
	require.NoError(t, err)
	return c
}

const (
	userInterval     = 24 * time.Hour
	operatorInterval = 12 * time.Hour
)

func newSweeper(t *testing.T) (*Sweeper, *storage.MemoryStorage, *fakeNotifier) {
	t.Helper()
	store := storage.NewMemoryStorage()
	notifier := newFakeNotifier()
	s := NewSweeper(store, notifier, testCatalog(t), Config{
		UserInterval:     userInterval,
		OperatorInterval: operatorInterval,
		EscalationAge:    7 * 24 * time.Hour,
	}, zap.NewNop())
	return s, store, notifier
}

func setClock(s *Sweeper, store *storage.MemoryStorage, at time.Time) {
	s.now = func() time.Time { return at }
	store.Now = func() time.Time { return at }
}

// A ticket idle past the user interval gets exactly one user reminder
// and its timestamp moves to the sweep time.
func TestStaleTicketRemindsUserOnce(t *testing.T) {
	s, store, notifier := newSweeper(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	setClock(s, store, base)
	id, err := store.CreateTicket(ctx, 100, "alice", "en", "help")
	require.NoError(t, err)

	sweepAt := base.Add(25 * time.Hour)
	setClock(s, store, sweepAt)
	require.NoError(t, s.Sweep(ctx))

	require.Len(t, notifier.userMsgs[100], 1)
	assert.Contains(t, notifier.userMsgs[100][0], "#1")

	ticket, err := store.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sweepAt.Unix(), ticket.UpdatedAt)

	// Same sweep again: the touch moved it out of both cutoffs.
	require.NoError(t, s.Sweep(ctx))
	assert.Len(t, notifier.userMsgs[100], 1)
}

// A week-old ticket past the operator cutoff gets an operator summary
// and a dev escalation in the same sweep.
func TestOldTicketEscalatesToDev(t *testing.T) {
	s, store, notifier := newSweeper(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	setClock(s, store, base)
	_, err := store.CreateTicket(ctx, 100, "alice", "en", "help")
	require.NoError(t, err)

	// Keep it out of the user pass: touched recently enough for the
	// user cutoff, stale for the operator cutoff.
	setClock(s, store, base.Add(8*24*time.Hour-13*time.Hour))
	require.NoError(t, store.TouchTicket(ctx, 1))

	sweepAt := base.Add(8 * 24 * time.Hour)
	setClock(s, store, sweepAt)
	require.NoError(t, s.Sweep(ctx))

	assert.Empty(t, notifier.userMsgs[100])
	require.Len(t, notifier.operatorMsgs, 1)
	assert.Contains(t, notifier.operatorMsgs[0], "alice")
	require.Len(t, notifier.devMsgs, 1)
	assert.True(t, strings.HasPrefix(notifier.devMsgs[0], "Critical:"))
}

// A ticket past both cutoffs is reminded on both channels in one sweep.
func TestTicketPastBothCutoffs(t *testing.T) {
	s, store, notifier := newSweeper(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	setClock(s, store, base)
	_, err := store.CreateTicket(ctx, 100, "alice", "en", "help")
	require.NoError(t, err)

	setClock(s, store, base.Add(25*time.Hour))
	require.NoError(t, s.Sweep(ctx))

	assert.Len(t, notifier.userMsgs[100], 1)
	assert.Len(t, notifier.operatorMsgs, 1)
	assert.Empty(t, notifier.devMsgs, "one-day-old ticket must not escalate")
}

// Resolved tickets leave the index and are never reminded.
func TestResolvedTicketIsNeverReminded(t *testing.T) {
	s, store, notifier := newSweeper(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	setClock(s, store, base)
	id, err := store.CreateTicket(ctx, 100, "alice", "en", "help")
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, id, models.StatusResolved))

	setClock(s, store, base.Add(48*time.Hour))
	require.NoError(t, s.Sweep(ctx))

	assert.Empty(t, notifier.userMsgs)
	assert.Empty(t, notifier.operatorMsgs)
	assert.Empty(t, notifier.devMsgs)
}

// One failed delivery must not stop the rest of the sweep, and the
// failed ticket is still touched so it does not wedge the scan.
func TestDeliveryFailureDoesNotAbortSweep(t *testing.T) {
	s, store, notifier := newSweeper(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	setClock(s, store, base)
	id1, err := store.CreateTicket(ctx, 100, "alice", "en", "first")
	require.NoError(t, err)
	_, err = store.CreateTicket(ctx, 200, "bob", "en", "second")
	require.NoError(t, err)

	notifier.failUser[100] = errors.New("chat blocked")

	sweepAt := base.Add(25 * time.Hour)
	setClock(s, store, sweepAt)
	require.NoError(t, s.Sweep(ctx))

	assert.Empty(t, notifier.userMsgs[100])
	assert.Len(t, notifier.userMsgs[200], 1)

	ticket, err := store.GetTicket(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, sweepAt.Unix(), ticket.UpdatedAt)
}
