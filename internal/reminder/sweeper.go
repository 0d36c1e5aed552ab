package reminder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/i18n"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
)

// Notifier delivers reminder notifications. Delivery failures are the
// sweeper's to log, never to propagate.
type Notifier interface {
	NotifyUser(chatID int64, text string) error
	NotifyOperators(text string) error
	NotifyDev(text string) error
}

type Config struct {
	// UserInterval is how long a ticket may sit untouched before the
	// owning user gets a reminder.
	UserInterval time.Duration
	// OperatorInterval is the same for the operator channel; by
	// convention it is shorter, so operators are reminded first.
	OperatorInterval time.Duration
	// EscalationAge is the ticket age past which the dev channel gets a
	// critical notice during the operator pass.
	EscalationAge time.Duration
}

// Sweeper periodically scans the update-time index and emits reminders
// for stale tickets. It is stateless between sweeps: everything it
// knows lives in the store.
type Sweeper struct {
	store    storage.Storage
	notifier Notifier
	catalog  *i18n.Catalog
	cfg      Config
	logger   *zap.Logger

	now func() time.Time
}

func NewSweeper(store storage.Storage, notifier Notifier, catalog *i18n.Catalog, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.EscalationAge <= 0 {
		cfg.EscalationAge = 7 * 24 * time.Hour
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Schedule registers the sweep on c. The caller owns starting and
// stopping the cron instance.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("Reminder sweep failed", zap.Error(err))
			if derr := s.notifier.NotifyDev(fmt.Sprintf("Reminder sweep failed: %v", err)); derr != nil {
				s.logger.Error("Failed to report sweep failure", zap.Error(derr))
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	return nil
}

// Sweep runs one scan: a user pass over tickets untouched for
// UserInterval, then an operator pass over tickets untouched for
// OperatorInterval. Each reminded ticket is touched so it does not fire
// again next sweep; a ticket past both cutoffs is touched in both
// passes, which nets out to one timestamp move. Per-ticket failures are
// logged and skipped; only index scan failures abort the sweep.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	runID := uuid.NewString()[:8]
	log := s.logger.With(zap.String("sweep_id", runID))

	// Both ranges are read before any touching: a ticket past both
	// cutoffs must be seen by both passes, and the user pass's touch
	// would otherwise hide it from the operator scan.
	userCutoff := now.Add(-s.cfg.UserInterval).Unix()
	forUsers, err := s.store.TicketsUpdatedBefore(ctx, userCutoff)
	if err != nil {
		return fmt.Errorf("user pass scan: %w", err)
	}
	operatorCutoff := now.Add(-s.cfg.OperatorInterval).Unix()
	forOperators, err := s.store.TicketsUpdatedBefore(ctx, operatorCutoff)
	if err != nil {
		return fmt.Errorf("operator pass scan: %w", err)
	}

	log.Info("Reminder sweep started",
		zap.Int("stale_for_users", len(forUsers)),
		zap.Int("stale_for_operators", len(forOperators)))

	for _, id := range forUsers {
		s.remindUser(ctx, id, log)
	}
	for _, id := range forOperators {
		s.remindOperators(ctx, id, now, log)
	}
	return nil
}

// loadOpen fetches a ticket for reminding, skipping ones that vanished
// or got resolved since the index was read. A ticket resolved mid-sweep
// may still slip through and receive one reminder; that is accepted.
func (s *Sweeper) loadOpen(ctx context.Context, id int64, log *zap.Logger) *models.Ticket {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		log.Warn("Skipping unreadable ticket", zap.Int64("ticket_id", id), zap.Error(err))
		return nil
	}
	if t.Status == models.StatusResolved {
		return nil
	}
	return t
}

func (s *Sweeper) remindUser(ctx context.Context, id int64, log *zap.Logger) {
	t := s.loadOpen(ctx, id, log)
	if t == nil {
		return
	}

	text := s.catalog.T(t.Lang, "reminder_user", "id", strconv.FormatInt(t.ID, 10))
	if err := s.notifier.NotifyUser(t.UserID, text); err != nil {
		log.Error("Failed to deliver user reminder",
			zap.Int64("ticket_id", t.ID),
			zap.Int64("user_id", t.UserID),
			zap.Error(err))
	}

	if err := s.store.TouchTicket(ctx, t.ID); err != nil {
		log.Error("Failed to touch ticket after reminder",
			zap.Int64("ticket_id", t.ID),
			zap.Error(err))
	}
}

func (s *Sweeper) remindOperators(ctx context.Context, id int64, now time.Time, log *zap.Logger) {
	t := s.loadOpen(ctx, id, log)
	if t == nil {
		return
	}

	user := t.Username
	if user == "" {
		user = strconv.FormatInt(t.UserID, 10)
	}
	summary := s.catalog.T("", "reminder_operator",
		"id", strconv.FormatInt(t.ID, 10),
		"user", user)
	if err := s.notifier.NotifyOperators(summary); err != nil {
		log.Error("Failed to deliver operator reminder",
			zap.Int64("ticket_id", t.ID),
			zap.Error(err))
	}

	if age := now.Sub(time.Unix(t.CreatedAt, 0)); age > s.cfg.EscalationAge {
		critical := fmt.Sprintf("Critical: ticket #%d open for %d days", t.ID, int(age.Hours()/24))
		if err := s.notifier.NotifyDev(critical); err != nil {
			log.Error("Failed to deliver escalation",
				zap.Int64("ticket_id", t.ID),
				zap.Error(err))
		}
	}

	if err := s.store.TouchTicket(ctx, t.ID); err != nil {
		log.Error("Failed to touch ticket after reminder",
			zap.Int64("ticket_id", t.ID),
			zap.Error(err))
	}
}
