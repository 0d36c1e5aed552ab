package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/crypto"
	"github.com/xaenox/support-bot/internal/models"
)

// Key layout in redis.
const (
	keyNextTicket = "ticket:next"
	keyOpenSet    = "tickets:open"
	keyUpdated    = "tickets:updated"
)

func ticketKey(id int64) string       { return "ticket:" + strconv.FormatInt(id, 10) }
func mappingKey(msgID int) string     { return "mapping:forwarded:" + strconv.Itoa(msgID) }
func userLangKey(userID int64) string { return "user:lang:" + strconv.FormatInt(userID, 10) }

type RedisConfig struct {
	Host      string
	Port      int
	DB        int
	Password  string
	OpTimeout time.Duration
}

// RedisStorage keeps all ticket state in a shared redis instance.
// Correctness relies on redis's single-key atomicity; there are no
// cross-key transactions, and a failure between two index writes is
// healed by the next status write on the same ticket.
type RedisStorage struct {
	client    *redis.Client
	cipher    *crypto.Cipher
	logger    *zap.Logger
	opTimeout time.Duration

	now func() time.Time
}

func NewRedisStorage(cfg RedisConfig, cipher *crypto.Cipher, logger *zap.Logger) (*RedisStorage, error) {
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{
		client:    client,
		cipher:    cipher,
		logger:    logger,
		opTimeout: opTimeout,
		now:       time.Now,
	}, nil
}

func (s *RedisStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *RedisStorage) wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

func (s *RedisStorage) CreateTicket(ctx context.Context, userID int64, username, lang, content string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.client.Incr(ctx, keyNextTicket).Result()
	if err != nil {
		return 0, s.wrap("allocate ticket id", err)
	}

	now := s.now().Unix()
	t := &models.Ticket{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Lang:      lang,
		Status:    models.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
		Content:   s.cipher.Seal(content),
	}

	if err := s.client.HSet(ctx, ticketKey(id), t.ToHash()).Err(); err != nil {
		return 0, s.wrap("write ticket", err)
	}
	if err := s.client.SAdd(ctx, keyOpenSet, id).Err(); err != nil {
		return 0, s.wrap("add to open set", err)
	}
	if err := s.client.ZAdd(ctx, keyUpdated, redis.Z{Score: float64(now), Member: id}).Err(); err != nil {
		return 0, s.wrap("index ticket", err)
	}
	return id, nil
}

func (s *RedisStorage) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	h, err := s.client.HGetAll(ctx, ticketKey(id)).Result()
	if err != nil {
		return nil, s.wrap("read ticket", err)
	}
	if len(h) == 0 {
		return nil, ErrTicketNotFound
	}

	t := models.TicketFromHash(h)
	plain, ok := s.cipher.Open(t.Content)
	if !ok {
		s.logger.Warn("Failed to decrypt ticket content, returning stored value",
			zap.Int64("ticket_id", id))
	}
	t.Content = plain
	t.ContentOpaque = !ok
	return t, nil
}

func (s *RedisStorage) SetStatus(ctx context.Context, id int64, status models.Status) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().Unix()
	err := s.client.HSet(ctx, ticketKey(id),
		models.FieldStatus, string(status),
		models.FieldUpdatedAt, strconv.FormatInt(now, 10),
	).Err()
	if err != nil {
		return s.wrap("write status", err)
	}

	if status == models.StatusResolved {
		if err := s.client.SRem(ctx, keyOpenSet, id).Err(); err != nil {
			return s.wrap("remove from open set", err)
		}
		if err := s.client.ZRem(ctx, keyUpdated, id).Err(); err != nil {
			return s.wrap("remove from index", err)
		}
		return nil
	}

	if err := s.client.SAdd(ctx, keyOpenSet, id).Err(); err != nil {
		return s.wrap("add to open set", err)
	}
	if err := s.client.ZAdd(ctx, keyUpdated, redis.Z{Score: float64(now), Member: id}).Err(); err != nil {
		return s.wrap("index ticket", err)
	}
	return nil
}

func (s *RedisStorage) TouchTicket(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().Unix()
	if err := s.client.HSet(ctx, ticketKey(id), models.FieldUpdatedAt, strconv.FormatInt(now, 10)).Err(); err != nil {
		return s.wrap("touch ticket", err)
	}
	if err := s.client.ZAdd(ctx, keyUpdated, redis.Z{Score: float64(now), Member: id}).Err(); err != nil {
		return s.wrap("touch index", err)
	}
	return nil
}

func (s *RedisStorage) SetForwardedMessage(ctx context.Context, id int64, forwardedMsgID int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.client.HSet(ctx, ticketKey(id), models.FieldForwardedMsgID, strconv.Itoa(forwardedMsgID)).Err()
	if err != nil {
		return s.wrap("write forwarded message id", err)
	}
	return nil
}

func (s *RedisStorage) ListOpenTickets(ctx context.Context) ([]int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	members, err := s.client.SMembers(ctx, keyOpenSet).Result()
	if err != nil {
		return nil, s.wrap("list open tickets", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// scanTickets walks every ticket hash. Linear scan is acceptable at this
// scale; there is no pagination guarantee.
func (s *RedisStorage) scanTickets(ctx context.Context, keep func(*models.Ticket) bool) ([]*models.Ticket, error) {
	keys, err := s.client.Keys(ctx, "ticket:*").Result()
	if err != nil {
		return nil, s.wrap("scan tickets", err)
	}

	var tickets []*models.Ticket
	for _, key := range keys {
		if key == keyNextTicket {
			continue
		}
		h, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, s.wrap("read ticket", err)
		}
		if len(h) == 0 {
			continue
		}
		t := models.TicketFromHash(h)
		plain, ok := s.cipher.Open(t.Content)
		t.Content = plain
		t.ContentOpaque = !ok
		if keep(t) {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

func (s *RedisStorage) ListTicketsForUser(ctx context.Context, userID int64) ([]*models.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.scanTickets(ctx, func(t *models.Ticket) bool { return t.UserID == userID })
}

func (s *RedisStorage) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.scanTickets(ctx, func(*models.Ticket) bool { return true })
}

func (s *RedisStorage) TicketsUpdatedBefore(ctx context.Context, cutoff int64) ([]int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	members, err := s.client.ZRangeByScore(ctx, keyUpdated, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, s.wrap("query update-time index", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStorage) RecordMapping(ctx context.Context, forwardedMsgID int, ticketID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, mappingKey(forwardedMsgID), ticketID, 0).Err(); err != nil {
		return s.wrap("record mapping", err)
	}
	return nil
}

func (s *RedisStorage) ResolveTicket(ctx context.Context, forwardedMsgID int) (int64, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	v, err := s.client.Get(ctx, mappingKey(forwardedMsgID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.wrap("resolve mapping", err)
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

func (s *RedisStorage) SetUserLang(ctx context.Context, userID int64, lang string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, userLangKey(userID), lang, 0).Err(); err != nil {
		return s.wrap("write user language", err)
	}
	return nil
}

func (s *RedisStorage) GetUserLang(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	v, err := s.client.Get(ctx, userLangKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", s.wrap("read user language", err)
	}
	return v, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
