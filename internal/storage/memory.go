package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/support-bot/internal/models"
)

// MemoryStorage is an in-process Storage used in tests and local runs.
// It keeps content in the clear and mirrors the redis key layout with
// plain maps.
type MemoryStorage struct {
	mu       sync.RWMutex
	nextID   int64
	tickets  map[int64]*models.Ticket
	open     map[int64]struct{}
	updated  map[int64]int64
	mappings map[int]int64
	langs    map[int64]string

	// Now overrides the clock; tests use it to backdate tickets.
	Now func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tickets:  make(map[int64]*models.Ticket),
		open:     make(map[int64]struct{}),
		updated:  make(map[int64]int64),
		mappings: make(map[int]int64),
		langs:    make(map[int64]string),
	}
}

func (s *MemoryStorage) nowUnix() int64 {
	if s.Now != nil {
		return s.Now().Unix()
	}
	return time.Now().Unix()
}

func (s *MemoryStorage) CreateTicket(ctx context.Context, userID int64, username, lang, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	now := s.nowUnix()

	s.tickets[id] = &models.Ticket{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Lang:      lang,
		Status:    models.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
		Content:   content,
	}
	s.open[id] = struct{}{}
	s.updated[id] = now
	return id, nil
}

func (s *MemoryStorage) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tickets[id]
	if !exists {
		return nil, ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *MemoryStorage) SetStatus(ctx context.Context, id int64, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tickets[id]
	if !exists {
		return ErrTicketNotFound
	}

	now := s.nowUnix()
	t.Status = status
	t.UpdatedAt = now

	if status == models.StatusResolved {
		delete(s.open, id)
		delete(s.updated, id)
	} else {
		s.open[id] = struct{}{}
		s.updated[id] = now
	}
	return nil
}

func (s *MemoryStorage) TouchTicket(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tickets[id]
	if !exists {
		return ErrTicketNotFound
	}

	now := s.nowUnix()
	t.UpdatedAt = now
	s.updated[id] = now
	return nil
}

func (s *MemoryStorage) SetForwardedMessage(ctx context.Context, id int64, forwardedMsgID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tickets[id]
	if !exists {
		return ErrTicketNotFound
	}
	t.ForwardedMsgID = forwardedMsgID
	return nil
}

func (s *MemoryStorage) ListOpenTickets(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.open))
	for id := range s.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStorage) ListTicketsForUser(ctx context.Context, userID int64) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []*models.Ticket
	for _, t := range s.tickets {
		if t.UserID == userID {
			copied := *t
			tickets = append(tickets, &copied)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (s *MemoryStorage) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]*models.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		copied := *t
		tickets = append(tickets, &copied)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (s *MemoryStorage) TicketsUpdatedBefore(ctx context.Context, cutoff int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, score := range s.updated {
		if score <= cutoff {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return s.updated[ids[i]] < s.updated[ids[j]] })
	return ids, nil
}

func (s *MemoryStorage) RecordMapping(ctx context.Context, forwardedMsgID int, ticketID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings[forwardedMsgID] = ticketID
	return nil
}

func (s *MemoryStorage) ResolveTicket(ctx context.Context, forwardedMsgID int) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.mappings[forwardedMsgID]
	return id, exists, nil
}

func (s *MemoryStorage) SetUserLang(ctx context.Context, userID int64, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.langs[userID] = lang
	return nil
}

func (s *MemoryStorage) GetUserLang(ctx context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.langs[userID], nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
