package store

import (
	"context"
	"sort"
	"sync"

	"civreg/internal/notification/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory is a thread-safe in-memory notification store for tests and
// single-node deployments without a database.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.NotificationID]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.NotificationID]*models.Notification)}
}

func (s *InMemory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[n.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *n
	s.byID[n.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, notifID id.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[notifID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *InMemory) ListByRecipient(_ context.Context, recipientID id.UserID) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Notification
	for _, n := range s.byID {
		if n.RecipientID == recipientID {
			clone := *n
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) MarkRead(_ context.Context, notifID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[notifID]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *InMemory) Delete(_ context.Context, notifID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[notifID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, notifID)
	return nil
}
