// Package memory is the in-memory audit store used by unit tests and dev
// mode. It intentionally favors clarity over performance.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"civreg/internal/audit"
	"civreg/internal/platform/kafka"
	id "civreg/pkg/domain"
)

type Store struct {
	mu     sync.RWMutex
	events []audit.Event
	outbox []outboxRow
	nextID int64
}

type outboxRow struct {
	entry     audit.OutboxEntry
	published bool
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.outbox = append(s.outbox, outboxRow{entry: audit.OutboxEntry{
		ID:      s.nextID,
		Topic:   kafka.TopicAudit,
		Key:     event.CertificateID.String(),
		Payload: payload,
	}})
	s.nextID++
	return nil
}

func (s *Store) ListByCertificate(_ context.Context, certID id.CertificateID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].CertificateID == certID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *Store) ListByActor(_ context.Context, actorID id.UserID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ActorID == actorID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *Store) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *Store) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, row := range s.outbox {
		if !row.published {
			out = append(out, row.entry)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range s.outbox {
		if set[s.outbox[i].entry.ID] {
			s.outbox[i].published = true
		}
	}
	return nil
}
