// Package store holds the certificate persistence implementations. The
// in-memory variant backs unit tests and dev mode; postgres is production.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"civreg/internal/certificate/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store. Execute holds the store lock across
// validate and mutate so concurrent transitions on one certificate serialize.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.CertificateID]*models.Certificate
	numbers map[string]id.CertificateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.CertificateID]*models.Certificate),
		numbers: make(map[string]id.CertificateID),
	}
}

// Create inserts a new certificate, enforcing number uniqueness.
func (s *InMemory) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(cert.Number)
	if _, exists := s.numbers[key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[cert.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *cert
	s.byID[cert.ID] = &clone
	s.numbers[key] = cert.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *cert
	return &clone, nil
}

func (s *InMemory) FindByNumber(_ context.Context, number string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certID, ok := s.numbers[strings.ToUpper(number)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[certID]
	return &clone, nil
}

func (s *InMemory) ListByOwner(_ context.Context, ownerID id.UserID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, cert := range s.byID {
		if cert.OwnerID == ownerID {
			clone := *cert
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) ListByStatus(_ context.Context, status models.Status, limit int) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, cert := range s.byID {
		if cert.Status == status {
			clone := *cert
			out = append(out, &clone)
		}
	}
	// Oldest first, matching the review queue ordering of the SQL store.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Execute loads the certificate, runs validate, applies mutate, and persists
// the result, all under the store lock. Returning an error from validate
// aborts without mutating.
func (s *InMemory) Execute(
	_ context.Context,
	certID id.CertificateID,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.byID[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := *cert
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.byID[certID] = &working

	clone := working
	return &clone, nil
}
