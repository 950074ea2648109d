package audit

import (
	"context"

	id "civreg/pkg/domain"
)

// Store persists audit events. Append must participate in any transaction
// carried by ctx so the audit record commits atomically with the state
// change it describes.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCertificate(ctx context.Context, certID id.CertificateID) ([]Event, error)
	ListByActor(ctx context.Context, actorID id.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// OutboxEntry is one undelivered side-effect intent awaiting relay.
type OutboxEntry struct {
	ID      int64
	Topic   string
	Key     string
	Payload []byte
}

// OutboxStore exposes the relay's view of the outbox table.
type OutboxStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []int64) error
}
