package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit persists one audit event, enriching it with request-scoped metadata
// (timestamp, request ID, client IP, normalized User-Agent) when the caller
// left those fields empty.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.Category == "" {
		base.Category = Action(base.Action).Category()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.IP == "" {
		base.IP = requestcontext.ClientIP(ctx)
	}
	if base.UserAgent == "" {
		base.UserAgent = NormalizeUserAgent(requestcontext.UserAgent(ctx))
	}
	return p.store.Append(ctx, base)
}

// List returns events for a specific certificate, newest first.
func (p *Publisher) List(ctx context.Context, certID id.CertificateID) ([]Event, error) {
	return p.store.ListByCertificate(ctx, certID)
}

// NormalizeUserAgent reduces a raw User-Agent header to "Browser x.y on OS"
// so audit entries stay readable without storing the full header string.
// Unrecognized agents pass through unchanged.
func NormalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	normalized := name
	if version != "" {
		normalized += " " + version
	}
	if os := ua.OS(); os != "" {
		normalized += " on " + os
	}
	return normalized
}
