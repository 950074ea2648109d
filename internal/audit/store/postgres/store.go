// Package postgres implements the audit store with the transactional outbox
// pattern. Events are materialized into audit_events for querying and written
// to the outbox table in the same transaction; the relay worker publishes
// outbox rows to Kafka, which is the downstream source of truth.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"civreg/internal/audit"
	"civreg/internal/platform/kafka"
	id "civreg/pkg/domain"
	txcontext "civreg/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID            string            `json:"ID"`
	Category      string            `json:"Category"`
	Timestamp     string            `json:"Timestamp"`
	ActorID       string            `json:"ActorID,omitempty"`
	CertificateID string            `json:"CertificateID,omitempty"`
	Action        string            `json:"Action"`
	Details       map[string]string `json:"Details,omitempty"`
	IP            string            `json:"IP,omitempty"`
	UserAgent     string            `json:"UserAgent,omitempty"`
	RequestID     string            `json:"RequestID,omitempty"`
}

// Append writes the event to audit_events and enqueues it on the outbox in
// the transaction carried by ctx, if any. Without a transaction both writes
// still happen, just not atomically; services always call this inside RunInTx.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var actorID, certID *uuid.UUID
	if !event.ActorID.IsNil() {
		u := uuid.UUID(event.ActorID)
		actorID = &u
	}
	if !event.CertificateID.IsNil() {
		u := uuid.UUID(event.CertificateID)
		certID = &u
	}

	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, actor_id, certificate_id, action,
			details, ip, user_agent, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		actorID,
		certID,
		event.Action,
		details,
		event.IP,
		event.UserAgent,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload := outboxPayload{
		ID:        event.ID.String(),
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Details:   event.Details,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		RequestID: event.RequestID,
	}
	if actorID != nil {
		payload.ActorID = actorID.String()
	}
	if certID != nil {
		payload.CertificateID = certID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	key := event.ID.String()
	if certID != nil {
		key = certID.String()
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (topic, key, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, kafka.TopicAudit, key, payloadBytes, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByCertificate returns events for one certificate, newest first.
func (s *Store) ListByCertificate(ctx context.Context, certID id.CertificateID) ([]audit.Event, error) {
	return s.list(ctx, `
		SELECT id, category, timestamp, actor_id, certificate_id, action,
			   details, ip, user_agent, request_id
		FROM audit_events
		WHERE certificate_id = $1
		ORDER BY timestamp DESC
	`, uuid.UUID(certID))
}

// ListByActor returns events performed by one actor, newest first.
func (s *Store) ListByActor(ctx context.Context, actorID id.UserID) ([]audit.Event, error) {
	return s.list(ctx, `
		SELECT id, category, timestamp, actor_id, certificate_id, action,
			   details, ip, user_agent, request_id
		FROM audit_events
		WHERE actor_id = $1
		ORDER BY timestamp DESC
	`, uuid.UUID(actorID))
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.list(ctx, `
		SELECT id, category, timestamp, actor_id, certificate_id, action,
			   details, ip, user_agent, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			actorID  *uuid.UUID
			certID   *uuid.UUID
			details  []byte
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&actorID,
			&certID,
			&event.Action,
			&details,
			&event.IP,
			&event.UserAgent,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if actorID != nil {
			event.ActorID = id.UserID(*actorID)
		}
		if certID != nil {
			event.CertificateID = id.CertificateID(*certID)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// FetchUnpublished returns up to limit undelivered outbox rows, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, key, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.Topic, &entry.Key, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	// pq-style array binding keeps this one round trip.
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)
	`, int64Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// int64Array adapts []int64 to a driver-understood int8[] literal.
type int64Array []int64

func (a int64Array) Value() (driver.Value, error) {
	out := "{"
	for i, v := range a {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", v)
	}
	return out + "}", nil
}
