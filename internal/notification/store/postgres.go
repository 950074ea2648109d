package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civreg/internal/notification/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
)

// PostgresStore persists notifications in PostgreSQL. Writes join the
// transaction carried by ctx when one is present, so notification rows
// commit atomically with the lifecycle change that produced them.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, certificate_id, type, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(n.ID),
		uuid.UUID(n.RecipientID),
		uuid.UUID(n.CertificateID),
		string(n.Type),
		n.Title,
		n.Message,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, notifID id.NotificationID) (*models.Notification, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, recipient_id, certificate_id, type, title, message, read, created_at
		FROM notifications WHERE id = $1
	`, uuid.UUID(notifID))
	return scanNotification(row)
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipientID id.UserID) ([]*models.Notification, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, recipient_id, certificate_id, type, title, message, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
	`, uuid.UUID(recipientID))
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, notifID id.NotificationID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1
	`, uuid.UUID(notifID))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, notifID id.NotificationID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM notifications WHERE id = $1
	`, uuid.UUID(notifID))
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n       models.Notification
		notifID uuid.UUID
		recipID uuid.UUID
		certID  uuid.UUID
		ntype   string
	)
	err := row.Scan(&notifID, &recipID, &certID, &ntype, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(notifID)
	n.RecipientID = id.UserID(recipID)
	n.CertificateID = id.CertificateID(certID)
	n.Type = models.Type(ntype)
	return &n, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
