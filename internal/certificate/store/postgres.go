package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"civreg/internal/certificate/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
)

// PostgresStore persists certificates in PostgreSQL. Execute relies on
// SELECT ... FOR UPDATE so the precondition check and the write are atomic
// with respect to concurrent transitions on the same certificate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const certColumns = `
	id, number, type, status, owner_id, subject, notes, artifact,
	issued_at, expires_at, verifier_id, verified_at, approver_id, approved_at,
	created_at, updated_at
`

// Create inserts a new certificate. A duplicate number surfaces as
// sentinel.ErrConflict via the unique constraint.
func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) error {
	subject, err := json.Marshal(cert.Subject)
	if err != nil {
		return fmt.Errorf("marshal certificate subject: %w", err)
	}

	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO certificates (`+certColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		uuid.UUID(cert.ID),
		cert.Number,
		string(cert.Type),
		string(cert.Status),
		uuid.UUID(cert.OwnerID),
		subject,
		cert.Notes,
		cert.Artifact,
		cert.IssuedAt,
		cert.ExpiresAt,
		userIDPtr(cert.VerifierID),
		cert.VerifiedAt,
		userIDPtr(cert.ApproverID),
		cert.ApprovedAt,
		cert.CreatedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT `+certColumns+` FROM certificates WHERE id = $1
	`, uuid.UUID(certID))
	return scanCertificate(row)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT `+certColumns+` FROM certificates WHERE UPPER(number) = UPPER($1)
	`, number)
	return scanCertificate(row)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Certificate, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT `+certColumns+` FROM certificates
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("query certificates by owner: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Certificate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT `+certColumns+` FROM certificates
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query certificates by status: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

// Execute loads the row FOR UPDATE, runs validate, applies mutate, and
// writes the result back, inside the transaction carried by ctx or a local
// one when none is present.
func (s *PostgresStore) Execute(
	ctx context.Context,
	certID id.CertificateID,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
) (*models.Certificate, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, tx, certID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cert, err := s.executeLocked(ctx, tx, certID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) executeLocked(
	ctx context.Context,
	tx *sql.Tx,
	certID id.CertificateID,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
) (*models.Certificate, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+certColumns+` FROM certificates WHERE id = $1 FOR UPDATE
	`, uuid.UUID(certID))
	cert, err := scanCertificate(row)
	if err != nil {
		return nil, err
	}

	if err := validate(cert); err != nil {
		return nil, err
	}
	mutate(cert)

	subject, err := json.Marshal(cert.Subject)
	if err != nil {
		return nil, fmt.Errorf("marshal certificate subject: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE certificates SET
			status = $2, subject = $3, notes = $4, artifact = $5,
			issued_at = $6, expires_at = $7,
			verifier_id = $8, verified_at = $9,
			approver_id = $10, approved_at = $11,
			updated_at = $12
		WHERE id = $1
	`,
		uuid.UUID(cert.ID),
		string(cert.Status),
		subject,
		cert.Notes,
		cert.Artifact,
		cert.IssuedAt,
		cert.ExpiresAt,
		userIDPtr(cert.VerifierID),
		cert.VerifiedAt,
		userIDPtr(cert.ApproverID),
		cert.ApprovedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	return cert, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert       models.Certificate
		certID     uuid.UUID
		ownerID    uuid.UUID
		certType   string
		status     string
		subject    []byte
		verifierID *uuid.UUID
		approverID *uuid.UUID
	)
	err := row.Scan(
		&certID,
		&cert.Number,
		&certType,
		&status,
		&ownerID,
		&subject,
		&cert.Notes,
		&cert.Artifact,
		&cert.IssuedAt,
		&cert.ExpiresAt,
		&verifierID,
		&cert.VerifiedAt,
		&approverID,
		&cert.ApprovedAt,
		&cert.CreatedAt,
		&cert.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}

	cert.ID = id.CertificateID(certID)
	cert.OwnerID = id.UserID(ownerID)
	cert.Type = id.CertificateType(certType)
	cert.Status = models.Status(status)
	if verifierID != nil {
		v := id.UserID(*verifierID)
		cert.VerifierID = &v
	}
	if approverID != nil {
		a := id.UserID(*approverID)
		cert.ApproverID = &a
	}
	if len(subject) > 0 {
		if err := json.Unmarshal(subject, &cert.Subject); err != nil {
			return nil, fmt.Errorf("unmarshal certificate subject: %w", err)
		}
	}
	return &cert, nil
}

func scanCertificates(rows *sql.Rows) ([]*models.Certificate, error) {
	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

func userIDPtr(v *id.UserID) *uuid.UUID {
	if v == nil {
		return nil
	}
	u := uuid.UUID(*v)
	return &u
}

// isUniqueViolation matches postgres error code 23505 without binding the
// store to one driver's error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
