//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civreg/internal/certificate/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
	owner id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"outbox", "audit_events", "notifications", "certificates", "users"))
	s.owner = s.insertUser("owner@example.com")
}

func (s *PostgresStoreSuite) insertUser(email string) id.UserID {
	userID := uuid.New()
	_, err := s.pg.DB.ExecContext(s.ctx, `
		INSERT INTO users (id, email, full_name, role, password_hash, created_at)
		VALUES ($1, $2, 'Test User', 'CITIZEN', 'x', now())
	`, userID, email)
	s.Require().NoError(err)
	return id.UserID(userID)
}

func (s *PostgresStoreSuite) newCertificate(number string) *models.Certificate {
	cert, err := models.NewCertificate(
		id.CertificateID(uuid.New()),
		number,
		id.CertificateTypeBirth,
		s.owner,
		models.Subject{FullName: "Amina Okafor", DateOfBirth: "2024-11-02"},
		time.Now().UTC().Truncate(time.Microsecond),
	)
	s.Require().NoError(err)
	return cert
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	s.Require().NoError(s.store.Create(s.ctx, cert))

	byID, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.Number, byID.Number)
	s.Equal(cert.OwnerID, byID.OwnerID)
	s.Equal(models.StatusPending, byID.Status)
	s.Equal("Amina Okafor", byID.Subject.FullName)

	byNumber, err := s.store.FindByNumber(s.ctx, "birth-1-aaaa0001")
	s.Require().NoError(err)
	s.Equal(cert.ID, byNumber.ID)
}

func (s *PostgresStoreSuite) TestCreateDuplicateNumber() {
	s.Require().NoError(s.store.Create(s.ctx, s.newCertificate("BIRTH-1-AAAA0001")))
	s.ErrorIs(s.store.Create(s.ctx, s.newCertificate("BIRTH-1-AAAA0001")), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.CertificateID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecutePersistsTransition() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	s.Require().NoError(s.store.Create(s.ctx, cert))

	verifier := id.UserID(uuid.New())
	s.insertUserWithID(verifier, "verifier@example.com")

	updated, err := s.store.Execute(s.ctx, cert.ID,
		func(c *models.Certificate) error { return c.CanVerify() },
		func(c *models.Certificate) {
			c.ApplyVerification(verifier, "records match", time.Now().UTC().Truncate(time.Microsecond))
		},
	)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, updated.Status)

	stored, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, stored.Status)
	s.Require().NotNil(stored.VerifierID)
	s.Equal(verifier, *stored.VerifierID)
	s.Equal("records match", stored.Notes)
}

func (s *PostgresStoreSuite) insertUserWithID(userID id.UserID, email string) {
	_, err := s.pg.DB.ExecContext(s.ctx, `
		INSERT INTO users (id, email, full_name, role, password_hash, created_at)
		VALUES ($1, $2, 'Test User', 'VERIFIER', 'x', now())
	`, uuid.UUID(userID), email)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestExecuteValidateFailureRollsBack() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	s.Require().NoError(s.store.Create(s.ctx, cert))

	_, err := s.store.Execute(s.ctx, cert.ID,
		func(*models.Certificate) error {
			return dErrors.New(dErrors.CodeInvariantViolation, "blocked")
		},
		func(c *models.Certificate) { c.Status = models.StatusApproved },
	)
	s.Error(err)

	stored, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

// Row locking makes racing transitions serialize: exactly one of two
// conflicting terminal transitions commits.
func (s *PostgresStoreSuite) TestExecuteSerializesConcurrentTransitions() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	cert.Status = models.StatusVerified
	s.Require().NoError(s.store.Create(s.ctx, cert))

	approver := id.UserID(uuid.New())
	s.insertUserWithID(approver, "approver@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { return c.CanApprove() },
			func(c *models.Certificate) {
				c.ApplyApproval(approver, "", "artifact", time.Now().UTC())
			},
		)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { return c.CanReject() },
			func(c *models.Certificate) { c.ApplyRejection("late objection", time.Now().UTC()) },
		)
	}()
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	s.Equal(1, failures)

	stored, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.True(stored.Status.IsTerminal())
}

func (s *PostgresStoreSuite) TestListByOwnerAndStatus() {
	first := s.newCertificate("BIRTH-1-AAAA0001")
	second := s.newCertificate("BIRTH-2-AAAA0002")
	second.Status = models.StatusUnderReview
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	byOwner, err := s.store.ListByOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(byOwner, 2)

	pending, err := s.store.ListByStatus(s.ctx, models.StatusPending, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(first.ID, pending[0].ID)
}
