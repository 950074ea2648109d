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
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newCertificate(number string) *models.Certificate {
	cert, err := models.NewCertificate(
		id.CertificateID(uuid.New()),
		number,
		id.CertificateTypeBirth,
		id.UserID(uuid.New()),
		models.Subject{FullName: "Amina Okafor"},
		time.Now(),
	)
	s.Require().NoError(err)
	return cert
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	s.Require().NoError(s.store.Create(s.ctx, cert))

	byID, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.Number, byID.Number)

	byNumber, err := s.store.FindByNumber(s.ctx, "birth-1-aaaa0001")
	s.Require().NoError(err)
	s.Equal(cert.ID, byNumber.ID, "number lookup is case-insensitive")
}

func (s *InMemoryStoreSuite) TestCreateDuplicateNumber() {
	first := s.newCertificate("BIRTH-1-AAAA0001")
	s.Require().NoError(s.store.Create(s.ctx, first))

	dup := s.newCertificate("BIRTH-1-AAAA0001")
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.CertificateID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByNumber(s.ctx, "BIRTH-0-00000000")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListByOwner() {
	owner := id.UserID(uuid.New())
	mine := s.newCertificate("BIRTH-1-AAAA0001")
	mine.OwnerID = owner
	other := s.newCertificate("BIRTH-2-AAAA0002")
	s.Require().NoError(s.store.Create(s.ctx, mine))
	s.Require().NoError(s.store.Create(s.ctx, other))

	certs, err := s.store.ListByOwner(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(certs, 1)
	s.Equal(mine.ID, certs[0].ID)
}

func (s *InMemoryStoreSuite) TestListByOwnerNewestFirst() {
	owner := id.UserID(uuid.New())
	base := time.Now()
	numbers := []string{"BIRTH-1-AAAA0001", "BIRTH-2-AAAA0002", "BIRTH-3-AAAA0003"}
	for i, number := range numbers {
		cert := s.newCertificate(number)
		cert.OwnerID = owner
		cert.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Create(s.ctx, cert))
	}

	certs, err := s.store.ListByOwner(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(certs, 3)
	s.Equal("BIRTH-3-AAAA0003", certs[0].Number)
	s.Equal("BIRTH-2-AAAA0002", certs[1].Number)
	s.Equal("BIRTH-1-AAAA0001", certs[2].Number)
}

func (s *InMemoryStoreSuite) TestListByStatusOldestFirstWithLimit() {
	base := time.Now()
	numbers := []string{"BIRTH-1-AAAA0001", "BIRTH-2-AAAA0002", "BIRTH-3-AAAA0003"}
	for i, number := range numbers {
		cert := s.newCertificate(number)
		cert.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Create(s.ctx, cert))
	}

	certs, err := s.store.ListByStatus(s.ctx, models.StatusPending, 2)
	s.Require().NoError(err)
	s.Require().Len(certs, 2)
	s.Equal("BIRTH-1-AAAA0001", certs[0].Number)
	s.Equal("BIRTH-2-AAAA0002", certs[1].Number)
}

func (s *InMemoryStoreSuite) TestExecuteNotFound() {
	_, err := s.store.Execute(s.ctx, id.CertificateID(uuid.New()),
		func(*models.Certificate) error { return nil },
		func(*models.Certificate) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestExecuteValidateFailureLeavesStateUntouched() {
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

func (s *InMemoryStoreSuite) TestExecutePersistsMutation() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	s.Require().NoError(s.store.Create(s.ctx, cert))

	updated, err := s.store.Execute(s.ctx, cert.ID,
		func(c *models.Certificate) error { return c.CanStartReview() },
		func(c *models.Certificate) { c.ApplyReviewStart(time.Now()) },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, updated.Status)

	stored, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, stored.Status)
}

// Two racing terminal transitions on one certificate: exactly one wins, the
// loser fails the lifecycle guard, and the stored state is the winner's.
func (s *InMemoryStoreSuite) TestExecuteSerializesConcurrentTransitions() {
	cert := s.newCertificate("BIRTH-1-AAAA0001")
	cert.Status = models.StatusVerified
	s.Require().NoError(s.store.Create(s.ctx, cert))

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { return c.CanApprove() },
			func(c *models.Certificate) {
				c.ApplyApproval(id.UserID(uuid.New()), "", "artifact", time.Now())
			},
		)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { return c.CanReject() },
			func(c *models.Certificate) { c.ApplyRejection("late objection", time.Now()) },
		)
	}()
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		}
	}
	s.Equal(1, failures, "exactly one of the racing transitions must lose")

	stored, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.True(stored.Status.IsTerminal())
}
