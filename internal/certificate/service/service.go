package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"civreg/internal/audit"
	"civreg/internal/certificate/models"
	"civreg/internal/platform/metrics"
	"civreg/internal/policy"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
	"civreg/pkg/requestcontext"
)

// Store is the persistence contract for certificates. Execute runs the
// validate and mutate callbacks under a per-certificate lock so lifecycle
// checks and writes are atomic against concurrent transitions.
type Store interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Certificate, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Certificate, error)
	Execute(ctx context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)
}

// Notifier delivers lifecycle notifications to the applicant. Calls happen
// inside the lifecycle transaction so the notification commits with the
// state change.
type Notifier interface {
	NotifyVerified(ctx context.Context, recipient id.UserID, certID id.CertificateID, number string) error
	NotifyApproved(ctx context.Context, recipient id.UserID, certID id.CertificateID, number string) error
	NotifyRejected(ctx context.Context, recipient id.UserID, certID id.CertificateID, number, reason string) error
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID   id.UserID
	Role id.Role
}

// CreateRequest is a new certificate application.
type CreateRequest struct {
	Type    id.CertificateType
	Subject models.Subject
}

// TransitionRequest carries the optional inputs of a lifecycle transition.
// Reason is required for rejections and ignored elsewhere.
type TransitionRequest struct {
	Notes  string
	Reason string
}

// Service implements the certificate lifecycle. Every state change runs as
// one atomic unit: the transition itself, its audit event, and the
// applicant notification.
type Service struct {
	store         Store
	auditor       *audit.Publisher
	notifier      Notifier
	numbers       *models.NumberGenerator
	tx            txcontext.Runner
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
	verifyBaseURL string
}

func New(
	store Store,
	auditor *audit.Publisher,
	notifier Notifier,
	numbers *models.NumberGenerator,
	runner txcontext.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
	verifyBaseURL string,
) *Service {
	return &Service{
		store:         store,
		auditor:       auditor,
		notifier:      notifier,
		numbers:       numbers,
		tx:            runner,
		metrics:       m,
		logger:        logger,
		tracer:        otel.Tracer("civreg/certificate"),
		verifyBaseURL: verifyBaseURL,
	}
}

// Create registers a new certificate application in PENDING state and
// assigns its certificate number. Any authenticated user may apply.
func (s *Service) Create(ctx context.Context, actor Actor, req CreateRequest) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Create")
	defer span.End()

	if !policy.Allowed(actor.Role, policy.OpCreate) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not permitted to create certificates")
	}

	number, err := s.numbers.Generate(req.Type)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate certificate number")
	}

	cert, err := models.NewCertificate(
		id.CertificateID(uuid.New()),
		number,
		req.Type,
		actor.ID,
		req.Subject,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid certificate application")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, cert); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "certificate number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
		}
		return s.auditor.Emit(ctx, audit.Event{
			ActorID:       actor.ID,
			CertificateID: cert.ID,
			Action:        string(audit.ActionCertificateCreated),
			Details: map[string]string{
				"certificate_number": cert.Number,
				"type":               string(cert.Type),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCertificateCreated(string(cert.Type))
	}
	s.logger.InfoContext(ctx, "certificate created",
		"certificate_id", cert.ID.String(),
		"number", cert.Number,
		"type", string(cert.Type))
	return cert, nil
}

// StartReview moves a PENDING certificate to UNDER_REVIEW.
func (s *Service) StartReview(ctx context.Context, actor Actor, certID id.CertificateID) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.StartReview")
	defer span.End()

	return s.transition(ctx, actor, certID, policy.OpStartReview,
		func(c *models.Certificate) error { return c.CanStartReview() },
		func(c *models.Certificate) { c.ApplyReviewStart(requestcontext.Now(ctx)) },
		audit.ActionCertificateReviewStarted,
		nil,
		nil,
	)
}

// Verify marks a certificate VERIFIED and notifies the applicant.
func (s *Service) Verify(ctx context.Context, actor Actor, certID id.CertificateID, req TransitionRequest) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Verify")
	defer span.End()

	details := map[string]string{}
	if req.Notes != "" {
		details["notes"] = req.Notes
	}
	return s.transition(ctx, actor, certID, policy.OpVerify,
		func(c *models.Certificate) error { return c.CanVerify() },
		func(c *models.Certificate) { c.ApplyVerification(actor.ID, req.Notes, requestcontext.Now(ctx)) },
		audit.ActionCertificateVerified,
		details,
		func(ctx context.Context, c *models.Certificate) error {
			return s.notifier.NotifyVerified(ctx, c.OwnerID, c.ID, c.Number)
		},
	)
}

// Approve marks a VERIFIED certificate APPROVED, attaches the verification
// artifact, and notifies the applicant that the document is ready.
func (s *Service) Approve(ctx context.Context, actor Actor, certID id.CertificateID, req TransitionRequest) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Approve")
	defer span.End()

	if !policy.Allowed(actor.Role, policy.OpApprove) {
		return nil, s.forbidden(policy.OpApprove)
	}

	artifact, err := models.GenerateArtifact(s.verifyBaseURL, certID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification artifact")
	}

	details := map[string]string{}
	if req.Notes != "" {
		details["notes"] = req.Notes
	}
	return s.run(ctx, actor, certID, policy.OpApprove,
		func(c *models.Certificate) error { return c.CanApprove() },
		func(c *models.Certificate) {
			c.ApplyApproval(actor.ID, req.Notes, artifact, requestcontext.Now(ctx))
		},
		audit.ActionCertificateApproved,
		details,
		func(ctx context.Context, c *models.Certificate) error {
			return s.notifier.NotifyApproved(ctx, c.OwnerID, c.ID, c.Number)
		},
	)
}

// Reject moves a non-terminal certificate to REJECTED. A reason is required
// and is relayed to the applicant verbatim.
func (s *Service) Reject(ctx context.Context, actor Actor, certID id.CertificateID, req TransitionRequest) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Reject")
	defer span.End()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "rejection reason is required")
	}

	return s.transition(ctx, actor, certID, policy.OpReject,
		func(c *models.Certificate) error { return c.CanReject() },
		func(c *models.Certificate) { c.ApplyRejection(reason, requestcontext.Now(ctx)) },
		audit.ActionCertificateRejected,
		map[string]string{"reason": reason},
		func(ctx context.Context, c *models.Certificate) error {
			return s.notifier.NotifyRejected(ctx, c.OwnerID, c.ID, c.Number, reason)
		},
	)
}

// transition gates on the policy, then runs the guarded state change. A
// caller whose role lacks the operation is turned away before any state or
// audit write happens.
func (s *Service) transition(
	ctx context.Context,
	actor Actor,
	certID id.CertificateID,
	op policy.Operation,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
	action audit.Action,
	details map[string]string,
	notify func(context.Context, *models.Certificate) error,
) (*models.Certificate, error) {
	if !policy.Allowed(actor.Role, op) {
		return nil, s.forbidden(op)
	}
	return s.run(ctx, actor, certID, op, validate, mutate, action, details, notify)
}

func (s *Service) run(
	ctx context.Context,
	actor Actor,
	certID id.CertificateID,
	op policy.Operation,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
	action audit.Action,
	details map[string]string,
	notify func(context.Context, *models.Certificate) error,
) (*models.Certificate, error) {
	var cert *models.Certificate
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cert, err = s.store.Execute(ctx, certID, validate, mutate)
		if err != nil {
			return s.translateTransition(err, op)
		}

		if details == nil {
			details = map[string]string{}
		}
		details["certificate_number"] = cert.Number
		details["status"] = cert.Status.String()
		if err := s.auditor.Emit(ctx, audit.Event{
			ActorID:       actor.ID,
			CertificateID: cert.ID,
			Action:        string(action),
			Details:       details,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}

		if notify != nil {
			if err := notify(ctx, cert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTransition(string(op))
	}
	s.logger.InfoContext(ctx, "certificate transition",
		"certificate_id", cert.ID.String(),
		"operation", string(op),
		"status", cert.Status.String())
	return cert, nil
}

func (s *Service) forbidden(op policy.Operation) error {
	if s.metrics != nil {
		s.metrics.IncrementTransitionFailure("forbidden")
	}
	return dErrors.New(dErrors.CodeForbidden, "role is not permitted to "+string(op))
}

// translateTransition maps storage and guard failures onto API error codes.
// A transition blocked by the lifecycle guard is a conflict with the
// certificate's current state, including any attempt to leave a terminal
// state.
func (s *Service) translateTransition(err error, op policy.Operation) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		if s.metrics != nil {
			s.metrics.IncrementTransitionFailure("invalid_state")
		}
		return dErrors.Wrap(err, dErrors.CodeConflict, "certificate state does not allow "+string(op))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "certificate transition failed")
	}
}

// Get returns one certificate. Applicants see their own records; staff see
// all.
func (s *Service) Get(ctx context.Context, actor Actor, certID id.CertificateID) (*models.Certificate, error) {
	cert, err := s.store.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	if !policy.CanReadCertificate(actor.ID, actor.Role, cert.OwnerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "certificate belongs to another user")
	}
	return cert, nil
}

// GetByNumber returns one certificate by its number, with the same access
// rule as Get.
func (s *Service) GetByNumber(ctx context.Context, actor Actor, number string) (*models.Certificate, error) {
	cert, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	if !policy.CanReadCertificate(actor.ID, actor.Role, cert.OwnerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "certificate belongs to another user")
	}
	return cert, nil
}

// ListOwn returns the caller's certificates, newest first.
func (s *Service) ListOwn(ctx context.Context, actor Actor) ([]*models.Certificate, error) {
	certs, err := s.store.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}

// ListByStatus returns certificates in a given lifecycle state for staff
// work queues.
func (s *Service) ListByStatus(ctx context.Context, actor Actor, status models.Status, limit int) ([]*models.Certificate, error) {
	if !policy.Allowed(actor.Role, policy.OpReadAny) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role is not permitted to browse certificates")
	}
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown certificate status")
	}
	certs, err := s.store.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}
