package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"civreg/internal/audit"
	"civreg/internal/auth/models"
	"civreg/internal/auth/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
	"civreg/pkg/requestcontext"
)

const minPasswordLength = 8

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID id.UserID, role id.Role) (token string, expiresAt time.Time, err error)
}

// RegisterRequest is a self-service account registration. Self-registered
// accounts always get the CITIZEN role.
type RegisterRequest struct {
	Email    string
	FullName string
	Password string
}

// CreateUserRequest is an administrator creating a staff account.
type CreateUserRequest struct {
	Email    string
	FullName string
	Password string
	Role     id.Role
}

// LoginResult carries the issued token alongside the account.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Service handles registration and login. Failed logins are audited as
// security events.
type Service struct {
	store   store.Store
	auditor *audit.Publisher
	issuer  TokenIssuer
	tx      txcontext.Runner
	logger  *slog.Logger
}

func New(store store.Store, auditor *audit.Publisher, issuer TokenIssuer, runner txcontext.Runner, logger *slog.Logger) *Service {
	return &Service{store: store, auditor: auditor, issuer: issuer, tx: runner, logger: logger}
}

// Register creates a CITIZEN account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	return s.createAccount(ctx, req.Email, req.FullName, req.Password, id.RoleCitizen, id.UserID{})
}

// CreateUser creates an account with an explicit role. Only administrators
// may call it; the handler gates the route.
func (s *Service) CreateUser(ctx context.Context, actor id.UserID, req CreateUserRequest) (*models.User, error) {
	return s.createAccount(ctx, req.Email, req.FullName, req.Password, req.Role, actor)
}

func (s *Service) createAccount(ctx context.Context, email, fullName, password string, role id.Role, actor id.UserID) (*models.User, error) {
	if len(password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := models.NewUser(
		id.UserID(uuid.New()),
		email,
		fullName,
		role,
		string(hash),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	actorID := actor
	if actorID.IsNil() {
		actorID = user.ID
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "email is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store user")
		}
		return s.auditor.Emit(ctx, audit.Event{
			ActorID: actorID,
			Action:  string(audit.ActionUserRegistered),
			Details: map[string]string{
				"email": user.Email,
				"role":  user.Role.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "role", user.Role.String())
	return user, nil
}

// Login checks credentials and issues an access token. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.auditFailure(ctx, email)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.auditFailure(ctx, email)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	token, expiresAt, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		ActorID: user.ID,
		Action:  string(audit.ActionUserLoggedIn),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to audit login", "error", err)
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// GetUser returns one account by ID.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) auditFailure(ctx context.Context, email string) {
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:  string(audit.ActionAuthFailed),
		Details: map[string]string{"email": email},
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to audit auth failure", "error", err)
	}
}
