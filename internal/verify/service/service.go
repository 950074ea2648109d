package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"civreg/internal/certificate/models"
	platformredis "civreg/internal/platform/redis"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// CertificateReader is the read-only slice of the certificate store the
// public verifier needs.
type CertificateReader interface {
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)
}

// Result is the public verification outcome. It exposes only what a third
// party scanning the QR code needs and never includes the artifact or the
// applicant's identifiers.
type Result struct {
	Valid             bool       `json:"valid"`
	CertificateNumber string     `json:"certificate_number"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	HolderName        string     `json:"holder_name"`
	IssuedAt          *time.Time `json:"issued_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CheckedAt         time.Time  `json:"checked_at"`
}

// Service answers public verification lookups. Results are cached in Redis
// for a short window; lookups are read-only and idempotent.
type Service struct {
	certs  CertificateReader
	cache  *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(certs CertificateReader, cache *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{certs: certs, cache: cache, ttl: ttl, logger: logger}
}

// VerifyByID checks the certificate the QR code points at.
func (s *Service) VerifyByID(ctx context.Context, certID id.CertificateID) (*Result, error) {
	cacheKey := "verify:id:" + certID.String()
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	cert, err := s.certs.FindByID(ctx, certID)
	if err != nil {
		return nil, s.translate(err)
	}
	result := s.evaluate(ctx, cert)
	s.toCache(ctx, cacheKey, result)
	return result, nil
}

// VerifyByNumber checks a certificate by its printed number.
func (s *Service) VerifyByNumber(ctx context.Context, number string) (*Result, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "certificate number is required")
	}
	// Number lookup is case-insensitive, so the cache key must be too or one
	// certificate gets a cache entry per spelling.
	cacheKey := "verify:number:" + strings.ToUpper(number)
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	cert, err := s.certs.FindByNumber(ctx, number)
	if err != nil {
		return nil, s.translate(err)
	}
	result := s.evaluate(ctx, cert)
	s.toCache(ctx, cacheKey, result)
	return result, nil
}

// evaluate applies the validity rule: a certificate verifies as valid if
// and only if it is APPROVED and not past its expiry.
func (s *Service) evaluate(ctx context.Context, cert *models.Certificate) *Result {
	now := requestcontext.Now(ctx)
	return &Result{
		Valid:             cert.Status == models.StatusApproved && !cert.IsExpired(now),
		CertificateNumber: cert.Number,
		Type:              string(cert.Type),
		Status:            cert.Status.String(),
		HolderName:        cert.Subject.FullName,
		IssuedAt:          cert.IssuedAt,
		ExpiresAt:         cert.ExpiresAt,
		CheckedAt:         now,
	}
}

func (s *Service) translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "verification lookup failed")
}

func (s *Service) fromCache(ctx context.Context, key string) *Result {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil
	}
	return &result
}

func (s *Service) toCache(ctx context.Context, key string, result *Result) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "failed to cache verification result", "error", err)
	}
}
