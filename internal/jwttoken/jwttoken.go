package jwttoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"civreg/internal/platform/middleware"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

const defaultTokenTTL = 24 * time.Hour

// Claims is the JWT payload. The user ID travels in the standard subject
// claim; the role is a private claim.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Issuer mints and validates HS256 access tokens.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewIssuer(signingKey string) *Issuer {
	return &Issuer{
		signingKey: []byte(signingKey),
		ttl:        defaultTokenTTL,
		now:        time.Now,
	}
}

// Issue returns a signed token for the given actor.
func (i *Issuer) Issue(userID id.UserID, role id.Role) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role.String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return token, expiresAt, nil
}

// ValidateToken parses and verifies a token, returning the actor's identity.
// It satisfies the middleware's JWTValidator contract.
func (i *Issuer) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected token signing method")
		}
		return i.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token")
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not a valid user ID")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token role is not recognized")
	}
	return &middleware.JWTClaims{UserID: userID, Role: role}, nil
}
