package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenLifetime is how long an issued token stays valid
const DefaultTokenLifetime = 15 * time.Minute

// TokenService signs and verifies HS256 access tokens
type TokenService struct {
	signingKey []byte
	lifetime   time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

var (
	_ TokenIssuer    = (*TokenService)(nil)
	_ TokenValidator = (*TokenService)(nil)
)

// TokenOption configures a TokenService
type TokenOption func(*TokenService)

// WithTokenLifetime overrides DefaultTokenLifetime. Non-positive values are ignored.
func WithTokenLifetime(d time.Duration) TokenOption {
	return func(ts *TokenService) {
		if d > 0 {
			ts.lifetime = d
		}
	}
}

// WithIssuer sets and enforces the iss claim
func WithIssuer(issuer string) TokenOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithAudience sets and enforces the aud claim
func WithAudience(audience ...string) TokenOption {
	return func(ts *TokenService) {
		ts.audience = append(jwt.ClaimStrings(nil), audience...)
	}
}

// WithClock replaces time.Now for issuance and expiry checks
func WithClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService. A missing signing key is a
// configuration error and must stop startup.
func NewTokenService(signingKey []byte, opts ...TokenOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	ts := &TokenService{
		signingKey: append([]byte(nil), signingKey...),
		lifetime:   DefaultTokenLifetime,
		now:        time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts, nil
}

// Lifetime returns the configured token lifetime
func (ts *TokenService) Lifetime() time.Duration {
	return ts.lifetime
}

// Issue creates a signed token for principal and returns it with its expiry
func (ts *TokenService) Issue(principal Principal) (string, time.Time, error) {
	if principal.SubjectID == "" {
		return "", time.Time{}, ErrValidation.WithMessage("token subject is required")
	}
	if !principal.Role.IsValid() {
		return "", time.Time{}, ErrValidation.WithMessage("token role is invalid")
	}

	now := ts.now()
	expiresAt := now.Add(ts.lifetime)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   principal.SubjectID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      principal.SubjectID,
		Email:    principal.Email,
		UserRole: principal.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, ErrInternal.Wrap(err)
	}

	return signed, claims.Expires(), nil
}

// Validate parses and validates a token string, returning its claims.
// Failures are one of ErrTokenMalformed, ErrTokenSignatureInvalid or ErrTokenExpired.
func (ts *TokenService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMalformed.WithMessage("token is empty")
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.UserID() == "" {
		return nil, ErrTokenMalformed.WithMessage("token is malformed: missing subject")
	}

	if !claims.UserRole.IsValid() {
		return nil, ErrTokenMalformed.WithMessage("token is malformed: invalid role")
	}

	return claims, nil
}

func classifyTokenError(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired.Wrap(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignatureInvalid.Wrap(err)
	default:
		return ErrTokenMalformed.Wrap(err)
	}
}
