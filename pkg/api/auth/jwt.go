// Package auth issues and validates the bearer tokens that guard the
// blobsweep API. Tokens are HS256 JWTs signed with a shared secret from
// the configuration; there is no user store.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = fmt.Errorf("JWT secret must be at least %d characters", MinSecretLength)
	ErrSubjectRequired     = errors.New("token subject is required")
)

const (
	// MinSecretLength is the shortest accepted HMAC secret.
	MinSecretLength = 32

	// DefaultIssuer is the iss claim when none is configured.
	DefaultIssuer = "blobsweep"

	// DefaultTokenDuration is the lifetime of issued tokens.
	DefaultTokenDuration = 24 * time.Hour
)

// Claims are the JWT claims of an API token. Subject names the operator or
// automation the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTConfig holds configuration for token generation and validation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least MinSecretLength characters.
	Secret string

	// Issuer is the token issuer claim. Default: "blobsweep"
	Issuer string

	// TokenDuration is the lifetime of issued tokens. Default: 24h
	TokenDuration time.Duration
}

// JWTService handles token generation and validation.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a JWT service with the given configuration.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = DefaultTokenDuration
	}
	return &JWTService{config: config}, nil
}

// GenerateToken signs a token for subject. ttl overrides the configured
// lifetime when positive.
func (s *JWTService) GenerateToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrSubjectRequired
	}
	if ttl <= 0 {
		ttl = s.config.TokenDuration
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, ErrTokenSigningFailed
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a token and returns its claims. Tokens signed
// with another method, secret or issuer are rejected.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
