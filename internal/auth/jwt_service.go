package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "bookshelf/internal/errors"
)

// DefaultAlgorithm is used when no signing algorithm is configured.
const DefaultAlgorithm = "HS256"

// BearerPrefix is stripped from presented tokens before parsing.
const BearerPrefix = "Bearer "

// ErrInvalidToken is returned for every token rejection: bad signature, wrong algorithm,
// malformed payload, missing subject or elapsed expiry.
var ErrInvalidToken = apperrors.ErrInvalidToken

// TokenConfig carries the signing settings for JWTService.
type TokenConfig struct {
	Secret    string
	Algorithm string
	AccessTTL time.Duration
}

// Claims represents JWT claims. The subject is the user's normalized email.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService handles session token generation and validation.
type JWTService struct {
	secret    []byte
	method    jwt.SigningMethod
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTService creates a JWT service from the given configuration.
// Only HMAC algorithms are accepted since tokens are signed with a shared secret.
func NewJWTService(cfg TokenConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	return &JWTService{
		secret:    []byte(cfg.Secret),
		method:    method,
		accessTTL: cfg.AccessTTL,
		now:       time.Now,
	}, nil
}

// AccessTTL returns the default lifetime of issued tokens.
func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueDefault signs a token for email using the configured access TTL.
func (s *JWTService) IssueDefault(email string) (string, error) {
	return s.Issue(email, s.accessTTL)
}

// Issue signs a token whose subject is email and which expires ttl from now.
func (s *JWTService) Issue(email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the subject email.
func (s *JWTService) Validate(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), BearerPrefix))
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{s.method.Alg()}))
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	// Parsing does not require exp; a session token without one is not acceptable.
	if claims.ExpiresAt == nil || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
