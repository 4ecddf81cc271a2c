package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mbathio/university-management/internal/models"
)

// TokenKind separates short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

const (
	minKeyLen    = 32
	notBeforeLag = 10 * time.Second
)

type Claims struct {
	Kind TokenKind `json:"kind"`
	Role string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	NoncePrefix string
}

// TokenError reports a token that is malformed or not signed with the
// process key.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: %s: %v", e.Reason, e.Err)
	}
	return "token: " + e.Reason
}

func (e *TokenError) Unwrap() error { return e.Err }

type TokenOption func(*TokenService)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// TokenService issues and validates HS256 tokens. The key is fixed at
// construction and only read afterwards.
type TokenService struct {
	key        []byte
	prefix     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.NoncePrefix == "" {
		return nil, errors.New("token nonce prefix is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	s := &TokenService{
		key:        deriveKey(cfg.Secret),
		prefix:     cfg.NoncePrefix + "-",
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func deriveKey(secret string) []byte {
	if len(secret) >= minKeyLen {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// TTL returns the configured lifetime for kind.
func (s *TokenService) TTL(kind TokenKind) time.Duration {
	if kind == TokenRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

func (s *TokenService) Issue(p *models.Principal, kind TokenKind) (string, error) {
	if p == nil || p.Username == "" {
		return "", errors.New("issue token: principal username is required")
	}
	if kind != TokenAccess && kind != TokenRefresh {
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}

	now := s.now()
	claims := Claims{
		Kind: kind,
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-notBeforeLag)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL(kind))),
			ID:        s.prefix + uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Validate reports whether token is currently valid for username. It never
// returns an error; every failure is simply false.
func (s *TokenService) Validate(token, username string) bool {
	_, ok := s.check(token, username, "")
	return ok
}

// ValidateKind is Validate restricted to one token kind.
func (s *TokenService) ValidateKind(token, username string, kind TokenKind) bool {
	_, ok := s.check(token, username, kind)
	return ok
}

// ParseSubject verifies the signature and returns the subject without
// checking expiry or not-before.
func (s *TokenService) ParseSubject(token string) (string, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, s.keyFunc); err != nil {
		return "", &TokenError{Reason: "unparseable", Err: err}
	}
	if claims.Subject == "" {
		return "", &TokenError{Reason: "missing subject"}
	}
	return claims.Subject, nil
}

func (s *TokenService) check(token, username string, kind TokenKind) (*Claims, bool) {
	if token == "" || username == "" {
		return nil, false
	}
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(username),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, s.keyFunc)
	if err != nil || !parsed.Valid {
		return nil, false
	}
	if !strings.HasPrefix(claims.ID, s.prefix) {
		return nil, false
	}
	if kind != "" && claims.Kind != kind {
		return nil, false
	}
	return claims, true
}

func (s *TokenService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.key, nil
}
