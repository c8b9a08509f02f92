package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/authkit/auth-service/internal/domain"
)

// MaxTokenSize bounds the length of a token accepted by Verify and produced by Issue.
const MaxTokenSize = 8 << 10

var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")

	ErrInvalidTTL      = errors.New("token ttl must be positive")
	ErrMissingSubject  = errors.New("token subject must not be empty")
	ErrTokenTooLarge   = errors.New("token exceeds maximum size")
	ErrEmptySigningKey = errors.New("signing key must not be empty")
)

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var signatureEncoding = base64.RawURLEncoding.Strict()

// TokenConfig is the immutable configuration of a TokenManager.
type TokenConfig struct {
	SigningKey         []byte
	TTL                time.Duration
	ClockSkewTolerance time.Duration
}

// Claims describes the JWT payload.
type Claims struct {
	Role  domain.Role    `json:"role"`
	Extra map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager handles issuing and validating HS256 JWT tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	skew   time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager builds a new manager. The signing key is copied.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrEmptySigningKey
	}
	if cfg.TTL <= 0 {
		return nil, ErrInvalidTTL
	}
	if cfg.ClockSkewTolerance < 0 {
		return nil, fmt.Errorf("clock skew tolerance must not be negative: %s", cfg.ClockSkewTolerance)
	}

	tm := &TokenManager{
		secret: append([]byte(nil), cfg.SigningKey...),
		ttl:    cfg.TTL,
		skew:   cfg.ClockSkewTolerance,
	}
	return tm.withClock(time.Now), nil
}

// WithClock returns a copy of the manager that reads the current time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	return tm.withClock(now)
}

func (tm *TokenManager) withClock(now func() time.Time) *TokenManager {
	clone := *tm
	clone.now = now
	clone.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// A token is still valid at exactly exp+skew.
		jwt.WithLeeway(tm.skew+time.Nanosecond),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	return &clone
}

// TTL returns the default token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for identity that expires ttl from now. The returned
// Identity carries the timestamps exactly as embedded in the token.
func (tm *TokenManager) Issue(identity domain.Identity, ttl time.Duration) (string, domain.Identity, error) {
	return tm.IssueWithClaims(identity, ttl, nil)
}

// IssueWithClaims is Issue with additional caller-supplied claims stored under "ext".
func (tm *TokenManager) IssueWithClaims(identity domain.Identity, ttl time.Duration, extra map[string]any) (string, domain.Identity, error) {
	if ttl <= 0 {
		return "", domain.Identity{}, ErrInvalidTTL
	}
	if identity.Subject == "" {
		return "", domain.Identity{}, ErrMissingSubject
	}

	issuedAt := jwt.NewNumericDate(tm.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(ttl))
	claims := &Claims{
		Role:  identity.Role,
		Extra: maps.Clone(extra),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", domain.Identity{}, fmt.Errorf("sign token: %w", err)
	}
	if len(tokenString) > MaxTokenSize {
		return "", domain.Identity{}, ErrTokenTooLarge
	}
	return tokenString, claims.identity(), nil
}

// Verify checks the signature, then the claims, and returns the embedded Identity.
func (tm *TokenManager) Verify(tokenStr string) (domain.Identity, error) {
	claims, err := tm.ParseToken(tokenStr)
	if err != nil {
		return domain.Identity{}, err
	}
	return claims.identity(), nil
}

// ExtractSubject returns the subject of a fully verified token.
func (tm *TokenManager) ExtractSubject(tokenStr string) (string, error) {
	identity, err := tm.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return identity.Subject, nil
}

// ParseToken validates and returns claims. The MAC over the raw
// "header.payload" bytes is checked before anything in them is decoded.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" || len(tokenStr) > MaxTokenSize {
		return nil, ErrTokenMalformed
	}

	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}
	for _, part := range parts {
		if !isRawBase64URL(part) {
			return nil, ErrTokenMalformed
		}
	}

	sig, err := signatureEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrTokenBadSignature
	}
	signingString := tokenStr[:len(parts[0])+1+len(parts[1])]
	if err := jwt.SigningMethodHS256.Verify(signingString, sig, tm.secret); err != nil {
		return nil, ErrTokenBadSignature
	}

	claims := &Claims{}
	parsed, err := tm.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// isRawBase64URL checks the alphabet and length of an unpadded segment. Padding
// bits are left to the strict decoder.
func isRawBase64URL(segment string) bool {
	return segment != "" && len(segment)%4 != 1 && strings.Trim(segment, base64URLAlphabet) == ""
}

func (c *Claims) identity() domain.Identity {
	identity := domain.Identity{
		Subject: c.Subject,
		Role:    c.Role,
	}
	if c.IssuedAt != nil {
		identity.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return identity
}
