package usertoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"cinelog/internal/util"
)

const (
	defaultIssuer   = "cinelog-api"
	defaultAudience = "cinelog-web"
	defaultTTL      = 7 * 24 * time.Hour
	defaultLeeway   = 30 * time.Second
	minSecretLength = 32
)

var (
	// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevokedToken is returned for tokens revoked by logout or password change.
	ErrRevokedToken = errors.New("token revoked")
)

// Claims carried by user access tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config configures token issuance and verification.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
	Revoker  Revoker
}

// Manager issues and verifies HS256 access tokens.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	revoker  Revoker
}

// NewManager validates cfg and applies defaults.
func NewManager(cfg Config) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	m := &Manager{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		ttl:      cfg.TTL,
		leeway:   cfg.Leeway,
		revoker:  cfg.Revoker,
	}
	if m.issuer == "" {
		m.issuer = defaultIssuer
	}
	if m.audience == "" {
		m.audience = defaultAudience
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.leeway <= 0 {
		m.leeway = defaultLeeway
	}
	if m.revoker == nil {
		m.revoker = NewMemoryRevoker()
	}
	return m, nil
}

// TTL returns the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for userID.
func (m *Manager) Issue(userID, role string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("token subject required")
	}
	now := time.Now().UTC()
	expires := now.Add(m.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        util.NewID(),
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses token, checks signature and registered claims, then consults
// the revoker. Revoker failures are reported as errors, not as valid tokens.
func (m *Manager) Verify(ctx context.Context, token string) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return Claims{}, ErrRevokedToken
	}
	cutoff, err := m.revoker.RevokedAfter(ctx, claims.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("check user revocation: %w", err)
	}
	// iat has second precision.
	if !cutoff.IsZero() && claims.IssuedAt.Time.Before(cutoff.Truncate(time.Second)) {
		return Claims{}, ErrRevokedToken
	}
	return claims, nil
}

// Revoke invalidates a single verified token until it would have expired.
func (m *Manager) Revoke(ctx context.Context, claims Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// RevokeUser invalidates every token issued to userID before since.
func (m *Manager) RevokeUser(ctx context.Context, userID string, since time.Time) error {
	return m.revoker.RevokeUser(ctx, userID, since, m.ttl)
}
