package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-calendar-sync/internal/errors"
	"github.com/pkg/errors"
)

// Claims is what the service needs back from a bearer token.
type Claims struct {
	ID        string // jti
	Subject   string // user id
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager issues and verifies the HS256 bearer tokens of the service.
type Manager struct {
	secret   []byte
	issuer   string
	expiry   time.Duration
	denylist Denylist
	nowFunc  func() time.Time
}

type ManagerOption func(*Manager)

func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithDenylist(d Denylist) ManagerOption {
	return func(m *Manager) {
		m.denylist = d
	}
}

func NewManager(secret, issuer string, expiry time.Duration, opts ...ManagerOption) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("[NewManager] empty signing secret")
	}
	m := &Manager{
		secret:   []byte(secret),
		issuer:   issuer,
		expiry:   expiry,
		denylist: NewMemoryDenylist(),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a new access token for the user.
func (m *Manager) Issue(userID, email string) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss":   m.issuer,
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(m.expiry).Unix(),
		"jti":   uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.Issue] sign")
	}
	return signed, nil
}

// Parse verifies the token and returns its claims. Expired, revoked and
// foreign tokens are all rejected.
func (m *Manager) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, m.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.Parse] %v", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	claims := &Claims{}
	claims.ID, _ = mc["jti"].(string)
	claims.Subject, _ = mc["sub"].(string)
	claims.Email, _ = mc["email"].(string)
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time.UTC()
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time.UTC()
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	if m.denylist.Denied(claims.ID) {
		return nil, apperrors.ErrTokenRevoked
	}
	return claims, nil
}

func (m *Manager) verificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return m.secret, nil
}

// Revoke stops the token from being accepted before it expires.
func (m *Manager) Revoke(claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	m.denylist.Deny(claims.ID, claims.ExpiresAt)
	return nil
}

// Cleanup forgets revocations for tokens that have expired.
func (m *Manager) Cleanup() int {
	return m.denylist.Purge(m.nowFunc())
}
