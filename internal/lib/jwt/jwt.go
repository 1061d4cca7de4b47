package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class tells access tokens and refresh tokens apart. Each class has its own
// secret and lifetime.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

var (
	ErrExpiredCredential = errors.New("credential expired")
	ErrInvalidCredential = errors.New("credential invalid")
	ErrInvalidConfig     = errors.New("invalid token configuration")
)

type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims is the payload of both token classes.
type Claims struct {
	UserID string `json:"uid"`
	Class  Class  `json:"typ"`
	jwt.RegisteredClaims
}

// Manager issues and verifies signed tokens. It is safe for concurrent use.
type Manager struct {
	cfg Config
	now func() time.Time
}

// New validates cfg and returns a Manager bound to it.
func New(cfg Config) (*Manager, error) {
	const op = "jwt.New"

	switch {
	case cfg.AccessSecret == "" || cfg.RefreshSecret == "":
		return nil, fmt.Errorf("%s: %w: secrets must not be empty", op, ErrInvalidConfig)
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, fmt.Errorf("%s: %w: access and refresh secrets must differ", op, ErrInvalidConfig)
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, fmt.Errorf("%s: %w: ttl must be positive", op, ErrInvalidConfig)
	}

	return &Manager{cfg: cfg, now: time.Now}, nil
}

// IssueAccess creates a short-lived access token for userID.
func (m *Manager) IssueAccess(userID string) (string, time.Time, error) {
	return m.issue(userID, ClassAccess)
}

// IssueRefresh creates a long-lived refresh token for userID.
func (m *Manager) IssueRefresh(userID string) (string, time.Time, error) {
	return m.issue(userID, ClassRefresh)
}

// RefreshTTL is the lifetime of refresh tokens, used for cookie max-age.
func (m *Manager) RefreshTTL() time.Duration {
	return m.cfg.RefreshTTL
}

func (m *Manager) issue(userID string, class Class) (string, time.Time, error) {
	const op = "jwt.issue"

	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%s: empty user id", op)
	}

	secret, ttl := m.keyFor(class)
	now := m.now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Class:  class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	// NumericDate truncates to seconds; report what is actually signed.
	return signed, expiresAt.Truncate(time.Second), nil
}

// Verify checks the signature and expiry of a token of the given class and
// returns its claims. An elapsed expiry is reported as ErrExpiredCredential
// before anything else; every other failure is ErrInvalidCredential.
func (m *Manager) Verify(tokenString string, class Class) (*Claims, error) {
	secret, _ := m.keyFor(class)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || m.expiredUnverified(tokenString) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if !token.Valid || claims.UserID == "" || claims.Class != class {
		return nil, ErrInvalidCredential
	}

	return claims, nil
}

// expiredUnverified reports whether a token that failed verification for some
// other reason carries an exp claim that has already passed.
func (m *Manager) expiredUnverified(tokenString string) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !m.now().Before(claims.ExpiresAt.Time)
}

func (m *Manager) keyFor(class Class) ([]byte, time.Duration) {
	if class == ClassRefresh {
		return []byte(m.cfg.RefreshSecret), m.cfg.RefreshTTL
	}
	return []byte(m.cfg.AccessSecret), m.cfg.AccessTTL
}
