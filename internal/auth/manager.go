package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Manager mints and verifies the HS256 bearer tokens the studio and the
// secrets broker exchange. Both sides are configured with the same
// shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// sessionClaims is the JWT payload for a studio session.
type sessionClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

const issuer = "codemate"

// NewManager creates a Manager. ttl bounds how long minted sessions stay
// valid; zero defaults to one hour.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret must not be empty")
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Mint issues a signed session for the given identity.
func (m *Manager) Mint(userID, name string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := sessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Session{
		Token:     signed,
		UserID:    userID,
		Name:      name,
		ExpiresAt: expires,
	}, nil
}

// Verify parses a bearer token and returns the session it encodes.
// Expired or tampered tokens fail.
func (m *Manager) Verify(token string) (*Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	return &Session{
		Token:     token,
		UserID:    claims.Subject,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
