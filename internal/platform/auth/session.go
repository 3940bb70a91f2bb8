package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a login does not match the
// configured credential pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidSession is returned for a missing, malformed, expired or revoked
// session token.
var ErrInvalidSession = errors.New("invalid or expired session")

// Credentials is the single username/password pair allowed to sign in.
// The password is only ever held as a bcrypt hash.
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials builds the credential pair. When passwordHash is set it must
// be a bcrypt hash and password is ignored; otherwise password is hashed.
func NewCredentials(username, password, passwordHash string) (*Credentials, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("password hash: %w", err)
		}
		return &Credentials{username: username, hash: []byte(passwordHash)}, nil
	}
	if password == "" {
		return nil, errors.New("password or password hash is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &Credentials{username: username, hash: hash}, nil
}

// Verify checks a login attempt. The bcrypt comparison runs even when the
// username is wrong so both failure paths take the same time.
func (c *Credentials) Verify(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	User string `json:"user"`
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	secret  []byte
	ttl     time.Duration
	revoked *RevocationStore
	now     func() time.Time
}

// NewSessionManager creates a manager signing with secret. Tokens expire
// after ttl. revoked may be nil, in which case logout only clears the cookie.
func NewSessionManager(secret []byte, ttl time.Duration, revoked *RevocationStore) *SessionManager {
	return &SessionManager{
		secret:  secret,
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue signs a new session token for user.
func (m *SessionManager) Issue(user string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		User: user,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Verify parses and validates a session token.
func (m *SessionManager) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if claims.User == "" {
		return nil, ErrInvalidSession
	}
	if m.revoked != nil && claims.ID != "" && m.revoked.IsRevoked(claims.ID) {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Revoke invalidates a session before its natural expiry.
func (m *SessionManager) Revoke(claims *Claims) {
	if m.revoked == nil || claims == nil || claims.ID == "" {
		return
	}
	expires := m.now().Add(m.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	m.revoked.Revoke(claims.ID, expires)
}
