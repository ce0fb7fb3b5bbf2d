// Package session keeps the logged-in Discord identity in a signed cookie.
//
// There is no server-side store: the cookie is the session. Its payload is an
// HS256-signed JWT carrying the user profile and access token, so a client
// can read it but cannot forge or extend it.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fuomag9/cheez-dashboard/internal/discord"
)

// CookieName is the name of the session cookie
const CookieName = "discord_session"

const issuer = "cheez-dashboard"

var (
	// ErrNoSession is returned when the request carries no session cookie
	ErrNoSession = errors.New("no session cookie")

	// ErrInvalidSession is returned when the cookie is malformed, forged or expired
	ErrInvalidSession = errors.New("invalid session")
)

// Session is an authenticated login
type Session struct {
	ID            string
	User          discord.User
	AccessToken   string
	EstablishedAt time.Time
	ExpiresAt     time.Time
}

type sessionClaims struct {
	User        discord.User `json:"user"`
	AccessToken string       `json:"access_token"`
	jwt.RegisteredClaims
}

// Manager encodes sessions into cookies and back
type Manager struct {
	secret []byte
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewManager creates a session manager. Cookies are marked Secure when secure is set.
func NewManager(secret string, maxAge time.Duration, secure bool) *Manager {
	return &Manager{
		secret: []byte(secret),
		maxAge: maxAge,
		secure: secure,
		now:    time.Now,
	}
}

// New creates a session for a freshly authenticated user
func (m *Manager) New(user discord.User, accessToken string) *Session {
	now := m.now().Truncate(time.Second)
	return &Session{
		ID:            uuid.New().String(),
		User:          user,
		AccessToken:   accessToken,
		EstablishedAt: now,
		ExpiresAt:     now.Add(m.maxAge),
	}
}

// Encode signs the session into a cookie value
func (m *Manager) Encode(s *Session) (string, error) {
	claims := sessionClaims{
		User:        s.User,
		AccessToken: s.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Issuer:    issuer,
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(s.EstablishedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return value, nil
}

// Decode verifies a cookie value and returns the session it carries
func (m *Manager) Decode(value string) (*Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if claims.User.ID == "" || claims.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidSession)
	}

	s := &Session{
		ID:          claims.ID,
		User:        claims.User,
		AccessToken: claims.AccessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		s.EstablishedAt = claims.IssuedAt.Time
	}
	return s, nil
}

// SetCookie writes the session cookie to the response
func (m *Manager) SetCookie(w http.ResponseWriter, s *Session) error {
	value, err := m.Encode(s)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.ExpiresAt.Sub(s.EstablishedAt).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie immediately
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // emitted as Max-Age=0
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest returns the session carried by the request's cookie.
// It returns [ErrNoSession] when there is no cookie and [ErrInvalidSession]
// when the cookie cannot be verified.
func (m *Manager) FromRequest(r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	return m.Decode(c.Value)
}
