// Package auth models the sign-in provider the client talks to. The client
// only reads the current session token; refreshing it belongs to the provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSignedOut is returned when no session token is available.
	ErrSignedOut = errors.New("not signed in")
	// ErrTokenExpired is returned when the held token is a JWT past its expiry.
	ErrTokenExpired = errors.New("session token expired")
)

// TokenSource yields the bearer token for backend calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Provider is the full surface of the sign-in provider.
type Provider interface {
	TokenSource
	SignOut()
	Subscribe(fn func(token string)) (unsubscribe func())
}

// Static is a TokenSource for a fixed token. An empty Static yields no token
// and callers send requests unauthenticated.
type Static string

// Token returns the fixed token.
func (s Static) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// Session is an in-memory Provider. Tokens that parse as JWTs are checked
// for expiry; opaque tokens are passed through.
type Session struct {
	mu        sync.RWMutex
	token     string
	listeners map[int]func(string)
	nextID    int
	now       func() time.Time
}

// NewSession creates a signed-out Session.
func NewSession() *Session {
	return &Session{
		listeners: make(map[int]func(string)),
		now:       time.Now,
	}
}

// SignIn stores a token and notifies subscribers.
func (s *Session) SignIn(token string) {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	s.token = token
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(token)
	}
}

// SignOut forgets the token.
func (s *Session) SignOut() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Subscribe registers fn for sign-in events.
func (s *Session) Subscribe(fn func(token string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Token returns the current token.
func (s *Session) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", ErrSignedOut
	}

	exp, ok := expiry(token)
	if ok && !s.now().Before(exp) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return token, nil
}

// expiry reads the exp claim without verifying the signature; the signing
// key lives with the backend.
func expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
