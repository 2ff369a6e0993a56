package auth

import (
	"context"
	"sync"

	"github.com/halalway/halalway/internal/core/domain"
)

// Session is the auth state of one connected client. It implements
// ports.AuthSession: every SignIn and SignOut is pushed to subscribers.
type Session struct {
	verifier *Verifier

	mu        sync.Mutex
	user      *domain.AuthUser
	nextID    int
	listeners map[int]func(*domain.AuthUser)
}

// NewSession creates a signed-out session.
func NewSession(verifier *Verifier) *Session {
	return &Session{verifier: verifier, listeners: make(map[int]func(*domain.AuthUser))}
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *domain.AuthUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SignIn verifies token and switches the session to its user.
func (s *Session) SignIn(token string) (*domain.AuthUser, error) {
	user, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	s.set(user)
	return user, nil
}

// SignOut clears the session.
func (s *Session) SignOut(_ context.Context) error {
	s.set(nil)
	return nil
}

// Subscribe registers cb for every auth state change.
func (s *Session) Subscribe(cb func(*domain.AuthUser)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) set(user *domain.AuthUser) {
	s.mu.Lock()
	s.user = user
	cbs := make([]func(*domain.AuthUser), 0, len(s.listeners))
	for _, cb := range s.listeners {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(user)
	}
}
