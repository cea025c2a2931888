// Package session owns the current identity. The store is the single source
// of truth for "is authenticated"; every other component reads it and only
// the login, registration, and logout flows write it.
package session

import (
	"net/url"
	"sync"

	"vicinity/internal/models"
)

// Query parameter names accepted for deep-linked credential hydration.
const (
	queryUserID = "userId"
	queryToken  = "token"
	queryEmail  = "email"
)

// Subscriber is notified after every session change. A nil snapshot means
// the session was cleared.
type Subscriber func(s *models.Session)

// Store holds the current session.
type Store struct {
	mu      sync.RWMutex
	current *models.Session
	subs    []Subscriber
}

// NewStore returns an empty (anonymous) session store.
func NewStore() *Store {
	return &Store{}
}

// Set installs a new session. Sessions missing required fields are rejected.
func (s *Store) Set(sess models.Session) error {
	if !sess.Complete() {
		return models.NewValidationError("session requires userId and token")
	}

	s.mu.Lock()
	copied := sess
	s.current = &copied
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&copied)
	}
	return nil
}

// Clear destroys the current session.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

// Get returns a snapshot of the current session, if any.
func (s *Store) Get() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// IsAuthenticated reports whether a complete session is present.
func (s *Store) IsAuthenticated() bool {
	sess, ok := s.Get()
	return ok && sess.Complete()
}

// Subscribe registers a change listener. Listeners are invoked after the
// store state has changed, outside the store lock.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// HydrateFromQuery bootstraps the session from deep-link query parameters.
// Hydration is a no-op unless both userId and token are present; it reports
// whether a session was installed.
func (s *Store) HydrateFromQuery(values url.Values) bool {
	sess := models.Session{
		UserID: values.Get(queryUserID),
		Token:  values.Get(queryToken),
		Email:  values.Get(queryEmail),
	}
	if !sess.Complete() {
		return false
	}
	return s.Set(sess) == nil
}

// HydrateFromURL parses a deep-link URL and hydrates from its query string.
// Malformed URLs are ignored.
func (s *Store) HydrateFromURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return s.HydrateFromQuery(u.Query())
}
