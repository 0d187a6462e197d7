package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
)

const maxTokenAttempts = 8

var (
	ErrClosed         = errors.New("session store is closed")
	ErrTokenExhausted = errors.New("could not generate a unique session token")
)

// Store maps opaque tokens to subjects for the lifetime of a run. It is safe
// for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	closed   bool

	newToken func() string
	now      func() time.Time
	metrics  *metrics.Metrics
}

type Option func(*Store)

// WithMetrics reports the number of live sessions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]model.Session),
		newToken: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new token for subject. An existing token is never
// overwritten.
func (s *Store) Create(subject string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Session{}, ErrClosed
	}

	for i := 0; i < maxTokenAttempts; i++ {
		token := s.newToken()
		if _, taken := s.sessions[token]; taken || token == "" {
			continue
		}
		sess := model.Session{Token: token, Subject: subject, CreatedAt: s.now().UTC()}
		s.sessions[token] = sess
		s.metrics.SetSessions(len(s.sessions))
		return sess, nil
	}
	return model.Session{}, ErrTokenExhausted
}

func (s *Store) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	return sess.Subject, true
}

// Invalidate removes token and reports whether it was present.
func (s *Store) Invalidate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	s.metrics.SetSessions(len(s.sessions))
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session. Later calls to Create fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]model.Session)
	s.closed = true
	s.metrics.SetSessions(0)
	return nil
}
