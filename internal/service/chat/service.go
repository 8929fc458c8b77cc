package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
)

// Config tunes the session registry.
type Config struct {
	LanguageCode     string
	IdleTTL          time.Duration
	EvictionInterval time.Duration
	// MaxSessions caps live sessions; zero means unlimited.
	MaxSessions int
}

// Service maps browser tabs to their controllers. Sessions live in memory
// only and disappear when idle for longer than IdleTTL.
type Service struct {
	client ConversationClient
	cfg    Config
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewService bootstraps the in-memory session registry.
func NewService(client ConversationClient, cfg Config) *Service {
	return &Service{
		client:   client,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Controller),
	}
}

// CreateSession provisions and initializes a controller for a new tab.
func (s *Service) CreateSession(_ context.Context) (*Controller, error) {
	controller := NewController(s.client, s.cfg.LanguageCode)
	controller.now = s.now
	id := controller.Initialize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}
	s.sessions[id] = controller

	log.Info().Str("session", id).Int("active", len(s.sessions)).Msg("chat session created")
	return controller, nil
}

// GetSession retrieves a controller by session id and refreshes its idle
// clock, so a session handed to a caller is not evicted right after lookup.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	controller, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	controller.touch()
	return controller, nil
}

// DeleteSession drops a session and its transcript.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	log.Info().Str("session", sessionID).Msg("chat session deleted")
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunEviction removes idle sessions every EvictionInterval until ctx ends.
func (s *Service) RunEviction(ctx context.Context) error {
	if s.cfg.IdleTTL <= 0 || s.cfg.EvictionInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.EvictIdle(s.now()); n > 0 {
				log.Info().Int("evicted", n).Msg("evicted idle chat sessions")
			}
		}
	}
}

// EvictIdle removes sessions idle since before now-IdleTTL. Sessions with a
// call in flight are kept.
func (s *Service) EvictIdle(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, controller := range s.sessions {
		last, busy := controller.idleSince()
		if busy || !last.Before(cutoff) {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}
