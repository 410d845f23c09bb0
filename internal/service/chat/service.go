package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/chat"
)

var (
	ErrSessionIDRequired = errors.New("session id is required")
	ErrSessionNotFound   = errors.New("session not found")
)

// Config bounds the in-memory store.
type Config struct {
	// MaxMessages is the per-session history cap; older turns are evicted first.
	MaxMessages int
	// MaxSessions evicts the least recently used session once exceeded. 0 means unbounded.
	MaxSessions int
	// DefaultDirectory seeds the working directory of new sessions.
	DefaultDirectory string
}

type entry struct {
	session  chat.Session
	history  []chat.Turn
	lastUsed uint64
}

// Service owns per-session history and working directories for the life of the server.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	clock    uint64
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

// NewService bootstraps the in-memory session store.
func NewService(cfg Config, logger *log.Logger) *Service {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}
	if cfg.MaxSessions < 0 {
		cfg.MaxSessions = 0
	}
	return &Service{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		logger:   logger.WithPrefix("session"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ResolveID returns the trimmed id, or a fresh UUID when the client sent none.
func ResolveID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

// GetOrCreate returns the session, creating it with empty history on first reference.
func (s *Service) GetOrCreate(_ context.Context, sessionID string) (chat.Session, error) {
	if sessionID == "" {
		return chat.Session{}, ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(sessionID).session, nil
}

// GetOrCreateWithHistory returns the session and a copy of its history from
// one critical section, so eviction cannot fall between the two reads.
func (s *Service) GetOrCreateWithHistory(_ context.Context, sessionID string) (chat.Session, []chat.Turn, error) {
	if sessionID == "" {
		return chat.Session{}, nil, ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(sessionID)
	copied := make([]chat.Turn, len(e.history))
	copy(copied, e.history)
	return e.session, copied, nil
}

// AppendTurn appends a turn and truncates history to the configured cap.
func (s *Service) AppendTurn(_ context.Context, sessionID string, turn chat.Turn) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(sessionID)
	if turn.Directory == "" {
		turn.Directory = e.session.WorkingDirectory
	}
	e.history = append(e.history, turn)
	if overflow := len(e.history) - s.cfg.MaxMessages; overflow > 0 {
		trimmed := make([]chat.Turn, s.cfg.MaxMessages)
		copy(trimmed, e.history[overflow:])
		e.history = trimmed
	}
	return nil
}

// History returns a copy of the stored turns, oldest first.
func (s *Service) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Turn, len(e.history))
	copy(copied, e.history)
	return copied, nil
}

// SetWorkingDirectory records a new working directory for the session.
func (s *Service) SetWorkingDirectory(_ context.Context, sessionID, dir string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(sessionID)
	e.session.WorkingDirectory = dir
	return nil
}

// Len reports the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) getOrCreateLocked(sessionID string) *entry {
	s.clock++
	if e, ok := s.sessions[sessionID]; ok {
		e.lastUsed = s.clock
		e.session.LastActive = s.now()
		return e
	}

	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.evictLocked()
	}

	now := s.now()
	e := &entry{
		session: chat.Session{
			ID:               sessionID,
			WorkingDirectory: s.cfg.DefaultDirectory,
			CreatedAt:        now,
			LastActive:       now,
		},
		history:  make([]chat.Turn, 0, 16),
		lastUsed: s.clock,
	}
	s.sessions[sessionID] = e
	s.logger.Info("session created", "session", shortID(sessionID), "dir", e.session.WorkingDirectory)
	return e
}

func (s *Service) evictLocked() {
	var (
		oldestID string
		oldest   uint64
	)
	for id, e := range s.sessions {
		if oldestID == "" || e.lastUsed < oldest {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Info("session evicted", "session", shortID(oldestID), "cap", s.cfg.MaxSessions)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
