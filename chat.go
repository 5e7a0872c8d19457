package storygen

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Session implements ChatSession for an Adapter. Messages are sent one at a
// time in call order; a turn pair is recorded only when the exchange
// produced a reply.
type Session struct {
	id                string
	systemInstruction string
	replayBudget      int

	adapter *Adapter
	history []Turn

	mu sync.Mutex
}

// Ensure Session implements ChatSession.
var _ ChatSession = (*Session)(nil)

func newSession(a *Adapter, systemInstruction string, replayBudget int) *Session {
	return &Session{
		id:                uuid.NewString(),
		systemInstruction: systemInstruction,
		replayBudget:      replayBudget,
		adapter:           a,
		history:           make([]Turn, 0),
	}
}

// SendMessage sends text with the replay window of prior turns and returns
// the reply, or "" on failure.
func (s *Session) SendMessage(ctx context.Context, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := ReplayWindow(s.history, s.replayBudget)
	if len(window) < len(s.history) {
		s.adapter.logger.Debug("trimmed chat replay",
			"session_id", s.id,
			"dropped_turns", len(s.history)-len(window),
		)
	}

	reply := s.adapter.converse(ctx, s.systemInstruction, window, text)
	if reply == "" {
		return ""
	}

	s.history = append(s.history,
		Turn{Role: RoleUser, Text: text},
		Turn{Role: RoleModel, Text: reply},
	)
	return reply
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SystemInstruction returns the instruction the session was created with.
func (s *Session) SystemInstruction() string {
	return s.systemInstruction
}

// History returns a copy of the recorded turns.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	historyCopy := make([]Turn, len(s.history))
	copy(historyCopy, s.history)
	return historyCopy
}
