package worker

import (
	"sync"

	"fabricguide/internal/models"
)

// Phase is the turn state of one conversation.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAwaitingReply Phase = "awaiting_reply"
)

type conversationState struct {
	mu      sync.RWMutex
	pending map[int64]bool
	typing  map[int64]bool
	history map[int64][]*models.Message
}

func newConversationState() *conversationState {
	return &conversationState{
		pending: make(map[int64]bool),
		typing:  make(map[int64]bool),
		history: make(map[int64][]*models.Message),
	}
}

// begin moves a conversation from Idle to AwaitingReply. It reports false
// when a turn is already in flight.
func (s *conversationState) begin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] {
		return false
	}
	s.pending[id] = true
	return true
}

// finish returns a conversation to Idle and clears its typing flag.
func (s *conversationState) finish(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	delete(s.typing, id)
	s.mu.Unlock()
}

func (s *conversationState) setTyping(id int64, typing bool) {
	s.mu.Lock()
	if typing {
		s.typing[id] = true
	} else {
		delete(s.typing, id)
	}
	s.mu.Unlock()
}

func (s *conversationState) isTyping(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing[id]
}

func (s *conversationState) phase(id int64) Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending[id] {
		return PhaseAwaitingReply
	}
	return PhaseIdle
}

func (s *conversationState) getHistory(id int64) ([]*models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.history[id]
	if !ok {
		return nil, false
	}
	return append([]*models.Message(nil), history...), true
}

func (s *conversationState) setHistory(id int64, history []*models.Message) {
	s.mu.Lock()
	s.history[id] = append([]*models.Message(nil), history...)
	s.mu.Unlock()
}

// appendHistory extends a cached history; uncached conversations stay uncached.
func (s *conversationState) appendHistory(id int64, msgs ...*models.Message) {
	s.mu.Lock()
	if history, ok := s.history[id]; ok {
		s.history[id] = append(history, msgs...)
	}
	s.mu.Unlock()
}

func (s *conversationState) dropHistory(id int64) {
	s.mu.Lock()
	delete(s.history, id)
	s.mu.Unlock()
}

func (s *conversationState) reset() {
	s.mu.Lock()
	s.history = make(map[int64][]*models.Message)
	s.mu.Unlock()
}
