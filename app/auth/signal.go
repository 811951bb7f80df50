package auth

import (
	"sync"
)

// Identity is the signed-in user as seen by the rest of the application.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Event is emitted on every auth transition. A nil Identity means the user
// behind UserID signed out.
type Event struct {
	UserID   string
	Identity *Identity
}

func (e Event) SignedOut() bool {
	return e.Identity == nil
}

// Signal fans auth events out to subscribers. Delivery is synchronous and in
// subscription order; subscribers must not block.
type Signal struct {
	mu          sync.RWMutex
	subscribers []func(Event)
}

func NewSignal() *Signal {
	return &Signal{}
}

func (s *Signal) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Signal) Emit(event Event) {
	s.mu.RLock()
	subscribers := make([]func(Event), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subscribers {
		fn(event)
	}
}
