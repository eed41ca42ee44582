package commands

import "sync"

// Session holds state that lives for one editor session.
type Session struct {
	mu              sync.Mutex
	runBlockConsent bool
	lastAnswer      string
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// RunBlockConsent reports whether the user allowed running code blocks.
func (s *Session) RunBlockConsent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runBlockConsent
}

// GrantRunBlockConsent records consent until the session ends.
func (s *Session) GrantRunBlockConsent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runBlockConsent = true
}

// LastAnswer returns the most recent LLM answer.
func (s *Session) LastAnswer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnswer
}

// SetLastAnswer replaces the most recent LLM answer.
func (s *Session) SetLastAnswer(answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAnswer = answer
}
