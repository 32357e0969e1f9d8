package service

import "sync"

// Session holds the process-wide operator credential and role tag. It is set
// once at login and cleared at logout or on any unauthorized response; no
// other component mutates it. The gateway and relay sessions read the token
// through this store instead of ambient globals so both stay testable.
type Session struct {
	mu    sync.RWMutex
	token string
	role  string
}

func NewSession() *Session {
	return &Session{}
}

// Init installs a fresh credential, replacing whatever was there.
func (s *Session) Init(token, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.role = role
}

// Clear drops the credential. Called on logout and on any unauthorized
// response; the operator must log in again afterwards.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.role = ""
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Privileged reports whether the current role tag grants admin actions.
func (s *Session) Privileged() bool {
	return s.Role() == "admin"
}
