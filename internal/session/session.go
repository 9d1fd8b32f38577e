// Package session tracks whether the user has authenticated recently.
//
// There is no timer: expiry is only observed through IsValid, so a stale
// session stays nominally authenticated until it is checked or logged out.
package session

import (
	"sync"
	"time"
)

// State is a snapshot of a Session.
type State struct {
	Authenticated bool
	Since         time.Time
}

// Session is a two-state machine: unauthenticated, or authenticated since a
// timestamp. The zero value is unauthenticated and ready to use.
type Session struct {
	mu    sync.Mutex
	state State
}

// RecordSuccess moves to authenticated-since-now from any state.
func (s *Session) RecordSuccess(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Authenticated: true, Since: now}
}

// Logout moves to unauthenticated. Calling it twice is harmless.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}

// IsValid reports whether the session is authenticated and now - since <= timeout.
func (s *Session) IsValid(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Authenticated {
		return false
	}
	return now.Sub(s.state.Since) <= timeout
}

// State returns the stored state without evaluating expiry.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Expire checks the session like IsValid and, under the same lock, moves a
// stale authenticated session to unauthenticated. expired reports whether
// that reset happened.
func (s *Session) Expire(now time.Time, timeout time.Duration) (valid, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Authenticated {
		return false, false
	}
	if now.Sub(s.state.Since) <= timeout {
		return true, false
	}
	s.state = State{}
	return false, true
}
