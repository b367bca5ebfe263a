package session

import (
	"errors"
	"sync"

	entdomain "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	entservice "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/service"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

var ErrNoSession = errors.New("login required")

// Session is one logged-in user: their workspace plus the cached remote
// profile.
type Session struct {
	UID       string
	Workspace *wsservice.Workspace

	mu      sync.Mutex
	profile entdomain.UserProfile
	notice  string
	sub     *entservice.Subscription
}

// Profile returns a copy of the cached profile.
func (s *Session) Profile() entdomain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// SetProfile replaces the cached profile wholesale.
func (s *Session) SetProfile(p entdomain.UserProfile) {
	s.mu.Lock()
	s.profile = p.Clone()
	s.mu.Unlock()
	s.Workspace.RevokeFeatures(s.FeatureAllowed)
}

// SetCredits updates the cached balance after a deduction.
func (s *Session) SetCredits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Credits = n
}

func (s *Session) SetUnlockCredits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.UnlockCredits = n
}

// FeatureAllowed reports whether the cached profile includes feature.
func (s *Session) FeatureAllowed(feature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.profile.Banned && s.profile.HasFeature(feature)
}

// TakeNotice returns and clears the pending user-facing notice.
func (s *Session) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notice
	s.notice = ""
	return n
}

func (s *Session) setNotice(n string) {
	if n == "" {
		return
	}
	s.mu.Lock()
	s.notice = n
	s.mu.Unlock()
}
