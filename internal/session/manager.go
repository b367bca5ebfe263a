package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	entdomain "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	entservice "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/service"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

// Manager owns the live sessions of this process.
type Manager struct {
	ent       *entservice.Service
	persister wsservice.Persister
	wsOpt     wsservice.Options

	mu       sync.RWMutex
	sessions map[string]*Session
	onLogout []func(uid string)
}

func NewManager(ent *entservice.Service, persister wsservice.Persister, wsOpt wsservice.Options) *Manager {
	return &Manager{
		ent:       ent,
		persister: persister,
		wsOpt:     wsOpt,
		sessions:  make(map[string]*Session),
	}
}

// OnLogout registers a hook run after a session ends.
func (m *Manager) OnLogout(fn func(uid string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Login evaluates entitlement and opens the user's session. Logging in
// again re-evaluates and returns the existing session. A banned user is
// logged out and gets entdomain.ErrBanned.
func (m *Manager) Login(ctx context.Context, uid string) (*Session, entdomain.Evaluation, error) {
	ev, err := m.ent.EvaluateLogin(ctx, uid)
	if errors.Is(err, entdomain.ErrBanned) {
		m.Logout(uid)
		return nil, ev, err
	}
	if err != nil {
		return nil, ev, fmt.Errorf("evaluate login: %w", err)
	}

	if s, ok := m.lookup(uid); ok {
		s.SetProfile(ev.Profile)
		s.setNotice(ev.Notice)
		return s, ev, nil
	}

	ws, err := wsservice.Open(ctx, uid, m.persister, m.wsOpt)
	if err != nil {
		return nil, ev, err
	}

	s := &Session{UID: uid, Workspace: ws, profile: ev.Profile.Clone()}
	s.setNotice(ev.Notice)

	m.mu.Lock()
	if existing, ok := m.sessions[uid]; ok {
		m.mu.Unlock()
		existing.SetProfile(ev.Profile)
		return existing, ev, nil
	}
	m.sessions[uid] = s
	m.mu.Unlock()

	s.sub = m.ent.Subscribe(uid, func(p entdomain.UserProfile) { m.handlePush(uid, p) })
	s.sub.Start(ctx)

	logging.NewLogger(ctx).LogInfo("session.login", "session opened", "uid", uid, "plan", ev.Profile.Plan)
	return s, ev, nil
}

// Logout ends a session. Logging out twice is harmless.
func (m *Manager) Logout(uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	hooks := append([]func(string){}, m.onLogout...)
	m.mu.Unlock()

	if !ok {
		return
	}
	if s.sub != nil {
		s.sub.Stop()
	}
	for _, fn := range hooks {
		fn(uid)
	}
}

// Get returns the live session of uid.
func (m *Manager) Get(uid string) (*Session, error) {
	if s, ok := m.lookup(uid); ok {
		return s, nil
	}
	return nil, ErrNoSession
}

// Workspace resolves the workspace of a live session.
func (m *Manager) Workspace(uid string) (*wsservice.Workspace, error) {
	s, err := m.Get(uid)
	if err != nil {
		return nil, err
	}
	return s.Workspace, nil
}

// FeatureAllowed reports whether uid's live session is entitled to
// feature.
func (m *Manager) FeatureAllowed(uid, feature string) bool {
	s, ok := m.lookup(uid)
	return ok && s.FeatureAllowed(feature)
}

// Profile returns the cached profile of uid's live session.
func (m *Manager) Profile(uid string) (entdomain.UserProfile, error) {
	s, err := m.Get(uid)
	if err != nil {
		return entdomain.UserProfile{}, err
	}
	return s.Profile(), nil
}

// SetCredits updates the cached balance of uid's live session.
func (m *Manager) SetCredits(uid string, n int) {
	if s, ok := m.lookup(uid); ok {
		s.SetCredits(n)
	}
}

// SetUnlockCredits updates the cached unlock balance of uid's live
// session.
func (m *Manager) SetUnlockCredits(uid string, n int) {
	if s, ok := m.lookup(uid); ok {
		s.SetUnlockCredits(n)
	}
}

// UIDs lists the users with a live session.
func (m *Manager) UIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for uid := range m.sessions {
		out = append(out, uid)
	}
	return out
}

// RefreshAll re-evaluates entitlement for every live session so that
// sessions crossing midnight receive their refill.
func (m *Manager) RefreshAll(ctx context.Context) {
	log := logging.NewLogger(ctx)
	for _, uid := range m.UIDs() {
		s, ok := m.lookup(uid)
		if !ok {
			continue
		}
		ev, err := m.ent.EvaluateLogin(ctx, uid)
		if errors.Is(err, entdomain.ErrBanned) {
			m.Logout(uid)
			continue
		}
		if err != nil {
			log.LogError("session.refresh", err, "uid", uid)
			continue
		}
		s.SetProfile(ev.Profile)
		s.setNotice(ev.Notice)
	}
}

// handlePush runs on the subscription goroutine, so a forced logout is
// handed to another goroutine: Logout waits for that subscription to end.
func (m *Manager) handlePush(uid string, p entdomain.UserProfile) {
	s, ok := m.lookup(uid)
	if !ok {
		return
	}
	if p.Banned {
		go m.Logout(uid)
		return
	}
	s.SetProfile(p)
}

func (m *Manager) lookup(uid string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[uid]
	return s, ok
}
