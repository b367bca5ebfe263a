package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/engine"
	"github.com/sitecraft-ai/sitecraft-backend/internal/ledger"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
)

const plansTTL = 5 * time.Minute

// ProfileStore is the remote profile store.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (domain.UserProfile, error)
	CreateProfile(ctx context.Context, uid string, p domain.UserProfile) error
	UpdateProfile(ctx context.Context, uid string, updates map[string]any) error
	DeductCredit(ctx context.Context, uid string) (int, error)
	SpendUnlockCredit(ctx context.Context, uid string) (int, error)
	Plans(ctx context.Context) (domain.Plans, error)
	Watch(ctx context.Context, uid string, fn func(domain.UserProfile)) error
}

// Service applies entitlement rules against the remote store.
type Service struct {
	store  ProfileStore
	ledger ledger.Recorder
	seed   domain.Plans
	opt    engine.Options
	now    func() time.Time

	mu      sync.Mutex
	plans   domain.Plans
	plansAt time.Time
}

func New(store ProfileStore, rec ledger.Recorder, seed domain.Plans, opt engine.Options) *Service {
	if rec == nil {
		rec = ledger.Noop{}
	}
	return &Service{store: store, ledger: rec, seed: seed, opt: opt, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) DefaultPlan() string { return s.opt.DefaultPlan }

// Plans returns the remote plan definitions layered over the seed file.
// A failing remote read falls back to the last good set.
func (s *Service) Plans(ctx context.Context) domain.Plans {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plans != nil && s.now().Sub(s.plansAt) < plansTTL {
		return s.plans
	}

	merged := make(domain.Plans, len(s.seed))
	for id, p := range s.seed {
		merged[id] = p
	}

	remote, err := s.store.Plans(ctx)
	if err != nil {
		logging.NewLogger(ctx).LogWarn("entitlement.plans", err.Error())
		if s.plans != nil {
			return s.plans
		}
	}
	for id, p := range remote {
		merged[id] = p
	}

	s.plans = merged
	s.plansAt = s.now()
	return merged
}

// EvaluateLogin loads the profile, creating it on first login, and
// applies ban, expiry, feature sync and refill. A banned user gets
// ErrBanned together with the evaluation.
func (s *Service) EvaluateLogin(ctx context.Context, uid string) (domain.Evaluation, error) {
	plans := s.Plans(ctx)
	now := s.now()

	p, err := s.store.GetProfile(ctx, uid)
	if errors.Is(err, domain.ErrProfileNotFound) {
		fresh, err := engine.NewProfile(plans, now, s.opt)
		if err != nil {
			return domain.Evaluation{}, err
		}
		if err := s.store.CreateProfile(ctx, uid, fresh); err != nil {
			return domain.Evaluation{}, err
		}
		logging.NewLogger(ctx).LogInfo("entitlement.create_profile", "profile created", "uid", uid, "plan", fresh.Plan)
		return domain.Evaluation{Profile: fresh, Updates: map[string]any{}}, nil
	}
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("load profile: %w", err)
	}

	return s.apply(ctx, uid, p, plans, now)
}

// Reevaluate runs the rules on an already loaded profile.
func (s *Service) Reevaluate(ctx context.Context, uid string, p domain.UserProfile) (domain.Evaluation, error) {
	return s.apply(ctx, uid, p, s.Plans(ctx), s.now())
}

func (s *Service) apply(ctx context.Context, uid string, p domain.UserProfile, plans domain.Plans, now time.Time) (domain.Evaluation, error) {
	ev := engine.Evaluate(p, plans, now, s.opt)
	if ev.Banned {
		return ev, domain.ErrBanned
	}
	if !ev.Changed() {
		return ev, nil
	}

	if err := s.store.UpdateProfile(ctx, uid, ev.Updates); err != nil {
		return ev, fmt.Errorf("update profile: %w", err)
	}

	log := logging.NewLogger(ctx)
	if ev.Downgraded {
		log.LogInfo("entitlement.downgrade", ev.Notice, "uid", uid, "from", p.Plan)
		s.record(ctx, ledger.Entry{
			UserID:  uid,
			Kind:    ledger.KindDowngrade,
			Delta:   ev.Profile.Credits - p.Credits,
			Balance: ev.Profile.Credits,
			Reason:  "plan " + p.Plan + " expired",
		})
	}
	if ev.Granted > 0 {
		log.LogInfo("entitlement.refill", "daily refill", "uid", uid, "granted", ev.Granted)
		s.record(ctx, ledger.Entry{
			UserID:  uid,
			Kind:    ledger.KindRefill,
			Delta:   ev.Granted,
			Balance: ev.Profile.Credits,
			RefDate: ev.Profile.LastRefillDate,
		})
	}
	return ev, nil
}

// DeductCredit takes one generation credit. Returns the new balance.
func (s *Service) DeductCredit(ctx context.Context, uid string) (int, error) {
	left, err := s.store.DeductCredit(ctx, uid)
	if err != nil {
		return 0, err
	}
	s.record(ctx, ledger.Entry{UserID: uid, Kind: ledger.KindDeduct, Delta: -1, Balance: left, Reason: "generation"})
	return left, nil
}

// SpendUnlockCredit takes one unlock credit.
func (s *Service) SpendUnlockCredit(ctx context.Context, uid, reason string) (int, error) {
	left, err := s.store.SpendUnlockCredit(ctx, uid)
	if err != nil {
		return 0, err
	}
	s.record(ctx, ledger.Entry{UserID: uid, Kind: ledger.KindUnlock, Delta: -1, Balance: left, Reason: reason})
	return left, nil
}

// CanUseFeature reports whether the profile is entitled to feature.
func (s *Service) CanUseFeature(p domain.UserProfile, feature string) bool {
	return !p.Banned && p.HasFeature(feature)
}

// Watch forwards remote profile changes to fn until ctx is done.
func (s *Service) Watch(ctx context.Context, uid string, fn func(domain.UserProfile)) error {
	return s.store.Watch(ctx, uid, fn)
}

func (s *Service) record(ctx context.Context, e ledger.Entry) {
	if err := s.ledger.Record(ctx, e); err != nil {
		logging.NewLogger(ctx).LogError("entitlement.ledger", err, "uid", e.UserID, "kind", e.Kind)
	}
}
