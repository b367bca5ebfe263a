package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"

	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
)

// FirebaseStore reads and writes profiles in the Firebase Realtime
// Database at users/{uid}/profile and plans at plans/{id}.
type FirebaseStore struct {
	client       *db.Client
	pollInterval time.Duration
}

func NewFirebaseStore(client *db.Client, pollInterval time.Duration) *FirebaseStore {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &FirebaseStore{client: client, pollInterval: pollInterval}
}

func (s *FirebaseStore) GetProfile(ctx context.Context, uid string) (domain.UserProfile, error) {
	var p *domain.UserProfile
	if err := s.profileRef(uid).Get(ctx, &p); err != nil {
		return domain.UserProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	return *p, nil
}

func (s *FirebaseStore) CreateProfile(ctx context.Context, uid string, p domain.UserProfile) error {
	if p.Features == nil {
		p.Features = []string{}
	}
	if err := s.profileRef(uid).Set(ctx, p); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateProfile writes only the given fields, never the whole document.
func (s *FirebaseStore) UpdateProfile(ctx context.Context, uid string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if err := s.profileRef(uid).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (s *FirebaseStore) DeductCredit(ctx context.Context, uid string) (int, error) {
	return s.decrement(ctx, uid, domain.FieldCredits, domain.ErrNoCredits)
}

func (s *FirebaseStore) SpendUnlockCredit(ctx context.Context, uid string) (int, error) {
	return s.decrement(ctx, uid, domain.FieldUnlockCredits, domain.ErrNoUnlockCredits)
}

func (s *FirebaseStore) decrement(ctx context.Context, uid, field string, empty error) (int, error) {
	node, err := s.profileRef(uid).Child(field).Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var n int
		if err := tn.Unmarshal(&n); err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, empty
		}
		return n - 1, nil
	})
	if err != nil {
		if errors.Is(err, empty) {
			return 0, empty
		}
		return 0, fmt.Errorf("failed to update %s: %w", field, err)
	}

	var remaining int
	if err := node.Unmarshal(&remaining); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return remaining, nil
}

func (s *FirebaseStore) Plans(ctx context.Context) (domain.Plans, error) {
	var plans domain.Plans
	if err := s.client.NewRef("plans").Get(ctx, &plans); err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}
	for id, p := range plans {
		if p.ID == "" {
			p.ID = id
			plans[id] = p
		}
	}
	return plans, nil
}

// Watch polls the profile with ETags and calls fn whenever it changed,
// until ctx is done. The admin SDK offers no streaming listener.
func (s *FirebaseStore) Watch(ctx context.Context, uid string, fn func(domain.UserProfile)) error {
	ref := s.profileRef(uid)

	var current *domain.UserProfile
	etag, err := ref.GetWithETag(ctx, &current)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var next *domain.UserProfile
			changed, newTag, err := ref.GetIfChanged(ctx, etag, &next)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logging.NewLogger(ctx).LogWarn("entitlement.watch", err.Error(), "uid", uid)
				continue
			}
			if !changed {
				continue
			}
			etag = newTag
			if next != nil {
				fn(*next)
			}
		}
	}
}

func (s *FirebaseStore) profileRef(uid string) *db.Ref {
	return s.client.NewRef("users/" + uid + "/profile")
}
