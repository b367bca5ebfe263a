package service

import (
	"context"
	"sync"

	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
)

// Subscription forwards profile pushes for one session. It is started
// at login and stopped at logout.
type Subscription struct {
	svc *Service
	uid string
	fn  func(domain.UserProfile)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Service) Subscribe(uid string, fn func(domain.UserProfile)) *Subscription {
	return &Subscription{svc: s, uid: uid, fn: fn}
}

// Start begins watching. Calling Start on a running subscription does
// nothing.
func (sub *Subscription) Start(parent context.Context) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	sub.cancel = cancel
	sub.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := sub.svc.Watch(ctx, sub.uid, sub.fn); err != nil {
			logging.NewLogger(ctx).LogError("entitlement.subscription", err, "uid", sub.uid)
		}
	}(sub.done)
}

// Stop cancels the watch and waits for it to end.
func (sub *Subscription) Stop() {
	sub.mu.Lock()
	cancel, done := sub.cancel, sub.done
	sub.cancel, sub.done = nil, nil
	sub.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
