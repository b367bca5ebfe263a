package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitecraft-ai/sitecraft-backend/internal/gallery/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	wsdomain "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

const maxTags = 10

type Store interface {
	Publish(ctx context.Context, e domain.Entry) (domain.Entry, error)
	List(ctx context.Context, tag string, limit int) ([]domain.Entry, error)
	Get(ctx context.Context, id string) (domain.Entry, error)
	Like(ctx context.Context, id, uid string) (int, error)
}

type Sessions interface {
	Workspace(uid string) (*wsservice.Workspace, error)
	SetUnlockCredits(uid string, n int)
}

type Unlocker interface {
	SpendUnlockCredit(ctx context.Context, uid, reason string) (int, error)
}

type Service struct {
	store    Store
	sessions Sessions
	unlock   Unlocker
}

func New(store Store, sessions Sessions, unlock Unlocker) *Service {
	return &Service{store: store, sessions: sessions, unlock: unlock}
}

// Publish shares the caller's active project.
func (s *Service) Publish(ctx context.Context, uid string, req domain.PublishRequest) (domain.Entry, error) {
	ws, err := s.sessions.Workspace(uid)
	if err != nil {
		return domain.Entry{}, err
	}

	p := ws.ActiveProject()
	if len(p.Files) == 0 {
		return domain.Entry{}, domain.ErrEmptyProject
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = p.Name
	}
	if err := wsservice.ValidateName(name); err != nil {
		return domain.Entry{}, err
	}
	tags := normalizeTags(req.Tags)

	e, err := s.store.Publish(ctx, domain.Entry{
		OwnerUID:   uid,
		Name:       name,
		Files:      p.Files,
		Tags:       tags,
		Restricted: req.Restricted,
	})
	if err != nil {
		return domain.Entry{}, fmt.Errorf("publish: %w", err)
	}
	if err := ws.MarkPublished(ctx, p.ID, tags); err != nil {
		logging.NewLogger(ctx).LogError("gallery.publish", err, "uid", uid, "project_id", p.ID)
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, tag string, limit int) ([]domain.Entry, error) {
	return s.store.List(ctx, strings.ToLower(strings.TrimSpace(tag)), limit)
}

func (s *Service) Like(ctx context.Context, uid, id string) (int, error) {
	return s.store.Like(ctx, id, uid)
}

// Clone copies a gallery entry into the caller's workspace as a new,
// active project. Restricted entries of other owners cost one unlock
// credit.
func (s *Service) Clone(ctx context.Context, uid, id string) (wsdomain.Project, error) {
	ws, err := s.sessions.Workspace(uid)
	if err != nil {
		return wsdomain.Project{}, err
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return wsdomain.Project{}, err
	}

	// the import below must not fail after an unlock credit is spent
	if err := wsservice.ValidateName(e.Name); err != nil {
		return wsdomain.Project{}, err
	}

	if e.Restricted && e.OwnerUID != uid {
		left, err := s.unlock.SpendUnlockCredit(ctx, uid, "clone "+e.ID)
		if err != nil {
			return wsdomain.Project{}, err
		}
		s.sessions.SetUnlockCredits(uid, left)
	}

	p, err := ws.ImportProject(ctx, e.Name, e.Files, e.Tags)
	if err != nil {
		return wsdomain.Project{}, err
	}
	logging.NewLogger(ctx).LogInfo("gallery.clone", "project cloned", "uid", uid, "gallery_id", e.ID, "restricted", e.Restricted)
	return p, nil
}

func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
