package cronjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher re-evaluates entitlement for live sessions.
type Refresher interface {
	RefreshAll(ctx context.Context)
}

type Scheduler struct {
	spec      string
	loc       *time.Location
	refresher Refresher
	cron      *cron.Cron
}

// NewScheduler runs the refresher on spec (six fields, seconds first)
// in loc.
func NewScheduler(spec string, loc *time.Location, r Refresher) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{spec: spec, loc: loc, refresher: r}
}

// Start registers the daily sweep and starts the cron runner.
func (s *Scheduler) Start() error {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(s.loc))

	if _, err := c.AddFunc(s.spec, s.runSweep); err != nil {
		return err
	}

	s.cron = c
	c.Start()
	slog.Info("cron scheduler started", "job", "entitlement_sweep", "spec", s.spec, "tz", s.loc.String())
	return nil
}

// Stop halts the runner and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSweep() {
	start := time.Now()
	s.refresher.RefreshAll(context.Background())
	slog.Info("entitlement sweep finished", "took", time.Since(start).String())
}
