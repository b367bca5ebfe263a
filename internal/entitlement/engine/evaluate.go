// Package engine holds the pure entitlement rules: ban, plan expiry,
// feature sync and the daily credit refill.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
)

const dateLayout = "2006-01-02"

type Options struct {
	DefaultPlan string
	Location    *time.Location
}

// Today is the refill date string for now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(dateLayout)
}

// NewProfile builds the profile written on a user's first login.
func NewProfile(plans domain.Plans, now time.Time, opt Options) (domain.UserProfile, error) {
	def, ok := plans[opt.DefaultPlan]
	if !ok {
		return domain.UserProfile{}, fmt.Errorf("default plan %q: %w", opt.DefaultPlan, domain.ErrPlanNotFound)
	}
	return domain.UserProfile{
		Credits:        def.DailyCredits,
		UnlockCredits:  def.UnlockCredits,
		Plan:           def.ID,
		LastRefillDate: Today(now, opt.Location),
		Features:       append([]string(nil), def.Features...),
	}, nil
}

// Evaluate applies the entitlement rules in order: ban, expiry, feature
// sync, daily refill. It never mutates its input.
func Evaluate(p domain.UserProfile, plans domain.Plans, now time.Time, opt Options) domain.Evaluation {
	p = p.Clone()
	ev := domain.Evaluation{Updates: map[string]any{}}

	if p.Banned {
		ev.Banned = true
		ev.Profile = p
		return ev
	}

	if p.Plan != opt.DefaultPlan && p.PlanExpiry > 0 && now.UnixMilli() > p.PlanExpiry {
		def := plans[opt.DefaultPlan]
		expired := p.Plan

		p.Plan = opt.DefaultPlan
		p.Credits = def.DailyCredits
		p.UnlockCredits = 0
		p.Features = append([]string(nil), def.Features...)
		p.PlanExpiry = 0

		ev.Updates[domain.FieldPlan] = p.Plan
		ev.Updates[domain.FieldCredits] = p.Credits
		ev.Updates[domain.FieldUnlockCredits] = 0
		ev.Updates[domain.FieldFeatures] = p.Features
		ev.Updates[domain.FieldPlanExpiry] = int64(0)
		ev.Downgraded = true
		ev.Notice = fmt.Sprintf("Your %s plan has expired. You are now on the %s plan.", planName(plans, expired), planName(plans, p.Plan))
	} else if plan, ok := plans[p.Plan]; ok && !sameSet(p.Features, plan.Features) {
		p.Features = append([]string(nil), plan.Features...)
		ev.Updates[domain.FieldFeatures] = p.Features
		ev.FeaturesSynced = true
	}

	today := Today(now, opt.Location)
	if p.LastRefillDate != today {
		floor := plans[p.Plan].DailyCredits
		if p.Credits < floor {
			ev.Granted = floor - p.Credits
			p.Credits = floor
			ev.Updates[domain.FieldCredits] = p.Credits
		}
		p.LastRefillDate = today
		ev.Updates[domain.FieldLastRefillDate] = today
		ev.Refilled = true
	}

	ev.Profile = p
	return ev
}

func planName(plans domain.Plans, id string) string {
	if p, ok := plans[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
