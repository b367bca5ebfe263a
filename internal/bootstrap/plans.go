package bootstrap

import (
	"github.com/sitecraft-ai/sitecraft-backend/config"
	entdomain "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
)

// PlanTable turns the fallback plan file into the entitlement plan table.
func PlanTable(seeds []config.PlanSeed) entdomain.Plans {
	out := make(entdomain.Plans, len(seeds))
	for _, s := range seeds {
		out[s.ID] = entdomain.PlanDefinition{
			ID:            s.ID,
			Name:          s.Name,
			DailyCredits:  s.DailyCredits,
			UnlockCredits: s.UnlockCredits,
			Features:      append([]string(nil), s.Features...),
		}
	}
	return out
}
