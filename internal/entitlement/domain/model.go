package domain

// Profile field names as stored remotely. Partial updates are keyed by
// these.
const (
	FieldCredits        = "credits"
	FieldUnlockCredits  = "unlock_credits"
	FieldPlan           = "plan"
	FieldPlanExpiry     = "plan_expiry"
	FieldLastRefillDate = "last_refill_date"
	FieldFeatures       = "features"
	FieldBanned         = "banned"
)

// UserProfile is the remote entitlement record of a user.
type UserProfile struct {
	Credits        int      `json:"credits"`
	UnlockCredits  int      `json:"unlock_credits"`
	Plan           string   `json:"plan"`
	PlanExpiry     int64    `json:"plan_expiry"` // unix ms, 0 = never
	LastRefillDate string   `json:"last_refill_date"`
	Features       []string `json:"features"`
	Banned         bool     `json:"banned"`
}

func (p UserProfile) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Clone copies the feature slice so the result can be handed out freely.
func (p UserProfile) Clone() UserProfile {
	p.Features = append([]string(nil), p.Features...)
	return p
}

// PlanDefinition is a read-only plan record.
type PlanDefinition struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	DailyCredits  int      `json:"daily_credits"`
	UnlockCredits int      `json:"unlock_credits"`
	Features      []string `json:"features"`
}

// Plans indexes plan definitions by id.
type Plans map[string]PlanDefinition

// Evaluation is the outcome of evaluating a profile at a point in time.
// Updates holds only the fields that changed.
type Evaluation struct {
	Profile    UserProfile
	Updates    map[string]any
	Banned     bool
	Downgraded bool
	Refilled   bool
	// Granted is the number of credits the refill added.
	Granted        int
	FeaturesSynced bool
	Notice         string
}

func (e Evaluation) Changed() bool { return len(e.Updates) > 0 }
