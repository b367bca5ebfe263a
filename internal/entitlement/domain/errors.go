package domain

import "errors"

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrBanned           = errors.New("account banned")
	ErrNoCredits        = errors.New("no credits left")
	ErrNoUnlockCredits  = errors.New("no unlock credits left")
	ErrFeatureNotInPlan = errors.New("feature not included in plan")
)
