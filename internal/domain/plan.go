package domain

import "strings"

// PlanTier identifies a subscription tier. Unknown values are treated as free.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanStarter    PlanTier = "starter"
	PlanGrowth     PlanTier = "growth"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// NormalizePlanTier sanitizes free-form stored plan values into a known tier.
func NormalizePlanTier(plan string) PlanTier {
	switch PlanTier(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanStarter:
		return PlanStarter
	case PlanGrowth:
		return PlanGrowth
	case PlanPro:
		return PlanPro
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanFree
	}
}

func (t PlanTier) weight() int64 {
	switch t {
	case PlanEnterprise:
		return 0
	case PlanPro:
		return 1
	case PlanGrowth:
		return 2
	case PlanStarter:
		return 3
	default:
		return 4
	}
}

// PlanPolicy is the admission allowance attached to a tier.
type PlanPolicy struct {
	PerHourLimit  int `yaml:"per_hour_limit"`
	MaxConcurrent int `yaml:"max_concurrent"`
}
