// Package plancfg holds the immutable plan and pricing catalog. Defaults are
// compiled in; deployments may override individual tiers with a YAML file
// loaded once at startup. The catalog is passed explicitly to the enqueue
// service rather than referenced as a package global.
package plancfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"genqueue/internal/domain"
)

// Catalog maps plan tiers to their admission policies.
type Catalog struct {
	policies map[domain.PlanTier]domain.PlanPolicy
}

func defaults() map[domain.PlanTier]domain.PlanPolicy {
	return map[domain.PlanTier]domain.PlanPolicy{
		domain.PlanFree:       {PerHourLimit: 5, MaxConcurrent: 1},
		domain.PlanStarter:    {PerHourLimit: 20, MaxConcurrent: 2},
		domain.PlanGrowth:     {PerHourLimit: 50, MaxConcurrent: 4},
		domain.PlanPro:        {PerHourLimit: 150, MaxConcurrent: 8},
		domain.PlanEnterprise: {PerHourLimit: 1000, MaxConcurrent: 20},
	}
}

type fileFormat struct {
	Plans map[string]domain.PlanPolicy `yaml:"plans"`
}

// Load builds the catalog from defaults, optionally overridden by the YAML
// file at path. An empty path yields the compiled-in defaults.
func Load(path string) (*Catalog, error) {
	policies := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("plancfg: read %s: %w", path, err)
		}
		var f fileFormat
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("plancfg: parse %s: %w", path, err)
		}
		for name, policy := range f.Plans {
			tier := domain.NormalizePlanTier(name)
			if policy.PerHourLimit <= 0 || policy.MaxConcurrent <= 0 {
				return nil, fmt.Errorf("plancfg: plan %q requires positive limits", name)
			}
			policies[tier] = policy
		}
	}
	return &Catalog{policies: policies}, nil
}

// Policy returns the admission policy for a tier. Unknown tiers fall back to free.
func (c *Catalog) Policy(tier domain.PlanTier) domain.PlanPolicy {
	if p, ok := c.policies[tier]; ok {
		return p
	}
	return c.policies[domain.PlanFree]
}
