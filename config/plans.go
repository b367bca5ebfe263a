package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanSeed is one entry of the fallback plan table.
type PlanSeed struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	DailyCredits  int      `yaml:"daily_credits"`
	UnlockCredits int      `yaml:"unlock_credits"`
	Features      []string `yaml:"features"`
}

type planFile struct {
	Plans []PlanSeed `yaml:"plans"`
}

// LoadPlans reads the fallback plan table from a YAML file.
func LoadPlans(path string) ([]PlanSeed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}
	return ParsePlans(b)
}

func ParsePlans(b []byte) ([]PlanSeed, error) {
	var f planFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}

	seen := make(map[string]bool, len(f.Plans))
	for _, p := range f.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan without id")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return f.Plans, nil
}
