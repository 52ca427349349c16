package scenario

import (
	"context"
	"fmt"
	"sort"

	"medical-triage/internal/catalog"
	"medical-triage/internal/platform/logging"
	"medical-triage/internal/ranking"
	"medical-triage/internal/symptom"
)

// Selector picks the scenarios whose rules hold for the current observations.
type Selector struct {
	scenarios catalog.ScenarioCatalog
}

func NewSelector(scenarios catalog.ScenarioCatalog) *Selector {
	return &Selector{scenarios: scenarios}
}

// Select gathers scenarios linked to the top conditions and scenarios whose
// rule keys intersect the present symptoms, deduplicates them by id, orders
// them by coverage and keeps those whose rule evaluates true. Malformed rules
// are logged and excluded.
func (s *Selector) Select(ctx context.Context, top []ranking.Entry, obs []symptom.Observation) ([]catalog.Scenario, error) {
	log := logging.FromContext(ctx)
	facts := symptom.PositiveSet(obs)

	seen := map[string]struct{}{}
	var candidates []catalog.Scenario
	add := func(list []catalog.Scenario) {
		for _, sc := range list {
			if _, ok := seen[sc.ID]; ok {
				continue
			}
			seen[sc.ID] = struct{}{}
			candidates = append(candidates, sc)
		}
	}

	for _, disease := range ranking.Diseases(top) {
		linked, err := s.scenarios.ListScenariosByDisease(ctx, disease)
		if err != nil {
			return nil, fmt.Errorf("scenarios for %q: %w", disease, err)
		}
		add(linked)
	}

	all, err := s.scenarios.ListScenarios(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	var bySymptoms []catalog.Scenario
	for _, sc := range all {
		if intersects(sc.RuleKeys, facts) {
			bySymptoms = append(bySymptoms, sc)
		}
	}
	add(bySymptoms)

	sort.SliceStable(candidates, func(i, j int) bool {
		return Coverage(candidates[i], facts) > Coverage(candidates[j], facts)
	})

	matched := make([]catalog.Scenario, 0, len(candidates))
	for _, sc := range candidates {
		ok, err := Evaluate(sc.Rule, facts)
		if err != nil {
			log.Warn("skipping scenario with malformed rule",
				"scenario_id", sc.ID,
				"scenario", sc.Name,
				"rule", sc.Rule,
				"error", err,
			)
			continue
		}
		if ok {
			matched = append(matched, sc)
		}
	}

	log.Debug("scenarios selected",
		"candidates", len(candidates),
		"matched", len(matched),
	)
	return matched, nil
}

// Coverage is the fraction of a scenario's rule keys that are present.
func Coverage(sc catalog.Scenario, facts map[string]struct{}) float64 {
	if len(sc.RuleKeys) == 0 {
		return 0
	}
	hit := 0
	for _, k := range sc.RuleKeys {
		if _, ok := facts[k]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(sc.RuleKeys))
}

func intersects(keys []string, facts map[string]struct{}) bool {
	for _, k := range keys {
		if _, ok := facts[k]; ok {
			return true
		}
	}
	return false
}
