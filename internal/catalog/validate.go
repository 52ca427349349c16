package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate checks a snapshot and returns the entries that passed together
// with every problem found. Invalid entries are dropped, valid ones are kept.
func Validate(snap Snapshot) (Snapshot, error) {
	var result *multierror.Error
	var out Snapshot

	for _, c := range snap.Conditions {
		if err := validateCondition(c); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out.Conditions = append(out.Conditions, c)
	}
	for _, s := range snap.Scenarios {
		if err := validateScenario(s); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out.Scenarios = append(out.Scenarios, s)
	}
	for _, d := range snap.Symptoms {
		if err := validateSymptom(d); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out.Symptoms = append(out.Symptoms, d)
	}

	return out, result.ErrorOrNil()
}

func validateCondition(c Condition) error {
	var result *multierror.Error
	if strings.TrimSpace(c.Name) == "" {
		result = multierror.Append(result, fmt.Errorf("condition %s: empty name", c.ID))
	}
	if c.Prior < 0 || c.Prior > 1 {
		result = multierror.Append(result, fmt.Errorf("condition %q: prior %v outside [0,1]", c.Name, c.Prior))
	}
	for _, r := range c.SymptomRules {
		if r.Name == "" {
			result = multierror.Append(result, fmt.Errorf("condition %q: symptom rule without name", c.Name))
		}
		if r.Probability < 0 || r.Probability > 1 {
			result = multierror.Append(result,
				fmt.Errorf("condition %q: rule %q probability %v outside [0,1]", c.Name, r.Name, r.Probability))
		}
	}
	return result.ErrorOrNil()
}

func validateScenario(s Scenario) error {
	var result *multierror.Error
	if s.ID == "" {
		result = multierror.Append(result, fmt.Errorf("scenario %q: empty id", s.Name))
	}
	if strings.TrimSpace(s.Rule) == "" {
		result = multierror.Append(result, fmt.Errorf("scenario %q: empty rule", s.Name))
	}
	for i, q := range s.Questions {
		if q.Key == "" {
			result = multierror.Append(result, fmt.Errorf("scenario %q: question %d has no key", s.Name, i))
		}
	}
	return result.ErrorOrNil()
}

func validateSymptom(d SymptomDefinition) error {
	var result *multierror.Error
	if d.Key == "" {
		result = multierror.Append(result, errors.New("symptom definition without key"))
	}
	if len(d.Synonyms) == 0 && len(d.Patterns) == 0 {
		result = multierror.Append(result, fmt.Errorf("symptom %q: no synonyms or patterns", d.Key))
	}
	for _, p := range slices.Concat(d.Patterns, d.NegationPatterns) {
		if _, err := regexp.Compile(p); err != nil {
			result = multierror.Append(result, fmt.Errorf("symptom %q: pattern %q: %w", d.Key, p, err))
		}
	}
	return result.ErrorOrNil()
}
