package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("catalog entry not found")

// SymptomRule is a condition's expected probability for one symptom.
type SymptomRule struct {
	Name            string  `json:"name"`
	Probability     float64 `json:"probability"`
	MinSeverity     *int    `json:"minSeverity,omitempty"`
	MinDurationDays *int    `json:"minDurationDays,omitempty"`
}

// Condition is a candidate disease with its prior and symptom rules.
type Condition struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Prior        float64       `json:"prior"`
	SymptomRules []SymptomRule `json:"symptomRules"`
}

// Rule returns the symptom rule for key, if the condition has one.
func (c Condition) Rule(key string) (SymptomRule, bool) {
	for _, r := range c.SymptomRules {
		if r.Name == key {
			return r, true
		}
	}
	return SymptomRule{}, false
}

type Question struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Scenario bundles a trigger rule, linked conditions and follow-up questions.
type Scenario struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Rule        string     `json:"rule"`
	DiseaseKeys []string   `json:"diseaseKeys"`
	RuleKeys    []string   `json:"ruleKeys"`
	Questions   []Question `json:"questions"`
}

// QuestionText returns the text of the question asked for key.
func (s Scenario) QuestionText(key string) (string, bool) {
	for _, q := range s.Questions {
		if q.Key == key {
			return q.Text, true
		}
	}
	return "", false
}

// SymptomDefinition is one dictionary entry used by the extractor.
// Synonyms and Negations are plain lower-case phrases; the pattern fields hold RE2 expressions.
type SymptomDefinition struct {
	Key              string   `json:"key"`
	Synonyms         []string `json:"synonyms"`
	Patterns         []string `json:"patterns,omitempty"`
	Negations        []string `json:"negations"`
	NegationPatterns []string `json:"negationPatterns,omitempty"`
}

type ConditionCatalog interface {
	ListConditions(ctx context.Context) ([]Condition, error)
	GetCondition(ctx context.Context, id string) (*Condition, error)
}

type ScenarioCatalog interface {
	ListScenarios(ctx context.Context) ([]Scenario, error)
	GetScenario(ctx context.Context, id string) (*Scenario, error)
	ListScenariosByDisease(ctx context.Context, diseaseKey string) ([]Scenario, error)
}

type SymptomDictionary interface {
	ListSymptoms(ctx context.Context) ([]SymptomDefinition, error)
}

// Source is everything the dialog core reads from the catalog.
type Source interface {
	ConditionCatalog
	ScenarioCatalog
	SymptomDictionary
}

// Versioned is implemented by sources that can tell when their contents
// changed, so derived data can be rebuilt only then.
type Versioned interface {
	Version() uint64
}
