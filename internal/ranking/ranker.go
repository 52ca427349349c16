package ranking

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"medical-triage/internal/catalog"
	"medical-triage/internal/symptom"
)

const (
	// MissingPresencePenalty is the likelihood used for a present symptom the
	// condition has no rule for.
	MissingPresencePenalty = 0.01

	// SubThresholdFactor scales a rule's probability when the symptom is
	// present but below its severity or duration threshold.
	SubThresholdFactor = 0.5

	minProbability = 1e-12
)

// Entry is one ranked condition. Percentage is filled by Allocate.
type Entry struct {
	Disease    string  `json:"disease"`
	Score      float64 `json:"score"`
	Percentage int     `json:"percentage"`
}

// Ranker scores catalog conditions against observations.
type Ranker struct {
	conditions catalog.ConditionCatalog
}

func NewRanker(conditions catalog.ConditionCatalog) *Ranker {
	return &Ranker{conditions: conditions}
}

// Score loads the conditions and ranks them. A nil initialKeys scores the whole
// catalog; otherwise only conditions with a rule for one of the keys are kept.
func (r *Ranker) Score(ctx context.Context, obs []symptom.Observation, initialKeys []string) ([]Entry, error) {
	conditions, err := r.conditions.ListConditions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conditions: %w", err)
	}
	return Rank(conditions, obs, initialKeys), nil
}

// Rank is the pure scoring core: log-domain accumulation followed by softmax,
// sorted descending with ties kept in catalog order.
func Rank(conditions []catalog.Condition, obs []symptom.Observation, initialKeys []string) []Entry {
	candidates := filterCandidates(conditions, initialKeys)
	if len(candidates) == 0 {
		return []Entry{}
	}

	logScores := make([]float64, len(candidates))
	maxLog := math.Inf(-1)
	for i, c := range candidates {
		logScores[i] = logScore(c, obs)
		if logScores[i] > maxLog {
			maxLog = logScores[i]
		}
	}

	out := make([]Entry, len(candidates))
	sum := 0.0
	for i, c := range candidates {
		e := math.Exp(logScores[i] - maxLog)
		out[i] = Entry{Disease: c.Name, Score: e}
		sum += e
	}
	if sum == 0 {
		sum = 1
	}
	for i := range out {
		out[i].Score /= sum
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func filterCandidates(conditions []catalog.Condition, initialKeys []string) []catalog.Condition {
	if initialKeys == nil {
		return conditions
	}
	var out []catalog.Condition
	for _, c := range conditions {
		for _, r := range c.SymptomRules {
			if slices.Contains(initialKeys, r.Name) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func logScore(c catalog.Condition, obs []symptom.Observation) float64 {
	score := safeLog(c.Prior)
	for _, o := range obs {
		rule, ok := c.Rule(o.Key)
		switch {
		case o.Presence && ok:
			p := rule.Probability
			if !meetsThresholds(rule, o) {
				p *= SubThresholdFactor
			}
			score += safeLog(p)
		case o.Presence:
			score += math.Log(MissingPresencePenalty)
		case ok:
			score += safeLog(1 - rule.Probability)
		}
	}
	return score
}

func meetsThresholds(rule catalog.SymptomRule, o symptom.Observation) bool {
	if rule.MinSeverity != nil && valueOrZero(o.Severity) < *rule.MinSeverity {
		return false
	}
	if rule.MinDurationDays != nil && valueOrZero(o.DurationDays) < *rule.MinDurationDays {
		return false
	}
	return true
}

func valueOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// safeLog floors p so that zero priors or certain rules never yield -Inf.
func safeLog(p float64) float64 {
	return math.Log(math.Max(p, minProbability))
}

// Allocate assigns integer percentages that always sum to 100 for a
// non-empty list: every entry but the last gets floor(score/sum*100) and the
// last takes the remainder. A zero sum is floored to 1.
func Allocate(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	sum := 0.0
	for _, e := range out {
		sum += e.Score
	}
	if sum == 0 {
		sum = 1
	}

	cumulative := 0
	for i := range out {
		if i == len(out)-1 {
			out[i].Percentage = 100 - cumulative
			break
		}
		out[i].Percentage = int(math.Floor(out[i].Score / sum * 100))
		cumulative += out[i].Percentage
	}
	return out
}

// Top allocates percentages over the first n entries.
func Top(entries []Entry, n int) []Entry {
	if n < len(entries) {
		entries = entries[:n]
	}
	return Allocate(entries)
}

// Diseases returns the disease names in ranking order.
func Diseases(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Disease)
	}
	return out
}
