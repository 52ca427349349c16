package ranking

import (
	"context"
	"math"
	"reflect"
	"testing"

	"medical-triage/internal/catalog"
	"medical-triage/internal/symptom"
)

func intPtr(v int) *int { return &v }

func testConditions() []catalog.Condition {
	return []catalog.Condition{
		{ID: "1", Name: "flu", Prior: 0.1, SymptomRules: []catalog.SymptomRule{
			{Name: "cough", Probability: 0.5},
			{Name: "fever", Probability: 0.95},
		}},
		{ID: "2", Name: "bronchitis", Prior: 0.1, SymptomRules: []catalog.SymptomRule{
			{Name: "cough", Probability: 0.9, MinDurationDays: intPtr(3)},
		}},
		{ID: "3", Name: "migraine", Prior: 0.2, SymptomRules: []catalog.SymptomRule{
			{Name: "headache", Probability: 0.9},
		}},
	}
}

func TestRank_CoughWithoutFever(t *testing.T) {
	obs := []symptom.Observation{
		{Key: "cough", Presence: true, Severity: intPtr(symptom.SeverityHigh), DurationDays: intPtr(5)},
		{Key: "fever", Presence: false},
	}

	got := Rank(testConditions(), obs, []string{"cough"})
	if len(got) != 2 {
		t.Fatalf("want 2 candidates after filtering, got %+v", got)
	}
	if got[0].Disease != "bronchitis" || got[1].Disease != "flu" {
		t.Fatalf("unexpected order: %+v", got)
	}

	sum := got[0].Score + got[1].Score
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("scores should sum to 1, got %v", sum)
	}
}

func TestRank_SubThresholdGetsHalfCredit(t *testing.T) {
	conditions := []catalog.Condition{
		{Name: "a", Prior: 0.5, SymptomRules: []catalog.SymptomRule{{Name: "cough", Probability: 0.8, MinDurationDays: intPtr(3)}}},
		{Name: "b", Prior: 0.5, SymptomRules: []catalog.SymptomRule{{Name: "cough", Probability: 0.4}}},
	}
	obs := []symptom.Observation{{Key: "cough", Presence: true, DurationDays: intPtr(1)}}

	got := Rank(conditions, obs, nil)
	// 0.8*0.5 == 0.4: equal scores keep catalog order.
	if got[0].Disease != "a" || math.Abs(got[0].Score-got[1].Score) > 1e-12 {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}

func TestRank_UnrelatedSymptomPenalty(t *testing.T) {
	obs := []symptom.Observation{{Key: "headache", Presence: true}}

	got := Rank(testConditions(), obs, nil)
	if got[0].Disease != "migraine" {
		t.Fatalf("migraine should lead: %+v", got)
	}
	if got[0].Score < 0.95 {
		t.Fatalf("penalty should dominate, got %v", got[0].Score)
	}
}

func TestRank_EmptyCandidates(t *testing.T) {
	if got := Rank(testConditions(), nil, []string{}); len(got) != 0 {
		t.Fatalf("want empty, got %+v", got)
	}
	if got := Rank(nil, nil, nil); len(got) != 0 {
		t.Fatalf("want empty, got %+v", got)
	}
}

func TestRank_ZeroPriorStaysFinite(t *testing.T) {
	conditions := []catalog.Condition{
		{Name: "a", Prior: 0, SymptomRules: []catalog.SymptomRule{{Name: "x", Probability: 1}}},
		{Name: "b", Prior: 0, SymptomRules: []catalog.SymptomRule{{Name: "x", Probability: 1}}},
	}
	obs := []symptom.Observation{{Key: "x", Presence: false}}

	got := Rank(conditions, obs, nil)
	for _, e := range got {
		if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
			t.Fatalf("non-finite score: %+v", got)
		}
	}
}

func TestRank_Deterministic(t *testing.T) {
	obs := []symptom.Observation{
		{Key: "cough", Presence: true},
		{Key: "headache", Presence: false},
	}
	first := Rank(testConditions(), obs, nil)
	for i := 0; i < 10; i++ {
		if again := Rank(testConditions(), obs, nil); !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestAllocate_SumsToHundred(t *testing.T) {
	cases := [][]float64{
		{1},
		{0.5, 0.5},
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.333, 0.333, 0.333, 0.001},
		{0, 0, 0},
	}
	for _, scores := range cases {
		entries := make([]Entry, len(scores))
		for i, s := range scores {
			entries[i] = Entry{Disease: "d", Score: s}
		}
		total := 0
		for _, e := range Allocate(entries) {
			total += e.Percentage
		}
		if total != 100 {
			t.Fatalf("scores %v: percentages sum to %d", scores, total)
		}
	}
}

func TestAllocate_FloorWithRemainderToLast(t *testing.T) {
	got := Allocate([]Entry{{Score: 1.0 / 3}, {Score: 1.0 / 3}, {Score: 1.0 / 3}})
	want := []int{33, 33, 34}
	for i, e := range got {
		if e.Percentage != want[i] {
			t.Fatalf("entry %d: want %d, got %d", i, want[i], e.Percentage)
		}
	}
}

func TestTop(t *testing.T) {
	entries := []Entry{{Disease: "a", Score: 0.4}, {Disease: "b", Score: 0.3}, {Disease: "c", Score: 0.2}, {Disease: "d", Score: 0.1}}

	top := Top(entries, 2)
	if len(top) != 2 || top[0].Percentage+top[1].Percentage != 100 {
		t.Fatalf("unexpected top: %+v", top)
	}
	if top[0].Percentage != 57 {
		t.Fatalf("want 57 for 0.4/0.7, got %d", top[0].Percentage)
	}
	if entries[0].Percentage != 0 {
		t.Fatalf("Top must not mutate its input")
	}
}

type stubConditions struct {
	catalog.ConditionCatalog
	list []catalog.Condition
}

func (s stubConditions) ListConditions(context.Context) ([]catalog.Condition, error) {
	return s.list, nil
}

func TestRanker_Score(t *testing.T) {
	r := NewRanker(stubConditions{list: testConditions()})
	got, err := r.Score(context.Background(), []symptom.Observation{{Key: "headache", Presence: true}}, []string{"headache"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(got) != 1 || got[0].Disease != "migraine" || got[0].Score != 1 {
		t.Fatalf("unexpected: %+v", got)
	}
}
