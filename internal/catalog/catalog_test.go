package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Conditions: []Condition{
			{ID: "c1", Name: "flu", Prior: 0.1, SymptomRules: []SymptomRule{{Name: "fever", Probability: 0.9}}},
			{ID: "c2", Name: "cold", Prior: 0.2, SymptomRules: []SymptomRule{{Name: "cough", Probability: 0.6}}},
		},
		Scenarios: []Scenario{
			{ID: "s1", Name: "flu check", Rule: "fever", DiseaseKeys: []string{"flu"}, RuleKeys: []string{"fever"},
				Questions: []Question{{Key: "chills", Text: "Do you have chills?"}}},
			{ID: "s2", Name: "cold check", Rule: "cough", DiseaseKeys: []string{"cold", "flu"}, RuleKeys: []string{"cough"}},
		},
		Symptoms: []SymptomDefinition{
			{Key: "fever", Synonyms: []string{"fever"}, Negations: []string{"no fever"}},
		},
	}
}

func TestMemoryCatalog_Lookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSnapshot())

	byFlu, err := m.ListScenariosByDisease(ctx, "flu")
	if err != nil {
		t.Fatalf("by disease: %v", err)
	}
	if len(byFlu) != 2 {
		t.Fatalf("want 2 scenarios linked to flu, got %d", len(byFlu))
	}

	s, err := m.GetScenario(ctx, "s1")
	if err != nil {
		t.Fatalf("get scenario: %v", err)
	}
	if txt, ok := s.QuestionText("chills"); !ok || txt != "Do you have chills?" {
		t.Fatalf("question text: got %q %v", txt, ok)
	}

	if _, err := m.GetScenario(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := m.GetCondition(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryCatalog_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSnapshot())

	list, _ := m.ListConditions(ctx)
	list[0].Name = "changed"

	again, _ := m.ListConditions(ctx)
	if again[0].Name != "flu" {
		t.Fatalf("catalog mutated through returned slice")
	}
}

func TestValidate_DropsInvalidEntries(t *testing.T) {
	snap := testSnapshot()
	snap.Conditions = append(snap.Conditions, Condition{ID: "bad", Name: "bad", Prior: 1.5})
	snap.Scenarios = append(snap.Scenarios, Scenario{ID: "s3", Name: "empty rule"})
	snap.Symptoms = append(snap.Symptoms, SymptomDefinition{Key: "broken", Patterns: []string{"("}})

	valid, err := Validate(snap)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 3 {
		t.Fatalf("want 3 aggregated errors, got %v", err)
	}
	if len(valid.Conditions) != 2 || len(valid.Scenarios) != 2 || len(valid.Symptoms) != 1 {
		t.Fatalf("unexpected valid snapshot: %+v", valid)
	}
}

func TestValidate_CleanSnapshot(t *testing.T) {
	if _, err := Validate(testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCache_RefreshAndFallthrough(t *testing.T) {
	ctx := context.Background()
	source := NewMemory(testSnapshot())
	cache := NewCache(source)

	before, _ := cache.ListConditions(ctx)
	if len(before) != 0 {
		t.Fatalf("cache should be empty before refresh")
	}

	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	after, _ := cache.ListConditions(ctx)
	if len(after) != 2 {
		t.Fatalf("want 2 conditions after refresh, got %d", len(after))
	}

	snap := testSnapshot()
	snap.Scenarios = append(snap.Scenarios, Scenario{ID: "s9", Name: "late", Rule: "fever"})
	source.Replace(snap)

	s, err := cache.GetScenario(ctx, "s9")
	if err != nil {
		t.Fatalf("expected fallthrough to source, got %v", err)
	}
	if s.Name != "late" {
		t.Fatalf("unexpected scenario %+v", s)
	}
}

func TestCache_VersionChangesOnRefresh(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(NewMemory(testSnapshot()))

	before := cache.Version()
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if cache.Version() == before {
		t.Fatal("version should change after refresh")
	}
	var _ Versioned = cache
}
