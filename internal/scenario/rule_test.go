package scenario

import (
	"errors"
	"reflect"
	"testing"
)

func facts(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func TestEvaluate_Precedence(t *testing.T) {
	cases := []struct {
		rule  string
		facts map[string]struct{}
		want  bool
	}{
		{"A ∧ (B ∨ C)", facts("A"), false},
		{"A ∧ (B ∨ C)", facts("A", "C"), true},
		{"A ∧ (B ∨ C)", facts("B"), false},
		{"A && (B || C)", facts("A", "B"), true},
		{"A AND B OR C", facts("C"), true},
		{"A OR B AND C", facts("A"), true},
		{"A OR B AND C", facts("B"), false},
		{"¬A ∧ B", facts("B"), true},
		{"NOT A AND B", facts("A", "B"), false},
		{"!(A | B)", facts(), true},
		{"NOT NOT A", facts("A"), true},
		{"((A))", facts("A"), true},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.rule, tc.facts)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("%q with %v: want %v, got %v", tc.rule, tc.facts, tc.want, got)
		}
	}
}

func TestEvaluate_MultiWordAndSubstringLiterals(t *testing.T) {
	rule := "боль в горле ∧ ¬боль"

	got, err := Evaluate(rule, facts("боль в горле"))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got {
		t.Fatalf("a literal containing another literal must not be split")
	}

	got, err = Evaluate("кашель ∧ (лихорадка ∨ озноб)", facts("кашель", "озноб"))
	if err != nil || !got {
		t.Fatalf("want true, got %v (%v)", got, err)
	}
}

func TestEvaluate_SpacesMatchUnderscoredKeys(t *testing.T) {
	got, err := Evaluate("боль в горле", facts("боль_в_горле"))
	if err != nil || !got {
		t.Fatalf("want true, got %v (%v)", got, err)
	}
}

func TestParse_Malformed(t *testing.T) {
	rules := []string{
		"",
		"   ",
		"A ∧",
		"∨ B",
		"(A ∧ B",
		"A ∧ B)",
		"A (B)",
		"()",
		"NOT",
	}
	for _, rule := range rules {
		if _, err := Parse(rule); !errors.Is(err, ErrMalformedRule) {
			t.Fatalf("%q: want ErrMalformedRule, got %v", rule, err)
		}
	}
}

func TestLiterals(t *testing.T) {
	e, err := Parse("кашель ∧ (лихорадка ∨ ¬озноб)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"кашель", "лихорадка", "озноб"}
	if got := Literals(e); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}
