package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRepository_ListScenariosByDisease(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "rule", "disease_keys", "rule_keys", "questions"}).
		AddRow("s1", "flu check", "fever ∧ cough", "{flu,cold}", "{fever,cough}",
			[]byte(`[{"key":"chills","text":"Do you have chills?"}]`))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM scenarios WHERE $1 = ANY(disease_keys)`)).
		WithArgs("flu").
		WillReturnRows(rows)

	repo := NewRepository(db)
	got, err := repo.ListScenariosByDisease(context.Background(), "flu")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 scenario, got %d", len(got))
	}
	s := got[0]
	if len(s.DiseaseKeys) != 2 || s.DiseaseKeys[1] != "cold" {
		t.Fatalf("disease keys: %v", s.DiseaseKeys)
	}
	if len(s.Questions) != 1 || s.Questions[0].Key != "chills" {
		t.Fatalf("questions: %+v", s.Questions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepository_GetConditionNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM conditions WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "prior", "symptom_rules"}))

	repo := NewRepository(db)
	if _, err := repo.GetCondition(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRepository_ListConditionsDecodesRules(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "prior", "symptom_rules"}).
		AddRow("c1", "flu", 0.1, []byte(`[{"name":"fever","probability":0.9,"minSeverity":3}]`))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conditions ORDER BY name`)).WillReturnRows(rows)

	repo := NewRepository(db)
	got, err := repo.ListConditions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	rule, ok := got[0].Rule("fever")
	if !ok || rule.MinSeverity == nil || *rule.MinSeverity != 3 {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestRepository_UpsertScenarioAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO scenarios`)).
		WithArgs(sqlmock.AnyArg(), "flu check", "fever", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	s := &Scenario{Name: "flu check", Rule: "fever", DiseaseKeys: []string{"flu"}}
	if err := repo.UpsertScenario(context.Background(), s); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
