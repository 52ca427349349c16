package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresRepo struct {
	db *sql.DB
}

// Repository is the Postgres-backed catalog. Upserts are used by the seed command.
type Repository interface {
	Source
	UpsertCondition(ctx context.Context, c *Condition) error
	UpsertScenario(ctx context.Context, s *Scenario) error
	UpsertSymptom(ctx context.Context, d *SymptomDefinition) error
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const conditionColumns = `id, name, prior, symptom_rules`

const scenarioColumns = `id, name, rule, disease_keys, rule_keys, questions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCondition(row rowScanner) (*Condition, error) {
	var c Condition
	var rulesJSON []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Prior, &rulesJSON); err != nil {
		return nil, err
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &c.SymptomRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal symptom rules: %w", err)
		}
	}
	return &c, nil
}

func scanScenario(row rowScanner) (*Scenario, error) {
	var s Scenario
	var questionsJSON []byte
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Rule,
		pq.Array(&s.DiseaseKeys),
		pq.Array(&s.RuleKeys),
		&questionsJSON,
	)
	if err != nil {
		return nil, err
	}
	if len(questionsJSON) > 0 {
		if err := json.Unmarshal(questionsJSON, &s.Questions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
		}
	}
	return &s, nil
}

func (r *postgresRepo) ListConditions(ctx context.Context) ([]Condition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conditionColumns+` FROM conditions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	defer rows.Close()

	var out []Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) GetCondition(ctx context.Context, id string) (*Condition, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conditionColumns+` FROM conditions WHERE id = $1`, id)
	c, err := scanCondition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("condition %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) ListScenarios(ctx context.Context) ([]Scenario, error) {
	return r.queryScenarios(ctx, `SELECT `+scenarioColumns+` FROM scenarios ORDER BY name, id`)
}

func (r *postgresRepo) ListScenariosByDisease(ctx context.Context, diseaseKey string) ([]Scenario, error) {
	return r.queryScenarios(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios WHERE $1 = ANY(disease_keys) ORDER BY name, id`,
		diseaseKey)
}

func (r *postgresRepo) queryScenarios(ctx context.Context, query string, args ...any) ([]Scenario, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *postgresRepo) GetScenario(ctx context.Context, id string) (*Scenario, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = $1`, id)
	s, err := scanScenario(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresRepo) ListSymptoms(ctx context.Context) ([]SymptomDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, synonyms, patterns, negations, negation_patterns FROM symptoms ORDER BY position, key`)
	if err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	defer rows.Close()

	var out []SymptomDefinition
	for rows.Next() {
		var d SymptomDefinition
		err := rows.Scan(
			&d.Key,
			pq.Array(&d.Synonyms),
			pq.Array(&d.Patterns),
			pq.Array(&d.Negations),
			pq.Array(&d.NegationPatterns),
		)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *postgresRepo) UpsertCondition(ctx context.Context, c *Condition) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	rulesJSON, err := json.Marshal(c.SymptomRules)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO conditions (id, name, prior, symptom_rules)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = $2,
			prior = $3,
			symptom_rules = $4
	`
	_, err = r.db.ExecContext(ctx, query, c.ID, c.Name, c.Prior, rulesJSON)
	return err
}

func (r *postgresRepo) UpsertScenario(ctx context.Context, s *Scenario) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	questionsJSON, err := json.Marshal(s.Questions)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO scenarios (id, name, rule, disease_keys, rule_keys, questions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = $2,
			rule = $3,
			disease_keys = $4,
			rule_keys = $5,
			questions = $6
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Rule, pq.Array(s.DiseaseKeys), pq.Array(s.RuleKeys), questionsJSON)
	return err
}

func (r *postgresRepo) UpsertSymptom(ctx context.Context, d *SymptomDefinition) error {
	query := `
		INSERT INTO symptoms (key, synonyms, patterns, negations, negation_patterns)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			synonyms = $2,
			patterns = $3,
			negations = $4,
			negation_patterns = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		d.Key, pq.Array(d.Synonyms), pq.Array(d.Patterns), pq.Array(d.Negations), pq.Array(d.NegationPatterns))
	return err
}
