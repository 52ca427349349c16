package story

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Archiver {
	return &postgresRepo{db: db}
}

const storyColumns = `id, dialog_id, user_id, scenario_ids, question_history, instances, initial_keys,
	full_ranking, top_ranking, question_count, scenario_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*Story, error) {
	var st Story
	var historyJSON, instancesJSON, fullJSON, topJSON []byte

	err := row.Scan(
		&st.ID,
		&st.DialogID,
		&st.UserID,
		pq.Array(&st.ScenarioIDs),
		&historyJSON,
		&instancesJSON,
		pq.Array(&st.InitialKeys),
		&fullJSON,
		&topJSON,
		&st.Statistics.QuestionCount,
		&st.Statistics.ScenarioCount,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"question history", historyJSON, &st.QuestionHistory},
		{"instances", instancesJSON, &st.Instances},
		{"full ranking", fullJSON, &st.FullRanking},
		{"top ranking", topJSON, &st.TopRanking},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	return &st, nil
}

func (r *postgresRepo) Append(ctx context.Context, st *Story) error {
	historyJSON, err := json.Marshal(st.QuestionHistory)
	if err != nil {
		return err
	}
	instancesJSON, err := json.Marshal(st.Instances)
	if err != nil {
		return err
	}
	fullJSON, err := json.Marshal(st.FullRanking)
	if err != nil {
		return err
	}
	topJSON, err := json.Marshal(st.TopRanking)
	if err != nil {
		return err
	}

	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO stories (id, dialog_id, user_id, scenario_ids, question_history, instances, initial_keys,
			full_ranking, top_ranking, question_count, scenario_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		st.ID, st.DialogID, st.UserID, pq.Array(st.ScenarioIDs), historyJSON, instancesJSON,
		pq.Array(st.InitialKeys), fullJSON, topJSON,
		st.Statistics.QuestionCount, st.Statistics.ScenarioCount, st.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("dialog %s: %w", st.DialogID, ErrAlreadyArchived)
		}
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetByDialogID(ctx context.Context, dialogID string) (*Story, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE dialog_id = $1`, dialogID)
	st, err := scanStory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dialog %s: %w", dialogID, ErrNotFound)
		}
		return nil, err
	}
	return st, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	out := []Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}
