package dialog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const selectSession = `SELECT id, instances, initial_keys, full_ranking, top_ranking, tracks, question_history, finished, created_at, updated_at
	FROM dialog_sessions WHERE id = $1`

// querier is the part of *sql.DB and *sql.Tx the store needs.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type postgresStore struct {
	db *sql.DB
}

// NewRepository returns a SessionStore backed by the dialog_sessions table.
// Update holds a row lock, so several processes can serve the same dialogs.
func NewRepository(db *sql.DB) SessionStore {
	return &postgresStore{db: db}
}

func (r *postgresStore) Get(ctx context.Context, id string) (*Session, error) {
	return getSession(ctx, r.db, selectSession, id)
}

func (r *postgresStore) Put(ctx context.Context, s *Session) error {
	return putSession(ctx, r.db, s)
}

func (r *postgresStore) Update(ctx context.Context, id string, fn func(*Session) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dialog %s: %w", id, err)
	}
	defer tx.Rollback()

	sess, err := getSession(ctx, tx, selectSession+` FOR UPDATE`, id)
	if err != nil {
		return err
	}
	switch err := fn(sess); {
	case errors.Is(err, ErrRemoveSession):
		if err := deleteSession(ctx, tx, id); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := putSession(ctx, tx, sess); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dialog %s: %w", id, err)
	}
	return nil
}

func (r *postgresStore) Delete(ctx context.Context, id string) error {
	return deleteSession(ctx, r.db, id)
}

func getSession(ctx context.Context, q querier, query, id string) (*Session, error) {
	row := q.QueryRowContext(ctx, query, id)

	var s Session
	var instancesJSON, fullJSON, topJSON, tracksJSON, historyJSON []byte

	err := row.Scan(
		&s.ID,
		&instancesJSON,
		pq.Array(&s.InitialKeys),
		&fullJSON,
		&topJSON,
		&tracksJSON,
		&historyJSON,
		&s.Finished,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dialog %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"instances", instancesJSON, &s.Instances},
		{"full ranking", fullJSON, &s.FullRanking},
		{"top ranking", topJSON, &s.TopRanking},
		{"tracks", tracksJSON, &s.Tracks},
		{"question history", historyJSON, &s.QuestionHistory},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	return &s, nil
}

func putSession(ctx context.Context, q querier, s *Session) error {
	var blobs [5][]byte
	for i, v := range []any{s.Instances, s.FullRanking, s.TopRanking, s.Tracks, s.QuestionHistory} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		blobs[i] = b
	}

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()

	query := `
		INSERT INTO dialog_sessions (id, instances, initial_keys, full_ranking, top_ranking, tracks, question_history, finished, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			instances = $2,
			full_ranking = $4,
			top_ranking = $5,
			tracks = $6,
			question_history = $7,
			finished = $8,
			updated_at = $10
	`
	_, err := q.ExecContext(ctx, query,
		s.ID, blobs[0], pq.Array(s.InitialKeys), blobs[1], blobs[2], blobs[3], blobs[4],
		s.Finished, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save dialog %s: %w", s.ID, err)
	}
	return nil
}

func deleteSession(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM dialog_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dialog %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("dialog %s: %w", id, ErrNotFound)
	}
	return nil
}
