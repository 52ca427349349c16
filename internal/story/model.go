package story

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"medical-triage/internal/ranking"
	"medical-triage/internal/symptom"
)

var (
	ErrNotFound        = errors.New("story not found")
	ErrAlreadyArchived = errors.New("dialog already archived")
)

// QuestionRecord is one answered follow-up question.
type QuestionRecord struct {
	Key    string `json:"key"`
	Text   string `json:"text"`
	Answer bool   `json:"answer"`
}

type Statistics struct {
	QuestionCount int `json:"questionCount"`
	ScenarioCount int `json:"scenarioCount"`
}

// Story is the immutable archive record of a saved dialog.
type Story struct {
	ID       uuid.UUID `json:"id" db:"id"`
	DialogID string    `json:"dialogId" db:"dialog_id"`
	UserID   string    `json:"userId" db:"user_id"`

	ScenarioIDs     []string              `json:"scenarioIds" db:"scenario_ids"`
	QuestionHistory []QuestionRecord      `json:"questionHistory" db:"question_history"`
	Instances       []symptom.Observation `json:"instances" db:"instances"`
	InitialKeys     []string              `json:"initialKeys" db:"initial_keys"`

	FullRanking []ranking.Entry `json:"fullRanking" db:"full_ranking"`
	TopRanking  []ranking.Entry `json:"topRanking" db:"top_ranking"`

	Statistics Statistics `json:"statistics"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

// Archiver is append-only storage of finished dialogs.
type Archiver interface {
	Append(ctx context.Context, st *Story) error
	GetByDialogID(ctx context.Context, dialogID string) (*Story, error)
	// ListByUser returns the newest stories first; limit <= 0 means all.
	ListByUser(ctx context.Context, userID string, limit int) ([]Story, error)
}
