package story

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"medical-triage/internal/ranking"
	"medical-triage/internal/symptom"
)

func sampleStory(dialogID, userID string) *Story {
	return &Story{
		DialogID:        dialogID,
		UserID:          userID,
		ScenarioIDs:     []string{"s1"},
		QuestionHistory: []QuestionRecord{{Key: "chills", Text: "Chills?", Answer: true}},
		Instances:       []symptom.Observation{{Key: "cough", Presence: true}},
		InitialKeys:     []string{"cough"},
		FullRanking:     []ranking.Entry{{Disease: "flu", Score: 1, Percentage: 100}},
		TopRanking:      []ranking.Entry{{Disease: "flu", Score: 1, Percentage: 100}},
		Statistics:      Statistics{QuestionCount: 1, ScenarioCount: 1},
	}
}

func TestMemoryArchiver_AppendOnce(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchiver()

	st := sampleStory("d1", "u1")
	if err := a.Append(ctx, st); err != nil {
		t.Fatalf("append: %v", err)
	}
	if st.ID == uuid.Nil || st.CreatedAt.IsZero() {
		t.Fatalf("append should stamp id and time: %+v", st)
	}
	if err := a.Append(ctx, sampleStory("d1", "u1")); !errors.Is(err, ErrAlreadyArchived) {
		t.Fatalf("want ErrAlreadyArchived, got %v", err)
	}

	got, err := a.GetByDialogID(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Statistics.QuestionCount != 1 {
		t.Fatalf("unexpected story: %+v", got)
	}
	if _, err := a.GetByDialogID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryArchiver_ListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchiver()
	for _, id := range []string{"d1", "d2", "d3"} {
		if err := a.Append(ctx, sampleStory(id, "u1")); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	_ = a.Append(ctx, sampleStory("other", "u2"))

	got, err := a.ListByUser(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].DialogID != "d3" || got[1].DialogID != "d2" {
		t.Fatalf("unexpected list: %+v", got)
	}

	all, _ := a.ListByUser(ctx, "u1", 0)
	if len(all) != 3 {
		t.Fatalf("want 3, got %d", len(all))
	}
}

func TestRepository_AppendMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO stories`)).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	repo := NewRepository(db)
	if err := repo.Append(context.Background(), sampleStory("d1", "u1")); !errors.Is(err, ErrAlreadyArchived) {
		t.Fatalf("want ErrAlreadyArchived, got %v", err)
	}
}

func TestRepository_GetByDialogID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "dialog_id", "user_id", "scenario_ids", "question_history", "instances", "initial_keys",
		"full_ranking", "top_ranking", "question_count", "scenario_count", "created_at",
	}).AddRow(
		id.String(), "d1", "u1", "{s1,s2}",
		[]byte(`[{"key":"chills","text":"Chills?","answer":true}]`),
		[]byte(`[{"key":"cough","presence":true}]`),
		"{cough}",
		[]byte(`[{"disease":"flu","score":0.7,"percentage":70},{"disease":"cold","score":0.3,"percentage":30}]`),
		[]byte(`[{"disease":"flu","score":0.7,"percentage":70},{"disease":"cold","score":0.3,"percentage":30}]`),
		1, 2, created,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stories WHERE dialog_id = $1`)).
		WithArgs("d1").
		WillReturnRows(rows)

	repo := NewRepository(db)
	st, err := repo.GetByDialogID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.ID != id || len(st.ScenarioIDs) != 2 || st.Statistics.ScenarioCount != 2 {
		t.Fatalf("unexpected story: %+v", st)
	}
	if len(st.TopRanking) != 2 || st.TopRanking[0].Percentage != 70 {
		t.Fatalf("unexpected ranking: %+v", st.TopRanking)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepository_ListByUserUsesLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`)).
		WithArgs("u1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewRepository(db)
	got, err := repo.ListByUser(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty, got %+v", got)
	}
}

func newTestRouter(a Archiver) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(a))
	return r
}

func TestHandler_GetStory(t *testing.T) {
	a := NewMemoryArchiver()
	_ = a.Append(context.Background(), sampleStory("d1", "u1"))
	srv := newTestRouter(a)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stories/d1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	var st Story
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.DialogID != "d1" {
		t.Fatalf("unexpected story: %+v", st)
	}

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stories/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

func TestHandler_ListUserStories(t *testing.T) {
	a := NewMemoryArchiver()
	_ = a.Append(context.Background(), sampleStory("d1", "u1"))
	srv := newTestRouter(a)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stories?userId=u1&limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var list []Story
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("want 1 story, got %d", len(list))
	}

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stories", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 without userId, got %d", w.Code)
	}
}
