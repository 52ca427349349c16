package dialog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medical-triage/internal/catalog"
	"medical-triage/internal/platform/logging"
	"medical-triage/internal/ranking"
	"medical-triage/internal/scenario"
	"medical-triage/internal/story"
	"medical-triage/internal/symptom"
)

// DefaultTopN is the size of the top ranking shown to the patient.
const DefaultTopN = 4

var (
	ErrNotFound     = errors.New("dialog not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ReportSink receives every archived story, e.g. to notify a doctor.
type ReportSink interface {
	SendStoryReport(ctx context.Context, st story.Story) error
}

type Service interface {
	Start(ctx context.Context, text string) (*State, error)
	Next(ctx context.Context, dialogID, key, answer string) (*State, error)
	Save(ctx context.Context, dialogID, userID string) (*story.Story, error)
	Get(ctx context.Context, dialogID string) (*State, error)
	Extract(ctx context.Context, text string) ([]symptom.Observation, error)
}

type service struct {
	catalog  catalog.Source
	ranker   *ranking.Ranker
	selector *scenario.Selector
	store    SessionStore
	archive  story.Archiver
	reports  ReportSink
	topN     int

	exMu      sync.Mutex
	extractor *symptom.Extractor
	exVersion uint64
}

// NewService wires the orchestrator. reports may be nil; topN <= 0 means DefaultTopN.
func NewService(source catalog.Source, store SessionStore, archive story.Archiver, reports ReportSink, topN int) Service {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &service{
		catalog:  source,
		ranker:   ranking.NewRanker(source),
		selector: scenario.NewSelector(source),
		store:    store,
		archive:  archive,
		reports:  reports,
		topN:     topN,
	}
}

func (s *service) Extract(ctx context.Context, text string) ([]symptom.Observation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	return s.extract(ctx, text)
}

func (s *service) extract(ctx context.Context, text string) ([]symptom.Observation, error) {
	ex, err := s.loadExtractor(ctx)
	if err != nil {
		return nil, err
	}
	return ex.Extract(text), nil
}

// loadExtractor reuses the compiled dictionary until a versioned catalog
// reports a change. Unversioned sources are compiled on every call.
func (s *service) loadExtractor(ctx context.Context) (*symptom.Extractor, error) {
	versioned, ok := s.catalog.(catalog.Versioned)
	var version uint64
	if ok {
		s.exMu.Lock()
		defer s.exMu.Unlock()
		version = versioned.Version()
		if s.extractor != nil && s.exVersion == version {
			return s.extractor, nil
		}
	}

	defs, err := s.catalog.ListSymptoms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symptom dictionary: %w", err)
	}
	ex, err := symptom.NewExtractor(defs)
	if err != nil {
		logging.FromContext(ctx).Warn("symptom patterns skipped", "error", err)
	}
	if ok {
		s.extractor, s.exVersion = ex, version
	}
	return ex, nil
}

func (s *service) Start(ctx context.Context, text string) (*State, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	obs, err := s.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	initialKeys := symptom.PositiveKeys(obs)

	full, top, err := s.rank(ctx, obs, initialKeys)
	if err != nil {
		return nil, err
	}
	scenarios, err := s.selector.Select(ctx, top, obs)
	if err != nil {
		return nil, fmt.Errorf("select scenarios: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:              uuid.NewString(),
		Instances:       obs,
		InitialKeys:     initialKeys,
		FullRanking:     full,
		TopRanking:      top,
		Tracks:          make([]Track, 0, len(scenarios)),
		QuestionHistory: []story.QuestionRecord{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, sc := range scenarios {
		asked := make(map[string]struct{}, len(initialKeys))
		for _, k := range initialKeys {
			asked[k] = struct{}{}
		}
		sess.Tracks = append(sess.Tracks, Track{ScenarioID: sc.ID, AskedKeys: asked})
	}

	state := buildState(sess, scenarios)
	sess.Finished = state.Finished
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store dialog: %w", err)
	}

	logging.FromContext(ctx).Info("dialog started",
		"dialog_id", sess.ID,
		"symptoms", len(obs),
		"scenarios", len(scenarios),
		"finished", state.Finished,
	)
	return &state, nil
}

func (s *service) Next(ctx context.Context, dialogID, key, answer string) (*State, error) {
	key = strings.TrimSpace(key)
	switch {
	case strings.TrimSpace(dialogID) == "":
		return nil, fmt.Errorf("%w: dialogId is required", ErrInvalidInput)
	case key == "":
		return nil, fmt.Errorf("%w: key is required", ErrInvalidInput)
	case strings.TrimSpace(answer) == "":
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}

	presence := parseAnswer(answer)
	var state State
	err := s.store.Update(ctx, dialogID, func(sess *Session) error {
		sess.Instances = symptom.Upsert(sess.Instances, key, presence)
		sess.markAsked(key)

		var err error
		sess.FullRanking, sess.TopRanking, err = s.rank(ctx, sess.Instances, sess.InitialKeys)
		if err != nil {
			return err
		}
		scenarios, err := s.loadScenarios(ctx, sess)
		if err != nil {
			return err
		}

		sess.QuestionHistory = append(sess.QuestionHistory, story.QuestionRecord{
			Key:    key,
			Text:   questionText(scenarios, key),
			Answer: presence,
		})

		state = buildState(sess, scenarios)
		sess.Finished = state.Finished
		sess.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("dialog answered",
		"dialog_id", dialogID,
		"key", key,
		"presence", presence,
		"finished", state.Finished,
	)
	return &state, nil
}

func (s *service) Get(ctx context.Context, dialogID string) (*State, error) {
	sess, err := s.store.Get(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	scenarios, err := s.loadScenarios(ctx, sess)
	if err != nil {
		return nil, err
	}
	state := buildState(sess, scenarios)
	return &state, nil
}

func (s *service) Save(ctx context.Context, dialogID, userID string) (*story.Story, error) {
	switch {
	case strings.TrimSpace(dialogID) == "":
		return nil, fmt.Errorf("%w: dialogId is required", ErrInvalidInput)
	case strings.TrimSpace(userID) == "":
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	var st *story.Story
	var archived bool
	err := s.store.Update(ctx, dialogID, func(sess *Session) error {
		full, top, err := s.rank(ctx, sess.Instances, sess.InitialKeys)
		if err != nil {
			return err
		}
		st = &story.Story{
			DialogID:        sess.ID,
			UserID:          userID,
			ScenarioIDs:     sess.scenarioIDs(),
			QuestionHistory: sess.QuestionHistory,
			Instances:       sess.Instances,
			InitialKeys:     sess.InitialKeys,
			FullRanking:     full,
			TopRanking:      top,
			Statistics: story.Statistics{
				QuestionCount: len(sess.QuestionHistory),
				ScenarioCount: len(sess.Tracks),
			},
		}
		// A story already archived under this id comes from an earlier save
		// whose session removal failed; finish that removal now.
		if err := s.archive.Append(ctx, st); err != nil {
			if !errors.Is(err, story.ErrAlreadyArchived) {
				return fmt.Errorf("archive dialog: %w", err)
			}
			archived = true
		}
		return ErrRemoveSession
	})
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	if archived {
		log.Warn("dialog was already archived, live session removed", "dialog_id", dialogID)
		prev, err := s.archive.GetByDialogID(ctx, dialogID)
		if err != nil {
			return nil, fmt.Errorf("load archived dialog: %w", err)
		}
		return prev, nil
	}

	log.Info("dialog saved",
		"dialog_id", st.DialogID,
		"user_id", userID,
		"questions", st.Statistics.QuestionCount,
		"scenarios", st.Statistics.ScenarioCount,
	)

	if s.reports != nil {
		go func(st story.Story) {
			bgCtx := context.WithoutCancel(ctx)
			if err := s.reports.SendStoryReport(bgCtx, st); err != nil {
				log.Error("failed to send story report", "dialog_id", st.DialogID, "error", err)
			}
		}(*st)
	}
	return st, nil
}

func (s *service) rank(ctx context.Context, obs []symptom.Observation, initialKeys []string) (full, top []ranking.Entry, err error) {
	entries, err := s.ranker.Score(ctx, obs, initialKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("rank conditions: %w", err)
	}
	return ranking.Allocate(entries), ranking.Top(entries, s.topN), nil
}

// loadScenarios fetches the current version of every tracked scenario.
func (s *service) loadScenarios(ctx context.Context, sess *Session) ([]catalog.Scenario, error) {
	out := make([]catalog.Scenario, 0, len(sess.Tracks))
	for _, t := range sess.Tracks {
		sc, err := s.catalog.GetScenario(ctx, t.ScenarioID)
		if err != nil {
			return nil, fmt.Errorf("load scenario %s: %w", t.ScenarioID, err)
		}
		out = append(out, *sc)
	}
	return out, nil
}

func parseAnswer(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y", "true", "да":
		return true
	}
	return false
}

func questionText(scenarios []catalog.Scenario, key string) string {
	for _, sc := range scenarios {
		if text, ok := sc.QuestionText(key); ok {
			return text
		}
	}
	return key
}

// pickNextQuestion scans tracks in order and returns the first question the
// track has not asked yet.
func pickNextQuestion(tracks []Track, scenarios []catalog.Scenario) *catalog.Question {
	byID := make(map[string]catalog.Scenario, len(scenarios))
	for _, sc := range scenarios {
		byID[sc.ID] = sc
	}
	for _, t := range tracks {
		sc, ok := byID[t.ScenarioID]
		if !ok {
			continue
		}
		for _, q := range sc.Questions {
			if _, asked := t.AskedKeys[q.Key]; !asked {
				return &q
			}
		}
	}
	return nil
}

func buildState(sess *Session, scenarios []catalog.Scenario) State {
	next := pickNextQuestion(sess.Tracks, scenarios)

	questionKeys := make(map[string]struct{})
	for _, sc := range scenarios {
		for _, q := range sc.Questions {
			questionKeys[q.Key] = struct{}{}
		}
	}
	asked := 0
	for k := range sess.askedSet() {
		if _, ok := questionKeys[k]; ok {
			asked++
		}
	}

	st := State{
		DialogID:       sess.ID,
		Instances:      sess.Instances,
		FullRanking:    sess.FullRanking,
		TopRanking:     sess.TopRanking,
		Scenarios:      scenarios,
		NextQuestion:   next,
		QuestionNumber: len(sess.QuestionHistory),
		TotalQuestions: len(questionKeys),
		Finished:       next == nil,
	}
	if next != nil {
		st.QuestionNumber++
	}

	// Nothing answered yet reads as 0% even if the opening text already
	// covered some questions. Only asked keys that are scenario questions
	// count, so initial symptoms never push progress past 100%.
	switch {
	case len(sess.QuestionHistory) == 0:
		st.PercentComplete = 0
	case st.Finished:
		st.PercentComplete = 100
	case st.TotalQuestions == 0:
		st.PercentComplete = 0
	default:
		st.PercentComplete = int(math.Round(float64(asked) / float64(st.TotalQuestions) * 100))
	}
	return st
}
