package dialog

import (
	"maps"
	"slices"
	"time"

	"medical-triage/internal/catalog"
	"medical-triage/internal/ranking"
	"medical-triage/internal/story"
	"medical-triage/internal/symptom"
)

// Track is a scenario's progress inside one session.
type Track struct {
	ScenarioID string              `json:"scenarioId"`
	AskedKeys  map[string]struct{} `json:"askedKeys"`
}

// Session is the live state of a dialog between Start and Save.
type Session struct {
	ID string `json:"id"`

	Instances   []symptom.Observation `json:"instances"`
	InitialKeys []string              `json:"initialKeys"`

	FullRanking []ranking.Entry `json:"fullRanking"`
	TopRanking  []ranking.Entry `json:"topRanking"`

	Tracks          []Track                `json:"tracks"`
	QuestionHistory []story.QuestionRecord `json:"questionHistory"`
	Finished        bool                   `json:"finished"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// markAsked adds key to every track; progress is shared across tracks.
func (s *Session) markAsked(key string) {
	for i := range s.Tracks {
		if s.Tracks[i].AskedKeys == nil {
			s.Tracks[i].AskedKeys = make(map[string]struct{})
		}
		s.Tracks[i].AskedKeys[key] = struct{}{}
	}
}

// askedSet is the union of all tracks' asked keys.
func (s *Session) askedSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range s.Tracks {
		for k := range t.AskedKeys {
			set[k] = struct{}{}
		}
	}
	return set
}

func (s *Session) scenarioIDs() []string {
	ids := make([]string, 0, len(s.Tracks))
	for _, t := range s.Tracks {
		ids = append(ids, t.ScenarioID)
	}
	return ids
}

func (s *Session) clone() *Session {
	out := *s
	out.Instances = symptom.Clone(s.Instances)
	out.InitialKeys = slices.Clone(s.InitialKeys)
	out.FullRanking = slices.Clone(s.FullRanking)
	out.TopRanking = slices.Clone(s.TopRanking)
	out.QuestionHistory = slices.Clone(s.QuestionHistory)
	if s.Tracks != nil {
		out.Tracks = make([]Track, len(s.Tracks))
		for i, t := range s.Tracks {
			out.Tracks[i] = Track{ScenarioID: t.ScenarioID, AskedKeys: maps.Clone(t.AskedKeys)}
		}
	}
	return &out
}

// State is what the caller sees after every dialog step.
type State struct {
	DialogID    string                `json:"dialogId"`
	Instances   []symptom.Observation `json:"instances"`
	FullRanking []ranking.Entry       `json:"fullRanking"`
	TopRanking  []ranking.Entry       `json:"topRanking"`
	Scenarios   []catalog.Scenario    `json:"scenarios"`

	NextQuestion    *catalog.Question `json:"nextQuestion"`
	QuestionNumber  int               `json:"questionNumber"`
	TotalQuestions  int               `json:"totalQuestions"`
	PercentComplete int               `json:"percentComplete"`
	Finished        bool              `json:"finished"`
}
