package symptom

// Severity tiers derived from intensity qualifiers.
const (
	SeverityLow      = 2
	SeverityModerate = 3
	SeverityHigh     = 4
)

// Observation is one symptom key with its presence flag and optional detail.
type Observation struct {
	Key          string `json:"key"`
	Presence     bool   `json:"presence"`
	Severity     *int   `json:"severity,omitempty"`
	DurationDays *int   `json:"durationDays,omitempty"`
}

// PositiveKeys returns the keys of present observations in order.
func PositiveKeys(obs []Observation) []string {
	keys := make([]string, 0, len(obs))
	for _, o := range obs {
		if o.Presence {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// PositiveSet is PositiveKeys as a set.
func PositiveSet(obs []Observation) map[string]struct{} {
	set := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		if o.Presence {
			set[o.Key] = struct{}{}
		}
	}
	return set
}

// Upsert sets the presence of key, updating an existing observation in place
// (its severity and duration are kept) or appending a new one.
func Upsert(obs []Observation, key string, presence bool) []Observation {
	for i := range obs {
		if obs[i].Key == key {
			obs[i].Presence = presence
			return obs
		}
	}
	return append(obs, Observation{Key: key, Presence: presence})
}

// Clone deep-copies a list of observations.
func Clone(obs []Observation) []Observation {
	if obs == nil {
		return nil
	}
	out := make([]Observation, len(obs))
	for i, o := range obs {
		out[i] = o
		if o.Severity != nil {
			v := *o.Severity
			out[i].Severity = &v
		}
		if o.DurationDays != nil {
			v := *o.DurationDays
			out[i].DurationDays = &v
		}
	}
	return out
}
