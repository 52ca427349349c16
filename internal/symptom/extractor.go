package symptom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"medical-triage/internal/catalog"
)

// Qualifiers are matched at a word start; RE2 has no Unicode \b.
const wordStart = `(?:^|[^\p{L}\p{N}_])`

var (
	severityTiers = []struct {
		level int
		re    *regexp.Regexp
	}{
		{SeverityHigh, regexp.MustCompile(wordStart + `(сильн|остр|невыносим|severe|strong|intense|acute)`)},
		{SeverityModerate, regexp.MustCompile(wordStart + `(умеренн|средн|moderate)`)},
		{SeverityLow, regexp.MustCompile(wordStart + `(легк|лёгк|небольш|незначительн|mild|slight)`)},
	}

	durationRe = regexp.MustCompile(`(\d+)\s*(?:дн(?:я|ей)|день|сут(?:ок|ки)|days?)(?:[^\p{L}]|$)`)
)

type entry struct {
	key         string
	synonyms    []string
	patterns    []*regexp.Regexp
	negations   []string
	negPatterns []*regexp.Regexp
}

// Extractor maps free text to symptom observations using a dictionary.
type Extractor struct {
	entries []entry
}

// NewExtractor compiles the dictionary. Patterns that fail to compile are
// skipped; the extractor is still usable and the returned error lists them.
func NewExtractor(defs []catalog.SymptomDefinition) (*Extractor, error) {
	var result *multierror.Error
	e := &Extractor{entries: make([]entry, 0, len(defs))}

	compile := func(key string, srcs []string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(srcs))
		for _, src := range srcs {
			re, err := regexp.Compile("(?i)" + src)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("symptom %q: pattern %q: %w", key, src, err))
				continue
			}
			out = append(out, re)
		}
		return out
	}

	for _, d := range defs {
		e.entries = append(e.entries, entry{
			key:         d.Key,
			synonyms:    lowerAll(d.Synonyms),
			patterns:    compile(d.Key, d.Patterns),
			negations:   lowerAll(d.Negations),
			negPatterns: compile(d.Key, d.NegationPatterns),
		})
	}
	return e, result.ErrorOrNil()
}

// Extract returns one observation per matched dictionary key. When two
// entries share a key the later one wins but keeps the earlier position.
// Severity and duration are read from the whole utterance and attached to
// every present observation.
func (e *Extractor) Extract(text string) []Observation {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return []Observation{}
	}

	severity := detectSeverity(lower)
	duration := detectDuration(lower)

	out := []Observation{}
	index := map[string]int{}
	for _, en := range e.entries {
		if !containsAny(lower, en.synonyms) && !matchesAny(lower, en.patterns) {
			continue
		}
		negated := containsAny(lower, en.negations) || matchesAny(lower, en.negPatterns)

		obs := Observation{Key: en.key, Presence: !negated}
		if obs.Presence {
			obs.Severity = cloneInt(severity)
			obs.DurationDays = cloneInt(duration)
		}

		if i, ok := index[en.key]; ok {
			out[i] = obs
			continue
		}
		index[en.key] = len(out)
		out = append(out, obs)
	}
	return out
}

func detectSeverity(lower string) *int {
	for _, tier := range severityTiers {
		if tier.re.MatchString(lower) {
			level := tier.level
			return &level
		}
	}
	return nil
}

func detectDuration(lower string) *int {
	m := durationRe.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &days
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func matchesAny(text string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
