package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrEmptyQuery is returned when the trimmed query is empty. It is the only
// analyzer failure surfaced to callers; unknown vocabulary falls back to
// factual/simple defaults instead.
var ErrEmptyQuery = errors.New("empty query")

// Intent classifies what kind of answer the query is asking for.
type Intent int

const (
	IntentFactual Intent = iota
	IntentComparative
	IntentAnalytical
	IntentSynthetic
)

var intentNames = [...]string{"factual", "comparative", "analytical", "synthetic"}

func (i Intent) String() string {
	if int(i) < len(intentNames) {
		return intentNames[i]
	}
	return "factual"
}

func (i Intent) MarshalJSON() ([]byte, error) { return json.Marshal(i.String()) }

func (i *Intent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for idx, name := range intentNames {
		if name == s {
			*i = Intent(idx)
			return nil
		}
	}
	return fmt.Errorf("unknown intent %q", s)
}

// Complexity rates how much reasoning a query demands.
type Complexity int

const (
	ComplexitySimple Complexity = iota
	ComplexityModerate
	ComplexityComplex
	ComplexityMultiStep
)

var complexityNames = [...]string{"simple", "moderate", "complex", "multi_step"}

func (c Complexity) String() string {
	if int(c) < len(complexityNames) {
		return complexityNames[c]
	}
	return "simple"
}

func (c Complexity) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *Complexity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for idx, name := range complexityNames {
		if name == s {
			*c = Complexity(idx)
			return nil
		}
	}
	return fmt.Errorf("unknown complexity %q", s)
}

// Entity is one domain concept detected in a query.
type Entity struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Analysis is the full semantic reading of one query. Created fresh per
// request and carried inside the reasoning trace only.
type Analysis struct {
	OriginalQuery  string     `json:"original_query"`
	CorrectedQuery string     `json:"corrected_query"`
	Intent         Intent     `json:"intent"`
	Entities       []Entity   `json:"entities"`
	Complexity     Complexity `json:"complexity"`
}

type categoryMatcher struct {
	name string
	re   *regexp.Regexp
}

// Analyzer classifies intent, extracts entities and rates complexity for one
// incoming query. Safe for concurrent use; all state is compiled patterns.
type Analyzer struct {
	comparative *regexp.Regexp
	analytical  *regexp.Regexp
	synthetic   *regexp.Regexp
	multiStep   *regexp.Regexp
	clause      *regexp.Regexp
	referential *regexp.Regexp
	strip       []*regexp.Regexp
	categories  []categoryMatcher
}

// NewAnalyzer compiles the rule set. categories maps a domain category to
// trigger fragments; fragments are matched on word boundaries.
func NewAnalyzer(categories map[string][]string) *Analyzer {
	a := &Analyzer{
		comparative: regexp.MustCompile(`\bvs\.?\b|\bversus\b|\bcompare[sd]?\b|\bcompared? (?:to|with)\b|\bdifferences? between\b|\bbetter than\b`),
		analytical:  regexp.MustCompile(`\bhow (?:do|does|did|can|could)\b|\bwhy\b|\banaly[sz]e\b|\bexplain\b|\bmechanism\b|\brelationship between\b|\bimpact of\b`),
		synthetic:   regexp.MustCompile(`\bcreate\b|\bdesign\b|\bbuild\b|\bdevelop\b|\bimplement\b|\bcombine\b`),
		multiStep:   regexp.MustCompile(`\bfirst\b.*\bthen\b|\bstep by step\b|\bprocess of\b`),
		clause:      regexp.MustCompile(`\b(?:and|or)\b|;`),
		referential: regexp.MustCompile(`^(?:it|that|this|they)\b|\bmore about\b|\btell me more\b|\belaborate\b|\bexplain further\b|\bmore details\b|\bexpand on\b`),
		strip: []*regexp.Regexp{
			regexp.MustCompile(`^tell me more about\s*`),
			regexp.MustCompile(`^elaborate on\s*`),
			regexp.MustCompile(`^explain further about\s*`),
			regexp.MustCompile(`^more details about\s*`),
			regexp.MustCompile(`^can you expand on\s*`),
			regexp.MustCompile(`^what (?:is|are)(?: the)?(?: examples? of| applications? of)?\s*(?:an? |the )?`),
			regexp.MustCompile(`^how (?:do|does)\s+`),
			regexp.MustCompile(`\s*work\?*$`),
		},
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		frags := categories[name]
		if len(frags) == 0 {
			continue
		}
		pattern := `\b(?:` + strings.Join(frags, "|") + `)\b`
		a.categories = append(a.categories, categoryMatcher{name: name, re: regexp.MustCompile(pattern)})
	}
	return a
}

// Analyze produces the semantic reading of query. priorTopics are the last
// turn's topics; they resolve entities for bare referential queries such as
// "tell me more".
func (a *Analyzer) Analyze(query string, priorTopics []string) (Analysis, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Analysis{}, ErrEmptyQuery
	}
	lower := strings.ToLower(trimmed)

	entities := a.extractEntities(lower)
	if len(entities) == 0 && a.referential.MatchString(lower) {
		entities = a.extractEntities(strings.ToLower(strings.Join(priorTopics, " ")))
	}

	return Analysis{
		OriginalQuery:  trimmed,
		CorrectedQuery: a.correct(lower),
		Intent:         a.classifyIntent(lower),
		Entities:       entities,
		Complexity:     a.rateComplexity(lower, len(entities)),
	}, nil
}

// classifyIntent applies the prioritized rule set: comparison markers win
// over analytical markers, synthetic markers come last before the factual
// default.
func (a *Analyzer) classifyIntent(lower string) Intent {
	switch {
	case a.comparative.MatchString(lower):
		return IntentComparative
	case a.analytical.MatchString(lower):
		return IntentAnalytical
	case a.synthetic.MatchString(lower):
		return IntentSynthetic
	default:
		return IntentFactual
	}
}

type positionedEntity struct {
	Entity
	pos int
}

func (a *Analyzer) extractEntities(lower string) []Entity {
	if lower == "" {
		return nil
	}
	var found []positionedEntity
	for _, cm := range a.categories {
		loc := cm.re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		found = append(found, positionedEntity{
			Entity: Entity{Text: lower[loc[0]:loc[1]], Category: cm.name},
			pos:    loc[0],
		})
	}
	// one entity per category, ordered by first occurrence
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	entities := make([]Entity, 0, len(found))
	for _, pe := range found {
		entities = append(entities, pe.Entity)
	}
	return entities
}

func (a *Analyzer) rateComplexity(lower string, entityCount int) Complexity {
	switch {
	case a.multiStep.MatchString(lower):
		return ComplexityMultiStep
	case a.clause.MatchString(lower) || strings.Count(lower, "?") > 1 || entityCount >= 4:
		return ComplexityComplex
	case entityCount >= 2:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// correct strips follow-up phrasing and question punctuation so the core
// topic remains, mirroring what the retrieval layer expects.
func (a *Analyzer) correct(lower string) string {
	out := lower
	for _, re := range a.strip {
		out = strings.TrimSpace(re.ReplaceAllString(out, ""))
	}
	if i := strings.IndexByte(out, '('); i > 0 {
		out = strings.TrimSpace(out[:i])
	}
	out = strings.TrimSuffix(out, "?")
	out = strings.TrimSpace(strings.TrimPrefix(out, "of "))
	out = strings.TrimRight(out, "?!. ")
	if out == "" {
		return lower
	}
	return out
}
