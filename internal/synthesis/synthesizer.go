package synthesis

import (
	"fmt"
	"strings"

	"github.com/radeon-ai/reasoner/internal/conversation"
	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/reasoning"
	"github.com/radeon-ai/reasoner/internal/semantic"
)

// Format selects the rendering shape of a response.
type Format string

const (
	FormatSummary  Format = "summary"
	FormatStandard Format = "standard"
	FormatDetailed Format = "detailed"
	FormatEssay    Format = "essay"
)

// ParseFormat maps a request string to a format, defaulting to standard.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatSummary:
		return FormatSummary
	case FormatDetailed:
		return FormatDetailed
	case FormatEssay:
		return FormatEssay
	default:
		return FormatStandard
	}
}

// Source is the per-citation view exposed to API clients.
type Source struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Response is the full answer envelope returned to clients.
type Response struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id"`
	Answer         string            `json:"response"`
	Confidence     float64           `json:"confidence"`
	Intent         string            `json:"intent"`
	Sources        int               `json:"sources"`
	SourceDetails  []Source          `json:"source_details"`
	ReasoningSteps []reasoning.Step  `json:"reasoning_steps"`
	Entities       []semantic.Entity `json:"entities_detected"`
	Complexity     string            `json:"complexity_level"`
	SessionTurns   int               `json:"session_context_turns"`
	RelatedTopics  []string          `json:"related_topics"`
	FollowUps      []string          `json:"follow_up_suggestions"`
	FromCache      bool              `json:"from_cache"`
}

const caveat = "Note: this answer could not be fully verified against the knowledge base. "

// Synthesizer renders a reasoning chain into a response envelope. Rendering
// is pure: the same chain, score, and format always produce the same text.
type Synthesizer struct{}

func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

func (s *Synthesizer) Synthesize(chain *reasoning.Chain, confidence float64, sess *conversation.SessionContext, format Format) *Response {
	answer := renderAnswer(chain, format)
	if !chain.Validation.Passed {
		answer = caveat + answer
	}

	details := make([]Source, 0, len(chain.Citations))
	for _, c := range chain.Citations {
		details = append(details, Source{Title: c.Title, URL: c.URL, RelevanceScore: c.Relevance})
	}

	turns := 0
	if sess != nil {
		turns = len(sess.History)
	}

	return &Response{
		Answer:         answer,
		Confidence:     confidence,
		Intent:         chain.Analysis.Intent.String(),
		Sources:        len(chain.Citations),
		SourceDetails:  details,
		ReasoningSteps: chain.Steps,
		Entities:       chain.Analysis.Entities,
		Complexity:     chain.Analysis.Complexity.String(),
		SessionTurns:   turns,
		RelatedTopics:  relatedTopics(chain),
		FollowUps:      followUps(chain),
	}
}

func renderAnswer(chain *reasoning.Chain, format Format) string {
	switch format {
	case FormatSummary:
		return renderSummary(chain)
	case FormatDetailed:
		return renderDetailed(chain)
	case FormatEssay:
		return renderEssay(chain)
	default:
		return chain.Answer
	}
}

func renderSummary(chain *reasoning.Chain) string {
	if len(chain.Citations) == 0 {
		return firstSentence(chain.Answer)
	}
	c := chain.Citations[0]
	return fmt.Sprintf("%s: %s.", c.Title, firstSentence(c.Excerpt))
}

func renderDetailed(chain *reasoning.Chain) string {
	var b strings.Builder
	b.WriteString(chain.Answer)
	for _, c := range chain.Citations {
		fmt.Fprintf(&b, "\n\n%s\n%s.", strings.ToUpper(c.Title), c.Excerpt)
	}
	for _, step := range chain.Steps {
		if step.Kind == reasoning.StepLogicalAnalysis {
			fmt.Fprintf(&b, "\n\nAnalysis: %s", step.Content)
		}
	}
	return b.String()
}

func renderEssay(chain *reasoning.Chain) string {
	topic := "the topic"
	if len(chain.Analysis.Entities) > 0 {
		topic = chain.Analysis.Entities[0].Text
	}
	var b strings.Builder
	fmt.Fprintf(&b, "This question concerns %s, which the knowledge base covers from several angles.\n\n", topic)
	b.WriteString(chain.Answer)
	for _, c := range chain.Citations {
		fmt.Fprintf(&b, "\n\nAccording to %q, %s.", c.Title, lowerFirst(c.Excerpt))
	}
	fmt.Fprintf(&b, "\n\nIn summary, the available material gives a consistent account of %s.", topic)
	return b.String()
}

// relatedTopics surfaces cited-article keywords the query did not already
// name, in citation order, capped at four.
func relatedTopics(chain *reasoning.Chain) []string {
	asked := make(map[string]bool)
	for _, e := range chain.Analysis.Entities {
		asked[singular(strings.ToLower(e.Text))] = true
		asked[singular(strings.ToLower(e.Category))] = true
	}
	seen := make(map[string]bool)
	var topics []string
	for _, c := range chain.Citations {
		art := findCited(chain, c.ArticleID)
		if art == nil {
			continue
		}
		for _, kw := range art.Keywords {
			kw = strings.ToLower(kw)
			if asked[singular(kw)] || seen[kw] {
				continue
			}
			seen[kw] = true
			topics = append(topics, kw)
			if len(topics) == 4 {
				return topics
			}
		}
	}
	return topics
}

func findCited(chain *reasoning.Chain, id string) *knowledge.Article {
	for _, s := range chain.Retrieved {
		if s.Article.ID == id {
			return s.Article
		}
	}
	return nil
}

func followUps(chain *reasoning.Chain) []string {
	if len(chain.Citations) == 0 {
		return []string{"Try asking about a specific topic the knowledge base covers."}
	}
	first := chain.Citations[0].Title
	suggestions := []string{fmt.Sprintf("Tell me more about %s.", first)}
	if len(chain.Citations) > 1 {
		suggestions = append(suggestions, fmt.Sprintf("How does %s compare to %s?", first, chain.Citations[1].Title))
	} else {
		suggestions = append(suggestions, fmt.Sprintf("What are practical examples of %s?", strings.ToLower(first)))
	}
	return suggestions
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			return s[:i]
		}
	}
	return s
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func singular(s string) string {
	if v, ok := strings.CutSuffix(s, "es"); ok && len(v) > 2 {
		return v
	}
	if v, ok := strings.CutSuffix(s, "s"); ok && len(v) > 2 {
		return v
	}
	return s
}
