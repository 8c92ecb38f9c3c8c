package reasoning

import (
	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/semantic"
)

// StepKind names one stage of the reasoning chain.
type StepKind string

const (
	StepKnowledgeRetrieval StepKind = "knowledge_retrieval"
	StepLogicalAnalysis    StepKind = "logical_analysis"
	StepSynthesis          StepKind = "synthesis"
	StepValidation         StepKind = "validation"
	StepContextIntegration StepKind = "context_integration"
)

// Step is one recorded stage of a reasoning chain.
type Step struct {
	Kind       StepKind `json:"type"`
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
	NoEvidence bool     `json:"no_evidence,omitempty"`
}

// Citation ties a synthesized claim back to a retrieved article.
type Citation struct {
	ArticleID string  `json:"article_id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
	Quality   float64 `json:"quality"`
}

// Validation records the outcome of the chain's final integrity check.
type Validation struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// Chain is the full reasoning trace for one query. The pipeline builds it
// stage by stage; after the context manager merges it into the session it is
// treated as immutable.
type Chain struct {
	Analysis   semantic.Analysis  `json:"analysis"`
	Steps      []Step             `json:"steps"`
	Retrieved  []knowledge.Scored `json:"retrieved"`
	Coverage   float64            `json:"coverage"`
	Answer     string             `json:"answer"`
	Citations  []Citation         `json:"citations"`
	Validation Validation         `json:"validation"`
	NoEvidence bool               `json:"no_evidence,omitempty"`
	Demoted    bool               `json:"demoted,omitempty"`
	IsFollowUp bool               `json:"is_follow_up,omitempty"`
}

// AddStep appends a stage record.
func (c *Chain) AddStep(step Step) {
	c.Steps = append(c.Steps, step)
}

// CitedIDs lists the article ids referenced by the synthesis, in citation
// order.
func (c *Chain) CitedIDs() []string {
	ids := make([]string, 0, len(c.Citations))
	for _, cit := range c.Citations {
		ids = append(ids, cit.ArticleID)
	}
	return ids
}

// RetrievedIDs lists the ids of all retrieved candidates.
func (c *Chain) RetrievedIDs() map[string]bool {
	ids := make(map[string]bool, len(c.Retrieved))
	for _, s := range c.Retrieved {
		ids[s.Article.ID] = true
	}
	return ids
}
