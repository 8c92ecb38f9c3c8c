package reasoning

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/semantic"
)

// Pipeline runs the fixed four-stage reasoning sequence over an analyzed
// query: retrieval, logical analysis, synthesis, validation.
type Pipeline struct {
	holder *knowledge.Holder
	logger *log.Logger
	limit  int
}

func NewPipeline(holder *knowledge.Holder, logger *log.Logger, limit int) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[REASONING] ", log.LstdFlags)
	}
	if limit <= 0 {
		limit = 5
	}
	return &Pipeline{holder: holder, logger: logger, limit: limit}
}

// Execute builds the chain for one analyzed query. A query with no matching
// evidence still produces a complete chain; the validation stage records the
// missing support instead of failing the call.
func (p *Pipeline) Execute(analysis semantic.Analysis) (*Chain, error) {
	ix := p.holder.Load()
	if ix == nil {
		return nil, errors.New("reasoning: knowledge index not ready")
	}

	chain := &Chain{Analysis: analysis}

	// Stage 1: knowledge retrieval.
	chain.Retrieved = ix.Retrieve(analysis.Entities, p.limit)
	chain.Coverage = ix.Coverage(analysis.Entities)
	if len(chain.Retrieved) == 0 {
		chain.NoEvidence = true
		chain.AddStep(Step{
			Kind:       StepKnowledgeRetrieval,
			Content:    "No articles in the knowledge base match the detected entities.",
			Confidence: 0.0,
			NoEvidence: true,
		})
	} else {
		ids := make([]string, 0, len(chain.Retrieved))
		for _, s := range chain.Retrieved {
			ids = append(ids, s.Article.ID)
		}
		chain.AddStep(Step{
			Kind:       StepKnowledgeRetrieval,
			Content:    fmt.Sprintf("Retrieved %d candidate articles ranked by relevance.", len(ids)),
			Confidence: chain.Retrieved[0].Relevance,
			Sources:    ids,
		})
	}

	// Stage 2: logical analysis, shaped by the intent's strategy. A
	// strategy error demotes to factual rather than surfacing.
	strat := strategyFor(analysis.Intent)
	la, err := strat.Analyze(analysis, chain.Retrieved)
	if err != nil {
		var serr *StrategyError
		if errors.As(err, &serr) {
			p.logger.Printf("strategy demoted: %v", serr)
			la, _ = factualStrategy{}.Analyze(analysis, chain.Retrieved)
			la.Demoted = true
		} else {
			return nil, err
		}
	}
	content := la.Content
	if la.Demoted {
		chain.Demoted = true
		content = "Demoted to factual reasoning (comparison needs two entities). " + content
	}
	chain.AddStep(Step{
		Kind:       StepLogicalAnalysis,
		Content:    content,
		Confidence: la.Confidence,
	})

	// Stage 3: synthesis.
	syn, err := strat.Synthesize(analysis, la)
	if err != nil {
		var serr *StrategyError
		if errors.As(err, &serr) {
			p.logger.Printf("strategy demoted at synthesis: %v", serr)
			syn, _ = factualStrategy{}.Synthesize(analysis, la)
			chain.Demoted = true
		} else {
			return nil, err
		}
	}
	chain.Answer = syn.Answer
	chain.Citations = syn.Citations
	chain.AddStep(Step{
		Kind:       StepSynthesis,
		Content:    truncate(syn.Answer, 160),
		Confidence: syn.Confidence,
		Sources:    chain.CitedIDs(),
	})

	// Stage 4: validation.
	chain.Validation = p.validate(chain)
	conf := 0.9
	vContent := "All claims trace back to retrieved sources."
	if !chain.Validation.Passed {
		conf = 0.3
		vContent = "Validation failed: " + strings.Join(chain.Validation.Violations, "; ")
	}
	chain.AddStep(Step{
		Kind:       StepValidation,
		Content:    vContent,
		Confidence: conf,
	})
	return chain, nil
}

func (p *Pipeline) validate(chain *Chain) Validation {
	var violations []string
	if chain.NoEvidence {
		violations = append(violations, "no supporting evidence retrieved")
	}
	if strings.TrimSpace(chain.Answer) == "" {
		violations = append(violations, "empty answer")
	}
	retrieved := chain.RetrievedIDs()
	for _, cit := range chain.Citations {
		if !retrieved[cit.ArticleID] {
			violations = append(violations, fmt.Sprintf("citation %s was not among retrieved articles", cit.ArticleID))
		}
	}
	return Validation{Passed: len(violations) == 0, Violations: violations}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
