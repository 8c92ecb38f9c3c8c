package reasoning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/semantic"
)

// StrategyError reports malformed input to a reasoning strategy. The pipeline
// recovers from it by demoting to the factual strategy, so it never reaches a
// caller.
type StrategyError struct {
	Stage  string
	Reason string
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %s", e.Stage, e.Reason)
}

// Finding pairs an entity with its best supporting article.
type Finding struct {
	Entity    semantic.Entity
	Article   *knowledge.Article
	Excerpt   string
	Relevance float64
}

// LogicalAnalysis is the output of a strategy's analysis stage.
type LogicalAnalysis struct {
	Content    string
	Findings   []Finding
	Confidence float64
	Demoted    bool
}

// SynthesisResult is the output of a strategy's synthesis stage.
type SynthesisResult struct {
	Answer     string
	Citations  []Citation
	Confidence float64
}

// Strategy shapes the analysis and synthesis stages per query intent.
type Strategy interface {
	Analyze(analysis semantic.Analysis, retrieved []knowledge.Scored) (LogicalAnalysis, error)
	Synthesize(analysis semantic.Analysis, la LogicalAnalysis) (SynthesisResult, error)
}

func strategyFor(intent semantic.Intent) Strategy {
	switch intent {
	case semantic.IntentComparative:
		return comparativeStrategy{}
	case semantic.IntentAnalytical:
		return analyticalStrategy{}
	case semantic.IntentSynthetic:
		return syntheticStrategy{}
	default:
		return factualStrategy{}
	}
}

// factualStrategy answers definitional queries from the single best-matching
// article per entity. It never returns an error, which makes it a safe
// demotion target.
type factualStrategy struct{}

func (factualStrategy) Analyze(analysis semantic.Analysis, retrieved []knowledge.Scored) (LogicalAnalysis, error) {
	findings := collectFindings(analysis.Entities, retrieved, 3)
	if len(findings) == 0 {
		return LogicalAnalysis{
			Content:    "No supporting articles were found for the detected entities.",
			Confidence: 0.2,
		}, nil
	}
	var parts []string
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("%s is covered by %q", f.Entity.Text, f.Article.Title))
	}
	return LogicalAnalysis{
		Content:    "Matched entities to sources: " + strings.Join(parts, "; ") + ".",
		Findings:   findings,
		Confidence: 0.8,
	}, nil
}

func (factualStrategy) Synthesize(analysis semantic.Analysis, la LogicalAnalysis) (SynthesisResult, error) {
	if len(la.Findings) == 0 {
		return SynthesisResult{
			Answer:     "I could not find anything in the knowledge base about that. Try asking about a topic the corpus covers.",
			Confidence: 0.2,
		}, nil
	}
	lead := la.Findings[0]
	var b strings.Builder
	fmt.Fprintf(&b, "%s. ", lead.Excerpt)
	for _, f := range la.Findings[1:] {
		fmt.Fprintf(&b, "Regarding %s: %s. ", f.Entity.Text, f.Excerpt)
	}
	return SynthesisResult{
		Answer:     strings.TrimSpace(b.String()),
		Citations:  citationsFrom(la.Findings),
		Confidence: 0.85,
	}, nil
}

// comparativeStrategy contrasts the two leading entities along the keyword
// dimensions their articles share. With fewer than two entities it demotes
// itself to the factual strategy and marks the result accordingly.
type comparativeStrategy struct{}

func (comparativeStrategy) Analyze(analysis semantic.Analysis, retrieved []knowledge.Scored) (LogicalAnalysis, error) {
	if len(analysis.Entities) < 2 {
		la, err := factualStrategy{}.Analyze(analysis, retrieved)
		if err != nil {
			return la, err
		}
		la.Demoted = true
		return la, nil
	}
	findings := collectFindings(analysis.Entities[:2], retrieved, 2)
	if len(findings) < 2 {
		la, err := factualStrategy{}.Analyze(analysis, retrieved)
		if err != nil {
			return la, err
		}
		la.Demoted = true
		return la, nil
	}
	shared := sharedKeywords(findings[0].Article, findings[1].Article)
	content := fmt.Sprintf("Contrasting %s (%q) with %s (%q)",
		findings[0].Entity.Text, findings[0].Article.Title,
		findings[1].Entity.Text, findings[1].Article.Title)
	if len(shared) > 0 {
		content += " along shared dimensions: " + strings.Join(shared, ", ")
	}
	return LogicalAnalysis{
		Content:    content + ".",
		Findings:   findings,
		Confidence: 0.8,
	}, nil
}

func (comparativeStrategy) Synthesize(analysis semantic.Analysis, la LogicalAnalysis) (SynthesisResult, error) {
	if la.Demoted || len(la.Findings) < 2 {
		return factualStrategy{}.Synthesize(analysis, la)
	}
	a, b := la.Findings[0], la.Findings[1]
	var sb strings.Builder
	fmt.Fprintf(&sb, "Comparing %s and %s. ", a.Entity.Text, b.Entity.Text)
	fmt.Fprintf(&sb, "On %s: %s. ", a.Entity.Text, a.Excerpt)
	fmt.Fprintf(&sb, "On %s: %s. ", b.Entity.Text, b.Excerpt)
	if shared := sharedKeywords(a.Article, b.Article); len(shared) > 0 {
		fmt.Fprintf(&sb, "Both relate to %s.", strings.Join(shared, " and "))
	} else {
		fmt.Fprintf(&sb, "The two cover largely distinct ground.")
	}
	return SynthesisResult{
		Answer:     strings.TrimSpace(sb.String()),
		Citations:  citationsFrom(la.Findings),
		Confidence: 0.85,
	}, nil
}

// analyticalStrategy decomposes the query per entity and reports how the
// supporting articles relate.
type analyticalStrategy struct{}

func (analyticalStrategy) Analyze(analysis semantic.Analysis, retrieved []knowledge.Scored) (LogicalAnalysis, error) {
	findings := collectFindings(analysis.Entities, retrieved, 4)
	if len(findings) == 0 {
		return factualStrategy{}.Analyze(analysis, retrieved)
	}
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Entity.Text)
	}
	return LogicalAnalysis{
		Content:    "Decomposed the question into aspects: " + strings.Join(names, ", ") + ".",
		Findings:   findings,
		Confidence: 0.8,
	}, nil
}

func (analyticalStrategy) Synthesize(analysis semantic.Analysis, la LogicalAnalysis) (SynthesisResult, error) {
	if len(la.Findings) == 0 {
		return factualStrategy{}.Synthesize(analysis, la)
	}
	var b strings.Builder
	b.WriteString("Working through the question aspect by aspect. ")
	for _, f := range la.Findings {
		fmt.Fprintf(&b, "Considering %s: %s. ", f.Entity.Text, f.Excerpt)
	}
	b.WriteString("Taken together, these explain the mechanism behind the question.")
	return SynthesisResult{
		Answer:     strings.TrimSpace(b.String()),
		Citations:  citationsFrom(la.Findings),
		Confidence: 0.85,
	}, nil
}

// syntheticStrategy merges evidence across topics into a combined view.
type syntheticStrategy struct{}

func (syntheticStrategy) Analyze(analysis semantic.Analysis, retrieved []knowledge.Scored) (LogicalAnalysis, error) {
	findings := collectFindings(analysis.Entities, retrieved, 4)
	if len(findings) == 0 {
		return factualStrategy{}.Analyze(analysis, retrieved)
	}
	titles := make([]string, 0, len(findings))
	for _, f := range findings {
		titles = append(titles, f.Article.Title)
	}
	return LogicalAnalysis{
		Content:    "Gathering material to combine from: " + strings.Join(titles, "; ") + ".",
		Findings:   findings,
		Confidence: 0.8,
	}, nil
}

func (syntheticStrategy) Synthesize(analysis semantic.Analysis, la LogicalAnalysis) (SynthesisResult, error) {
	if len(la.Findings) == 0 {
		return factualStrategy{}.Synthesize(analysis, la)
	}
	var b strings.Builder
	b.WriteString("Bringing the threads together: ")
	for i, f := range la.Findings {
		if i > 0 {
			b.WriteString(" Building on that, ")
		}
		b.WriteString(lowerFirst(f.Excerpt))
		b.WriteString(".")
	}
	b.WriteString(" Combined, these form a single picture of the topic.")
	return SynthesisResult{
		Answer:     strings.TrimSpace(b.String()),
		Citations:  citationsFrom(la.Findings),
		Confidence: 0.85,
	}, nil
}

// collectFindings picks, per entity in order, the highest-ranked retrieved
// article that matches it. Each article backs at most one entity.
func collectFindings(entities []semantic.Entity, retrieved []knowledge.Scored, max int) []Finding {
	var findings []Finding
	used := make(map[string]bool)
	for _, e := range entities {
		if len(findings) >= max {
			break
		}
		for _, s := range retrieved {
			if used[s.Article.ID] || !articleMatches(s.Article, e) {
				continue
			}
			used[s.Article.ID] = true
			findings = append(findings, Finding{
				Entity:    e,
				Article:   s.Article,
				Excerpt:   BestExcerpt(s.Article.Content, excerptTerms(e), 2),
				Relevance: s.Relevance,
			})
			break
		}
	}
	// fall back to the top candidate when no entity matched directly
	if len(findings) == 0 && len(retrieved) > 0 && len(entities) > 0 {
		s := retrieved[0]
		findings = append(findings, Finding{
			Entity:    entities[0],
			Article:   s.Article,
			Excerpt:   BestExcerpt(s.Article.Content, excerptTerms(entities[0]), 2),
			Relevance: s.Relevance,
		})
	}
	return findings
}

func articleMatches(a *knowledge.Article, e semantic.Entity) bool {
	needle := singular(strings.ToLower(e.Text))
	if strings.Contains(strings.ToLower(a.Title), needle) {
		return true
	}
	for _, k := range a.Keywords {
		if singular(strings.ToLower(k)) == needle {
			return true
		}
	}
	return strings.Contains(strings.ToLower(a.Content), needle)
}

func citationsFrom(findings []Finding) []Citation {
	cits := make([]Citation, 0, len(findings))
	seen := make(map[string]bool)
	for _, f := range findings {
		if seen[f.Article.ID] {
			continue
		}
		seen[f.Article.ID] = true
		cits = append(cits, Citation{
			ArticleID: f.Article.ID,
			Title:     f.Article.Title,
			URL:       f.Article.URL,
			Excerpt:   f.Excerpt,
			Relevance: f.Relevance,
			Quality:   f.Article.QualityScore,
		})
	}
	return cits
}

func excerptTerms(e semantic.Entity) []string {
	return []string{singular(strings.ToLower(e.Text)), strings.ToLower(e.Category)}
}

func sharedKeywords(a, b *knowledge.Article) []string {
	in := make(map[string]bool, len(a.Keywords))
	for _, k := range a.Keywords {
		in[strings.ToLower(k)] = true
	}
	var shared []string
	for _, k := range b.Keywords {
		if in[strings.ToLower(k)] {
			shared = append(shared, strings.ToLower(k))
		}
	}
	sort.Strings(shared)
	return shared
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

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var sentenceSplit = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// BestExcerpt picks up to max sentences of content by term overlap, keeping
// original order. Ties go to the earlier sentence, so the result is stable.
func BestExcerpt(content string, terms []string, max int) string {
	sentences := sentenceSplit.Split(content, -1)
	type scored struct {
		idx   int
		score int
	}
	var ranked []scored
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		n := 0
		for _, t := range terms {
			if t != "" && strings.Contains(lower, t) {
				n++
			}
		}
		ranked = append(ranked, scored{idx: i, score: n})
	}
	if len(ranked) == 0 {
		return ""
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if max > len(ranked) {
		max = len(ranked)
	}
	picked := ranked[:max]
	sort.Slice(picked, func(i, j int) bool { return picked[i].idx < picked[j].idx })
	var out []string
	for _, p := range picked {
		out = append(out, strings.TrimSpace(sentences[p.idx]))
	}
	return strings.Join(out, ". ")
}
