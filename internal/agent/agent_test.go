package agent

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/radeon-ai/reasoner/config"
	"github.com/radeon-ai/reasoner/internal/conversation"
	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/semantic"
	"github.com/radeon-ai/reasoner/internal/telemetry"
)

func testConfig() *config.Config {
	return &config.Config{
		Retrieval: config.RetrievalConfig{Limit: 5, CarryoverDiscount: 0.8},
		Session:   config.SessionConfig{Store: "inmemory", TTL: time.Hour, MaxHistory: 10},
		Cache:     config.CacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 16},
	}
}

func testCorpus() []knowledge.Article {
	return []knowledge.Article{
		{
			ID: "robot", Title: "Robot", URL: "https://kb.local/robot",
			Content:      "A robot is a machine that carries out tasks automatically. Robots are used in manufacturing. Modern robots rely on sensors and software.",
			Keywords:     []string{"robot", "machine", "manufacturing"},
			QualityScore: 0.9, WordCount: 1500,
		},
		{
			ID: "automation", Title: "Automation", URL: "https://kb.local/automation",
			Content:      "Automation is the use of control systems to operate equipment. Automation reduces manual labour. It drives modern industry.",
			Keywords:     []string{"automation", "control systems", "industry"},
			QualityScore: 0.85, WordCount: 1200,
		},
		{
			ID: "ai", Title: "Artificial intelligence", URL: "https://kb.local/ai",
			Content:      "Artificial intelligence studies machines that perform tasks needing intelligence. Machine learning is a subfield. AI systems learn from data.",
			Keywords:     []string{"ai", "artificial intelligence", "machine learning"},
			QualityScore: 0.8, WordCount: 1800,
		},
	}
}

func testAgent(t *testing.T) *Agent {
	t.Helper()
	ix, err := knowledge.Build(testCorpus())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	holder := knowledge.NewHolder(ix)
	store := conversation.NewInMemoryStore(time.Hour)
	tele := telemetry.NewTelemetry(config.TelemetryConfig{})
	return New(testConfig(), holder, store, tele)
}

func TestProcessFactualQuery(t *testing.T) {
	a := testAgent(t)
	resp, err := a.Process(context.Background(), Request{Message: "What is a robot?"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Intent != "factual" {
		t.Fatalf("intent = %s", resp.Intent)
	}
	if resp.Sources < 1 {
		t.Fatalf("sources = %d, want at least 1", resp.Sources)
	}
	if resp.Confidence < 0.5 || resp.Confidence > 0.95 {
		t.Fatalf("confidence = %v, want within [0.5, 0.95]", resp.Confidence)
	}
	if resp.Answer == "" || strings.HasPrefix(resp.Answer, "Note:") {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.ReasoningSteps) != 4 {
		t.Fatalf("steps = %d", len(resp.ReasoningSteps))
	}
}

func TestProcessComparativeQuery(t *testing.T) {
	a := testAgent(t)
	resp, err := a.Process(context.Background(), Request{Message: "Compare robots and automation"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Intent != "comparative" {
		t.Fatalf("intent = %s", resp.Intent)
	}
	if len(resp.Entities) != 2 {
		t.Fatalf("entities = %v", resp.Entities)
	}
	if resp.Sources < 2 {
		t.Fatalf("sources = %d, want both sides cited", resp.Sources)
	}
}

func TestProcessComparativeDemotion(t *testing.T) {
	a := testAgent(t)
	resp, err := a.Process(context.Background(), Request{Message: "Compare robots"})
	if err != nil {
		t.Fatalf("demotion must not error: %v", err)
	}
	if resp.Intent != "comparative" {
		t.Fatalf("reported intent must stay comparative, got %s", resp.Intent)
	}
	demoted := false
	for _, s := range resp.ReasoningSteps {
		if strings.Contains(s.Content, "Demoted") {
			demoted = true
		}
	}
	if !demoted {
		t.Fatalf("reasoning steps do not record the demotion: %+v", resp.ReasoningSteps)
	}
}

func TestProcessNonsenseQuery(t *testing.T) {
	a := testAgent(t)
	resp, err := a.Process(context.Background(), Request{Message: "xqzw blorf vexing gibberish"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Sources != 0 {
		t.Fatalf("sources = %d, want 0", resp.Sources)
	}
	if math.Abs(resp.Confidence-0.1) > 1e-9 {
		t.Fatalf("confidence = %v, want the 0.1 floor", resp.Confidence)
	}
	if !strings.HasPrefix(resp.Answer, "Note:") {
		t.Fatalf("expected a caveat-bearing answer, got %q", resp.Answer)
	}
}

func TestProcessEmptyQuery(t *testing.T) {
	a := testAgent(t)
	if _, err := a.Process(context.Background(), Request{Message: "   "}); err == nil {
		t.Fatalf("expected error for empty message")
	} else if err != semantic.ErrEmptyQuery {
		t.Fatalf("error = %v, want ErrEmptyQuery", err)
	}
}

func TestProcessFollowUpTracksSession(t *testing.T) {
	a := testAgent(t)
	ctx := context.Background()

	first, err := a.Process(ctx, Request{Message: "What is a robot?", SessionID: "s1"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if first.SessionTurns != 1 {
		t.Fatalf("turns after first query = %d", first.SessionTurns)
	}

	second, err := a.Process(ctx, Request{Message: "Tell me more about robots", SessionID: "s1"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if second.SessionTurns != 2 {
		t.Fatalf("turns after follow-up = %d", second.SessionTurns)
	}
	integrated := false
	for _, s := range second.ReasoningSteps {
		if s.Kind == "context_integration" {
			integrated = true
		}
	}
	if !integrated {
		t.Fatalf("follow-up is missing the context integration step: %+v", second.ReasoningSteps)
	}
}

func TestProcessIdempotentWithinSession(t *testing.T) {
	// two separate sessions asking the same thing get identical content
	a := testAgent(t)
	ctx := context.Background()
	one, err := a.Process(ctx, Request{Message: "What is automation?", SessionID: "a"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	two, err := a.Process(ctx, Request{Message: "What is automation?", SessionID: "b"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if one.Answer != two.Answer {
		t.Fatalf("answers differ: %q vs %q", one.Answer, two.Answer)
	}
	if one.Confidence != two.Confidence {
		t.Fatalf("confidence differs: %v vs %v", one.Confidence, two.Confidence)
	}
	if len(one.Entities) != len(two.Entities) {
		t.Fatalf("entities differ")
	}
}

func TestProcessServesFromCache(t *testing.T) {
	a := testAgent(t)
	ctx := context.Background()
	first, err := a.Process(ctx, Request{Message: "What is a robot?", SessionID: "s1"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if first.FromCache {
		t.Fatalf("first response cannot come from cache")
	}
	second, err := a.Process(ctx, Request{Message: "what is a  robot?", SessionID: "s1"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("normalized repeat should hit the cache")
	}
	if second.Answer != first.Answer {
		t.Fatalf("cached answer differs")
	}
	if second.ID == first.ID {
		t.Fatalf("cached response reused the original response id %s", first.ID)
	}
}

func TestProcessAssignsSessionID(t *testing.T) {
	a := testAgent(t)
	resp, err := a.Process(context.Background(), Request{Message: "What is a robot?"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.SessionID == "" || resp.ID == "" {
		t.Fatalf("missing generated ids: %+v", resp)
	}
}
