package knowledge

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func testCorpus() []Article {
	return []Article{
		{
			ID:           "robot",
			Title:        "Robot",
			Content:      "A robot is a machine that carries out tasks automatically. Robots are used in manufacturing. Modern robots rely on sensors and software.",
			URL:          "https://kb.local/robot",
			Keywords:     []string{"robot", "machine", "manufacturing"},
			QualityScore: 0.9,
			WordCount:    1500,
		},
		{
			ID:           "automation",
			Title:        "Automation",
			Content:      "Automation is the use of control systems to operate equipment with minimal human intervention. Automation reduces manual labour. It is central to modern industry.",
			URL:          "https://kb.local/automation",
			Keywords:     []string{"automation", "control systems", "industry"},
			QualityScore: 0.85,
			WordCount:    1200,
		},
		{
			ID:           "ai",
			Title:        "Artificial intelligence",
			Content:      "Artificial intelligence studies how machines can perform tasks that require intelligence. Machine learning is a subfield. AI systems learn from data.",
			URL:          "https://kb.local/ai",
			Keywords:     []string{"ai", "artificial intelligence", "machine learning"},
			QualityScore: 0.8,
			WordCount:    1800,
		},
	}
}

func mustBuild(t *testing.T) *Index {
	t.Helper()
	ix, err := Build(testCorpus())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return ix
}

func TestBuildRejectsEmptyCorpus(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Fatalf("expected error for empty corpus")
	}
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	corpus := testCorpus()
	corpus = append(corpus, corpus[0])
	_, err := Build(corpus)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLookupByKeyword(t *testing.T) {
	ix := mustBuild(t)
	ids := ix.LookupByKeyword("robot")
	if len(ids) != 1 || ids[0] != "robot" {
		t.Fatalf("ids = %v", ids)
	}
	if ids := ix.LookupByKeyword("ROBOT"); len(ids) != 1 {
		t.Fatalf("keyword lookup should be case-insensitive, got %v", ids)
	}
}

func TestLookupByKeywordPluralFallback(t *testing.T) {
	ix := mustBuild(t)
	ids := ix.LookupByKeyword("robots")
	if len(ids) != 1 || ids[0] != "robot" {
		t.Fatalf("plural fallback failed: %v", ids)
	}
	if ids := ix.LookupByKeyword("machines"); len(ids) == 0 {
		t.Fatalf("expected singular fallback for machines")
	}
}

func TestLookupByTitle(t *testing.T) {
	ix := mustBuild(t)
	a, ok := ix.LookupByTitle("artificial intelligence")
	if !ok || a.ID != "ai" {
		t.Fatalf("title lookup failed: %v %v", a, ok)
	}
	if _, ok := ix.LookupByTitle("nope"); ok {
		t.Fatalf("unexpected title hit")
	}
}

func TestStats(t *testing.T) {
	ix := mustBuild(t)
	stats := ix.Stats()
	if stats.Articles != 3 {
		t.Fatalf("articles = %d", stats.Articles)
	}
	if stats.Words != 4500 {
		t.Fatalf("words = %d", stats.Words)
	}
	if stats.Keywords == 0 {
		t.Fatalf("keywords not indexed")
	}
}

func TestSearchContent(t *testing.T) {
	ix := mustBuild(t)
	hits, err := ix.SearchContent("manufacturing", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit")
	}
	if hits[0].ID != "robot" {
		t.Fatalf("top hit = %s", hits[0].ID)
	}
	if hits[0].Snippet == "" {
		t.Fatalf("missing snippet")
	}
}

func TestSnippetKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("é", 200)
	got := snippet(long, 15)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated snippet missing ellipsis: %q", got)
	}
	spaced := strings.Repeat("état ", 100)
	if got := snippet(spaced, 23); !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got)
	}
}

func TestHolderSwap(t *testing.T) {
	ix := mustBuild(t)
	h := NewHolder(ix)
	if h.Load() != ix {
		t.Fatalf("holder does not serve initial index")
	}
	replacement := mustBuild(t)
	h.Store(replacement)
	if h.Load() != replacement {
		t.Fatalf("holder did not swap")
	}
}
