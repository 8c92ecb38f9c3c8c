package knowledge

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/blevesearch/bleve"
)

// BuildError indicates the corpus could not be turned into a servable index.
// It is startup-fatal: the process must not serve traffic without an index.
type BuildError struct {
	msg string
}

func (e *BuildError) Error() string { return "knowledge index build: " + e.msg }

// Index is the read-only lookup structure over the article corpus. It is
// built once and never mutated afterwards, so concurrent reads need no
// synchronization. Corpus refreshes swap in a whole new Index via Holder.
type Index struct {
	articles map[string]*Article // id -> article
	titles   map[string]*Article // lowercased title -> article
	keywords map[string][]string // keyword -> ordered article ids
	content  bleve.Index
	stats    Stats
}

// Stats summarises the indexed corpus.
type Stats struct {
	Articles int `json:"articles"`
	Words    int `json:"words"`
	Keywords int `json:"keywords"`
}

// ContentHit is one full-text search result over article content.
type ContentHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

type contentDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

var tokenPattern = regexp.MustCompile(`[a-z0-9][a-z0-9'-]*`)

// Build constructs the index from the corpus. It fails when the corpus is
// empty or contains duplicate ids.
func Build(corpus []Article) (*Index, error) {
	if len(corpus) == 0 {
		return nil, &BuildError{msg: "empty corpus"}
	}

	mem, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, &BuildError{msg: fmt.Sprintf("content index: %v", err)}
	}

	ix := &Index{
		articles: make(map[string]*Article, len(corpus)),
		titles:   make(map[string]*Article, len(corpus)),
		keywords: make(map[string][]string),
		content:  mem,
	}

	for i := range corpus {
		a := &corpus[i]
		if a.ID == "" {
			return nil, &BuildError{msg: fmt.Sprintf("article %q has no id", a.Title)}
		}
		if _, dup := ix.articles[a.ID]; dup {
			return nil, &BuildError{msg: fmt.Sprintf("duplicate article id %q", a.ID)}
		}
		ix.articles[a.ID] = a
		ix.titles[strings.ToLower(a.Title)] = a

		seen := make(map[string]bool)
		for _, kw := range a.Keywords {
			ix.addKeyword(normalizeKeyword(kw), a.ID, seen)
		}
		for _, tok := range tokenPattern.FindAllString(strings.ToLower(a.Title), -1) {
			ix.addKeyword(tok, a.ID, seen)
		}

		if err := mem.Index(a.ID, contentDoc{Title: a.Title, Content: a.Content}); err != nil {
			return nil, &BuildError{msg: fmt.Sprintf("indexing %q: %v", a.ID, err)}
		}

		ix.stats.Words += a.WordCount
	}
	ix.stats.Articles = len(ix.articles)
	ix.stats.Keywords = len(ix.keywords)
	return ix, nil
}

func (ix *Index) addKeyword(kw, id string, seen map[string]bool) {
	if kw == "" || seen[kw] {
		return
	}
	seen[kw] = true
	ix.keywords[kw] = append(ix.keywords[kw], id)
}

// LookupByKeyword returns article ids registered under keyword, in corpus
// order. Plural forms fall back to their singular.
func (ix *Index) LookupByKeyword(keyword string) []string {
	kw := normalizeKeyword(keyword)
	if ids, ok := ix.keywords[kw]; ok {
		return ids
	}
	for _, suffix := range []string{"es", "s"} {
		if stem, ok := strings.CutSuffix(kw, suffix); ok {
			if ids, found := ix.keywords[stem]; found {
				return ids
			}
		}
	}
	return nil
}

// LookupByTitle resolves an article by its exact (case-insensitive) title.
func (ix *Index) LookupByTitle(title string) (*Article, bool) {
	a, ok := ix.titles[strings.ToLower(strings.TrimSpace(title))]
	return a, ok
}

// ArticleByID resolves an article by id.
func (ix *Index) ArticleByID(id string) (*Article, bool) {
	a, ok := ix.articles[id]
	return a, ok
}

// Stats returns corpus counters for the status endpoint.
func (ix *Index) Stats() Stats { return ix.stats }

// SearchContent runs a full-text query over article titles and content.
// Used by the debug search endpoint; ranking for the reasoning pipeline goes
// through Retrieve instead.
func (ix *Index) SearchContent(q string, k int) ([]ContentHit, error) {
	if strings.TrimSpace(q) == "" || k <= 0 {
		return nil, nil
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := ix.content.Search(req)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}
	hits := make([]ContentHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		a, ok := ix.articles[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, ContentHit{
			ID:      a.ID,
			Title:   a.Title,
			Score:   hit.Score,
			Snippet: snippet(a.Content, 240),
		})
	}
	return hits, nil
}

func normalizeKeyword(kw string) string {
	return strings.Join(strings.Fields(strings.ToLower(kw)), " ")
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so a multi-byte character is never split.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

// Holder publishes the current index. Corpus refreshes store a freshly built
// index; in-flight requests keep the one they loaded.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder wraps an initial index.
func NewHolder(ix *Index) *Holder {
	h := &Holder{}
	h.current.Store(ix)
	return h
}

// Load returns the index currently being served.
func (h *Holder) Load() *Index { return h.current.Load() }

// Store swaps in a rebuilt index.
func (h *Holder) Store(ix *Index) { h.current.Store(ix) }
