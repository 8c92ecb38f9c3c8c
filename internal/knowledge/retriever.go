package knowledge

import (
	"sort"

	"github.com/radeon-ai/reasoner/internal/semantic"
)

const (
	hitWeight     = 0.7
	qualityWeight = 0.3
)

// Scored is a retrieved article with its relevance for the current query.
type Scored struct {
	Article   *Article `json:"article"`
	Relevance float64  `json:"relevance"`
}

// Retrieve ranks candidate articles for the detected entities. Earlier
// entities weigh more (1/(1+position)); the final score blends normalized
// hit weight with article quality. Ordering is fully deterministic:
// relevance desc, word count desc, title asc. An empty result is not an
// error; the caller decides what no evidence means.
func (ix *Index) Retrieve(entities []semantic.Entity, limit int) []Scored {
	if len(entities) == 0 || limit <= 0 {
		return nil
	}

	hits := make(map[string]float64)
	for i, e := range entities {
		weight := 1.0 / (1.0 + float64(i))
		seen := make(map[string]bool)
		for _, id := range ix.entityMatches(e) {
			if seen[id] {
				continue
			}
			seen[id] = true
			hits[id] += weight
		}
	}
	if len(hits) == 0 {
		return nil
	}

	var maxHit float64
	for _, h := range hits {
		if h > maxHit {
			maxHit = h
		}
	}

	scored := make([]Scored, 0, len(hits))
	for id, h := range hits {
		a := ix.articles[id]
		scored = append(scored, Scored{
			Article:   a,
			Relevance: hitWeight*(h/maxHit) + qualityWeight*a.QualityScore,
		})
	}
	SortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// SortScored orders candidates by relevance, breaking ties by word count and
// then title so equal inputs always rank identically.
func SortScored(scored []Scored) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Relevance != scored[j].Relevance {
			return scored[i].Relevance > scored[j].Relevance
		}
		if scored[i].Article.WordCount != scored[j].Article.WordCount {
			return scored[i].Article.WordCount > scored[j].Article.WordCount
		}
		return scored[i].Article.Title < scored[j].Article.Title
	})
}

// Coverage reports the fraction of entities with at least one matching
// article. Zero entities cover nothing.
func (ix *Index) Coverage(entities []semantic.Entity) float64 {
	if len(entities) == 0 {
		return 0
	}
	matched := 0
	for _, e := range entities {
		if len(ix.entityMatches(e)) > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(entities))
}

// entityMatches resolves an entity to article ids via its surface text,
// falling back to its category.
func (ix *Index) entityMatches(e semantic.Entity) []string {
	if ids := ix.LookupByKeyword(e.Text); len(ids) > 0 {
		return ids
	}
	return ix.LookupByKeyword(e.Category)
}
