package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Article is one cleaned knowledge-base entry produced by the ingestion
// pipeline. Articles are immutable once indexed.
type Article struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	URL          string   `json:"url,omitempty"`
	Keywords     []string `json:"keywords"`
	QualityScore float64  `json:"quality_score"`
	WordCount    int      `json:"word_count"`
}

// LoadCorpus reads a corpus file (JSON array of articles) written by the
// ingestion pipeline. Word counts missing from the file are computed from the
// content so older corpus dumps keep working.
func LoadCorpus(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}

	for i := range articles {
		if articles[i].WordCount == 0 {
			articles[i].WordCount = len(strings.Fields(articles[i].Content))
		}
	}
	return articles, nil
}
