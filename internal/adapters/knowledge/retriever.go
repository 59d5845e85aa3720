// Package knowledge adapts the guideline retrieval backend to the
// pipeline's KnowledgeLookup port. The built-in retriever ranks a local
// guideline corpus by keyword overlap; production deployments point it at a
// curated corpus file.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"medagent/internal/domain"
)

// Guideline is one entry of the local corpus.
type Guideline struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// Retriever is a keyword-overlap ranker over an in-memory corpus.
type Retriever struct {
	corpus []Guideline
	topK   int
}

func NewRetriever(corpus []Guideline) *Retriever {
	return &Retriever{corpus: corpus, topK: 3}
}

// NewRetrieverFromFile loads a JSON guideline corpus from disk.
func NewRetrieverFromFile(path string) (*Retriever, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading guidelines: %w", err)
	}
	var corpus []Guideline
	if err := json.Unmarshal(raw, &corpus); err != nil {
		return nil, fmt.Errorf("parsing guidelines: %w", err)
	}
	return NewRetriever(corpus), nil
}

// Retrieve implements domain.KnowledgeLookup. Returns the "no match"
// sentinel when nothing in the corpus overlaps the query.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	terms := tokenize(query)
	if len(terms) == 0 || len(r.corpus) == 0 {
		return domain.NoGuidelinesText, nil
	}

	type scored struct {
		g     Guideline
		score int
	}
	var ranked []scored
	for _, g := range r.corpus {
		s := overlap(terms, tokenize(g.Topic+" "+g.Text))
		if s > 0 {
			ranked = append(ranked, scored{g: g, score: s})
		}
	}
	if len(ranked) == 0 {
		return domain.NoGuidelinesText, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}

	var b strings.Builder
	for _, s := range ranked {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", s.g.Topic, s.g.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
