// Package ranking holds the query-construction strategies a run can use.
package ranking

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/knowledge-engine/ranker/internal/analysis"
	"github.com/knowledge-engine/ranker/internal/corpus"
	"github.com/knowledge-engine/ranker/internal/queryparser"
	"github.com/knowledge-engine/ranker/internal/search"
)

// Algorithm names a strategy in the run configuration.
type Algorithm string

const (
	Basic    Algorithm = "basic"
	Improved Algorithm = "improved"
)

// ParseAlgorithm maps a configuration value to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.TrimSpace(s)); a {
	case Basic, Improved:
		return a, nil
	default:
		return "", fmt.Errorf("ranking: unknown retrieval algorithm %q (want %q or %q)", s, Basic, Improved)
	}
}

// Options tune the strategies.
type Options struct {
	// StopWordCount is how many high-frequency terms Basic treats as stop words.
	StopWordCount int
	// StopWordField is the field the stop words are counted in.
	StopWordField string
	// AbstractBoost weights the abstract clause of Improved.
	AbstractBoost float64
}

// DefaultOptions returns the standard experiment settings.
func DefaultOptions() Options {
	return Options{
		StopWordCount: 20,
		StopWordField: corpus.FieldAbstract,
		AbstractBoost: 12,
	}
}

// Strategy decides which stop words are added to the query analyzer and how
// a raw query becomes a search query.
type Strategy interface {
	Name() Algorithm
	SelectStopWords(ctx context.Context, idx *search.Index) (analysis.StopSet, error)
	BuildQuery(analyzer analysis.Analyzer, raw string) (query.Query, error)
}

// New returns the strategy for alg.
func New(alg Algorithm, opts Options) (Strategy, error) {
	switch alg {
	case Basic:
		if opts.StopWordCount <= 0 {
			return nil, fmt.Errorf("ranking: stop word count must be positive, got %d", opts.StopWordCount)
		}
		if opts.StopWordField == "" {
			return nil, fmt.Errorf("ranking: stop word field is empty")
		}
		return &basicStrategy{opts: opts}, nil
	case Improved:
		if opts.AbstractBoost <= 0 {
			return nil, fmt.Errorf("ranking: abstract boost must be positive, got %g", opts.AbstractBoost)
		}
		return &improvedStrategy{opts: opts}, nil
	default:
		return nil, fmt.Errorf("ranking: unknown retrieval algorithm %q", alg)
	}
}

// basicStrategy searches the combined text field and removes the corpus's
// most frequent terms from queries.
type basicStrategy struct {
	opts Options
}

func (s *basicStrategy) Name() Algorithm { return Basic }

func (s *basicStrategy) SelectStopWords(ctx context.Context, idx *search.Index) (analysis.StopSet, error) {
	return DeriveStopWords(ctx, idx, s.opts.StopWordField, s.opts.StopWordCount)
}

func (s *basicStrategy) BuildQuery(analyzer analysis.Analyzer, raw string) (query.Query, error) {
	return queryparser.NewParser(corpus.FieldText, analyzer).Parse(raw)
}

// improvedStrategy searches title and abstract separately and weights the
// abstract clause. It adds no stop words.
type improvedStrategy struct {
	opts Options
}

func (s *improvedStrategy) Name() Algorithm { return Improved }

func (s *improvedStrategy) SelectStopWords(context.Context, *search.Index) (analysis.StopSet, error) {
	return analysis.NewStopSet(), nil
}

func (s *improvedStrategy) BuildQuery(analyzer analysis.Analyzer, raw string) (query.Query, error) {
	title, err := queryparser.NewParser(corpus.FieldTitle, analyzer).Parse(raw)
	if err != nil {
		return nil, err
	}
	abstract, err := queryparser.NewParser(corpus.FieldAbstract, analyzer).Parse(raw)
	if err != nil {
		return nil, err
	}
	search.Boost(abstract, s.opts.AbstractBoost)

	return query.NewBooleanQuery(nil, []query.Query{title, abstract}, nil), nil
}

// DeriveStopWords returns the top terms of field by total term frequency.
func DeriveStopWords(ctx context.Context, idx *search.Index, field string, topN int) (analysis.StopSet, error) {
	stats, err := search.HighFreqTerms(ctx, idx, field, topN)
	if err != nil {
		return nil, fmt.Errorf("ranking: derive stop words: %w", err)
	}
	words := make([]string, len(stats))
	for i, st := range stats {
		words[i] = st.Term
	}
	return analysis.NewStopSet(words...), nil
}
