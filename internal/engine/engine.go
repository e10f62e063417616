package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/ranker/internal/analysis"
	"github.com/knowledge-engine/ranker/internal/config"
	"github.com/knowledge-engine/ranker/internal/corpus"
	"github.com/knowledge-engine/ranker/internal/metrics"
	"github.com/knowledge-engine/ranker/internal/output"
	"github.com/knowledge-engine/ranker/internal/ranking"
	"github.com/knowledge-engine/ranker/internal/search"
)

var (
	ErrNotIndexed     = errors.New("engine: no documents indexed")
	ErrAlreadyIndexed = errors.New("engine: documents already indexed")
)

// Engine indexes one corpus and ranks queries against it
type Engine struct {
	Config   *config.Config
	Logger   *logrus.Entry
	Strategy ranking.Strategy
	Metrics  *metrics.Metrics

	index *search.Index

	// base is the indexing analyzer; analyzer adds the derived stop words.
	base      analysis.Analyzer
	analyzer  analysis.Analyzer
	stopWords analysis.StopSet
	indexed   bool

	// Stats
	Stats EngineStats
}

type EngineStats struct {
	Documents     int
	Queries       int
	FailedQueries int
	DummyQueries  int
	Hits          int
}

// ScoredHit is one search hit mapped to its external document id
type ScoredHit struct {
	DocID int
	Score float64
}

// NewEngine validates the algorithm and opens the configured index store.
// An unknown algorithm is a *config.ConfigError.
func NewEngine(cfg *config.Config, logger *logrus.Entry, m *metrics.Metrics) (*Engine, error) {
	alg, err := ranking.ParseAlgorithm(cfg.Run.RetrievalAlgorithm)
	if err != nil {
		return nil, &config.ConfigError{Key: config.KeyRetrievalAlgorithm, Reason: err.Error()}
	}
	strategy, err := ranking.New(alg, cfg.RankingOptions())
	if err != nil {
		return nil, &config.ConfigError{Reason: err.Error()}
	}
	if cfg.Ranking.HitsPerQuery <= 0 {
		return nil, &config.ConfigError{Key: config.KeyHitsPerQuery, Reason: "must be positive"}
	}

	switch cfg.Index.Store {
	case config.StoreMemory, config.StoreSQLite, "":
	default:
		return nil, &config.ConfigError{Key: config.KeyIndexStore, Reason: fmt.Sprintf("unknown store %q", cfg.Index.Store)}
	}

	idx, err := search.NewIndex(search.Options{
		Store:  cfg.Index.Store,
		Fields: schema,
		Analyzer: analysis.Config{
			StopWords: analysis.EnglishStopWords(),
			Stemming:  cfg.Ranking.Stemming,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	return &Engine{
		Config:   cfg,
		Logger:   logger,
		Strategy: strategy,
		Metrics:  m,
		index:    idx,
	}, nil
}

// queryAnalyzer is the indexing analyzer plus the derived stop words.
const queryAnalyzer = "query"

var schema = map[string]search.FieldKind{
	corpus.FieldID:       search.KeywordField,
	corpus.FieldTitle:    search.TextField,
	corpus.FieldAbstract: search.TextField,
	corpus.FieldText:     search.TextField,
}

// Index writes every document and commits the index, once. Stop words are
// derived from the committed index and added to the query analyzer.
func (e *Engine) Index(ctx context.Context, docs []corpus.Document) error {
	if e.index == nil {
		return search.ErrIndexClosed
	}
	if e.indexed {
		return ErrAlreadyIndexed
	}

	for _, d := range docs {
		doc := search.NewDocument(
			search.NewIntField(corpus.FieldID, d.ID),
			search.NewTextField(corpus.FieldTitle, d.Title),
			search.NewTextField(corpus.FieldAbstract, d.Abstract),
			search.NewTextField(corpus.FieldText, d.Text),
		)
		if _, err := e.index.Add(doc); err != nil {
			return fmt.Errorf("failed to index document %d: %w", d.ID, err)
		}
	}
	if err := e.index.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}

	stop, err := e.Strategy.SelectStopWords(ctx, e.index)
	if err != nil {
		return err
	}
	err = e.index.RegisterAnalyzer(queryAnalyzer, analysis.Config{
		StopWords: analysis.EnglishStopWords().Union(stop),
		Stemming:  e.Config.Ranking.Stemming,
	})
	if err != nil {
		return err
	}
	if e.base, err = e.index.Analyzer(search.IndexAnalyzer); err != nil {
		return err
	}
	if e.analyzer, err = e.index.Analyzer(queryAnalyzer); err != nil {
		return err
	}

	e.indexed = true
	e.stopWords = stop
	e.Stats.Documents = e.index.NumDocs()
	e.Metrics.SetDocuments(e.Stats.Documents)

	e.Logger.WithFields(logrus.Fields{
		"documents":  e.Stats.Documents,
		"algorithm":  e.Strategy.Name(),
		"stop_words": len(stop),
	}).Info("Index built")
	if len(stop) > 0 {
		e.Logger.WithField("terms", stop.Sorted()).Debug("Derived stop words")
	}
	return nil
}

// StopWords returns the derived stop words in sorted order
func (e *Engine) StopWords() []string {
	return e.stopWords.Sorted()
}

// Rank runs every query in input order. A query that fails to parse or
// matches nothing contributes one dummy result.
func (e *Engine) Rank(ctx context.Context, queries []corpus.Query) ([]output.RankedResult, error) {
	if !e.indexed || e.index == nil {
		return nil, ErrNotIndexed
	}

	var results []output.RankedResult
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ranked, err := e.rankQuery(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", q.ID, err)
		}
		results = append(results, ranked...)
	}
	return results, nil
}

func (e *Engine) rankQuery(ctx context.Context, q corpus.Query) ([]output.RankedResult, error) {
	start := time.Now()
	e.Stats.Queries++
	log := e.Logger.WithField("query_id", q.ID)

	sq, err := e.buildQuery(q.RawText)
	if err != nil {
		log.WithError(err).Warn("Failed to parse query")
		e.Stats.FailedQueries++
		e.Stats.DummyQueries++
		e.Metrics.RecordQuery(metrics.OutcomeParseError, 0, time.Since(start))
		return []output.RankedResult{output.Dummy(q.ID)}, nil
	}

	top, err := e.index.Search(ctx, sq, e.Config.Ranking.HitsPerQuery)
	if err != nil {
		return nil, err
	}

	hits := make([]ScoredHit, 0, len(top.Hits))
	for _, hit := range top.Hits {
		id, err := hit.Stored.Int(corpus.FieldID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, ScoredHit{DocID: id, Score: hit.Score})
	}
	log.WithField("query", search.Describe(sq)).Debugf("Found %d hits.", len(hits))

	outcome := metrics.OutcomeOK
	if len(hits) == 0 {
		outcome = metrics.OutcomeEmpty
		e.Stats.DummyQueries++
	}
	e.Stats.Hits += len(hits)
	e.Metrics.RecordQuery(outcome, len(hits), time.Since(start))

	return RankHits(q.ID, hits), nil
}

// buildQuery falls back to the indexing analyzer when the derived stop
// words remove every query term.
func (e *Engine) buildQuery(raw string) (query.Query, error) {
	q, err := e.Strategy.BuildQuery(e.analyzer, raw)
	if err != nil {
		return nil, err
	}
	if len(e.stopWords) > 0 && search.MatchesNothing(q) {
		e.Logger.Debug("Query consists of derived stop words only, retrying without them")
		return e.Strategy.BuildQuery(e.base, raw)
	}
	return q, nil
}

// RankHits orders hits by score descending, then document id ascending, and
// assigns ranks from 1. No hits yields the dummy result.
func RankHits(queryID int, hits []ScoredHit) []output.RankedResult {
	if len(hits) == 0 {
		return []output.RankedResult{output.Dummy(queryID)}
	}

	sorted := make([]ScoredHit, len(hits))
	copy(sorted, hits)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].DocID < sorted[j].DocID
	})

	results := make([]output.RankedResult, len(sorted))
	for i, h := range sorted {
		results[i] = output.RankedResult{
			QueryID: queryID,
			DocID:   h.DocID,
			Rank:    i + 1,
			Score:   h.Score,
		}
	}
	return results
}

// Close releases the index. It is safe to call more than once.
func (e *Engine) Close() error {
	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}
