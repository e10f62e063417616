package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/ranker/internal/config"
	"github.com/knowledge-engine/ranker/internal/corpus"
	"github.com/knowledge-engine/ranker/internal/metrics"
	"github.com/knowledge-engine/ranker/internal/output"
	"github.com/knowledge-engine/ranker/internal/storage"
)

// RunReport summarizes one run
type RunReport struct {
	Algorithm     string        `json:"algorithm"`
	Documents     int           `json:"documents"`
	Queries       int           `json:"queries"`
	FailedQueries int           `json:"failed_queries"`
	DummyQueries  int           `json:"dummy_queries"`
	Hits          int           `json:"hits"`
	StopWords     []string      `json:"stop_words"`
	InputDigest   string        `json:"input_digest"`
	OutputDigest  string        `json:"output_digest"`
	Duration      time.Duration `json:"duration_ns"`
}

// Run executes the whole pipeline: read and parse both input files, index,
// rank every query and write the output file. Any error before the output
// is saved leaves no output behind. Once it is saved the run has succeeded;
// failing to write the report or metrics file is only logged. m may be nil.
func Run(ctx context.Context, cfg *config.Config, logger *logrus.Entry, store storage.RunStorage, m *metrics.Metrics) (*RunReport, error) {
	start := time.Now()

	eng, err := NewEngine(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	docsText, err := store.ReadText(cfg.Run.DocsFile)
	if err != nil {
		return nil, fmt.Errorf("docs file %s: %w", cfg.Run.DocsFile, err)
	}
	queriesText, err := store.ReadText(cfg.Run.QueryFile)
	if err != nil {
		return nil, fmt.Errorf("query file %s: %w", cfg.Run.QueryFile, err)
	}

	docsBody := docsText
	if cfg.Corpus.StripMarkup {
		if docsBody, err = corpus.StripMarkup(docsText); err != nil {
			return nil, fmt.Errorf("docs file %s: %w", cfg.Run.DocsFile, err)
		}
	}
	docs, err := corpus.ParseDocuments(docsBody)
	if err != nil {
		return nil, fmt.Errorf("docs file %s: %w", cfg.Run.DocsFile, err)
	}
	queries, err := corpus.ParseQueries(queriesText)
	if err != nil {
		return nil, fmt.Errorf("query file %s: %w", cfg.Run.QueryFile, err)
	}
	logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"queries":   len(queries),
	}).Info("Parsed input files")

	if err := eng.Index(ctx, docs); err != nil {
		return nil, err
	}
	results, err := eng.Rank(ctx, queries)
	if err != nil {
		return nil, err
	}

	lines := output.Formatter{IncludeScores: cfg.Output.IncludeScores}.FormatAll(results)
	if err := store.SaveLines(cfg.Run.OutputFile, lines); err != nil {
		return nil, fmt.Errorf("output file %s: %w", cfg.Run.OutputFile, err)
	}

	report := &RunReport{
		Algorithm:     string(eng.Strategy.Name()),
		Documents:     eng.Stats.Documents,
		Queries:       eng.Stats.Queries,
		FailedQueries: eng.Stats.FailedQueries,
		DummyQueries:  eng.Stats.DummyQueries,
		Hits:          eng.Stats.Hits,
		StopWords:     eng.StopWords(),
		InputDigest:   storage.DigestLines([]string{docsText, queriesText}),
		OutputDigest:  storage.DigestLines(lines),
		Duration:      time.Since(start),
	}

	logger.WithFields(logrus.Fields{
		"algorithm":      report.Algorithm,
		"documents":      report.Documents,
		"queries":        report.Queries,
		"failed_queries": report.FailedQueries,
		"dummy_queries":  report.DummyQueries,
		"hits":           report.Hits,
		"output":         cfg.Run.OutputFile,
		"duration":       report.Duration,
	}).Info("Run complete")

	if cfg.Output.ReportFile != "" {
		if err := store.SaveJSON(cfg.Output.ReportFile, report); err != nil {
			logger.WithError(err).WithField("path", cfg.Output.ReportFile).Warn("Failed to write report file")
		}
	}
	if cfg.Output.MetricsFile != "" && m != nil {
		if err := m.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			logger.WithError(err).WithField("path", cfg.Output.MetricsFile).Warn("Failed to write metrics file")
		}
	}
	return report, nil
}
