// Package analysis turns field text into the term stream that is indexed
// and queried.
//
// Analyzers are bleve analysis chains built from a UAX #29 word tokenizer,
// a lower-casing filter, a stop filter and an optional English snowball
// stemmer. Positions count every word segment, including the ones removed
// as stop words, so phrase matching sees the gaps.
package analysis

import (
	"fmt"

	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Analyzer produces the token stream for a field value.
type Analyzer = bleveanalysis.Analyzer

// Config describes one analyzer chain.
type Config struct {
	StopWords StopSet
	// Stemming enables the English snowball stemmer after stop filtering.
	// A term whose stem is a stop word is removed as well.
	Stemming       bool
	MaxTokenLength int
}

// Register defines an analyzer called name, with its tokenizer and filters,
// on the mapping. Names must be unique per mapping.
func Register(m *mapping.IndexMappingImpl, name string, cfg Config) error {
	maxLen := cfg.MaxTokenLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTokenLength
	}

	tokenizer := name + "_words"
	err := m.AddCustomTokenizer(tokenizer, map[string]interface{}{
		"type":             TokenizerName,
		"max_token_length": maxLen,
	})
	if err != nil {
		return fmt.Errorf("analysis: analyzer %s: %w", name, err)
	}

	filters := []string{LowercaseName}
	if len(cfg.StopWords) > 0 {
		stopMap := name + "_stop_words"
		tokens := make([]interface{}, 0, len(cfg.StopWords))
		for _, term := range cfg.StopWords.Sorted() {
			tokens = append(tokens, term)
		}
		err := m.AddCustomTokenMap(stopMap, map[string]interface{}{
			"type":   tokenmap.Name,
			"tokens": tokens,
		})
		if err != nil {
			return fmt.Errorf("analysis: analyzer %s: %w", name, err)
		}

		stopFilter := name + "_stop"
		err = m.AddCustomTokenFilter(stopFilter, map[string]interface{}{
			"type":           stop.Name,
			"stop_token_map": stopMap,
		})
		if err != nil {
			return fmt.Errorf("analysis: analyzer %s: %w", name, err)
		}

		filters = append(filters, stopFilter)
		if cfg.Stemming {
			filters = append(filters, StemmerName, stopFilter)
		}
	} else if cfg.Stemming {
		filters = append(filters, StemmerName)
	}

	err = m.AddCustomAnalyzer(name, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     tokenizer,
		"token_filters": filters,
	})
	if err != nil {
		return fmt.Errorf("analysis: analyzer %s: %w", name, err)
	}
	return nil
}

// Lookup returns the analyzer registered under name.
func Lookup(m *mapping.IndexMappingImpl, name string) (Analyzer, error) {
	a := m.AnalyzerNamed(name)
	if a == nil {
		return nil, fmt.Errorf("analysis: analyzer %s is not defined", name)
	}
	return a, nil
}

// Terms is a convenience wrapper returning only the term texts.
func Terms(stream bleveanalysis.TokenStream) []string {
	out := make([]string, len(stream))
	for i, t := range stream {
		out[i] = string(t.Term)
	}
	return out
}
