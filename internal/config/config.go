package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/knowledge-engine/ranker/internal/ranking"
)

// Parameter file keys
const (
	KeyQueryFile          = "queryFile"
	KeyDocsFile           = "docsFile"
	KeyOutputFile         = "outputFile"
	KeyRetrievalAlgorithm = "retrievalAlgorithm"

	KeyHitsPerQuery  = "hitsPerQuery"
	KeyStopWordCount = "stopWordCount"
	KeyStopWordField = "stopWordField"
	KeyAbstractBoost = "abstractBoost"
	KeyStemming      = "stemming"
	KeyIndexStore    = "indexStore"
	KeyIncludeScores = "includeScores"
	KeyStripMarkup   = "stripMarkup"
	KeyMetricsFile   = "metricsFile"
	KeyReportFile    = "reportFile"
	KeyLogLevel      = "logLevel"
)

// Index stores
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds the configuration of one ranking run
type Config struct {
	Run     RunConfig
	Corpus  CorpusConfig
	Ranking RankingConfig
	Index   IndexConfig
	Output  OutputConfig
	Log     LogConfig
}

// RunConfig holds the required parameter file entries
type RunConfig struct {
	QueryFile          string
	DocsFile           string
	OutputFile         string
	RetrievalAlgorithm string
}

// CorpusConfig controls how the document file is read
type CorpusConfig struct {
	StripMarkup bool
}

// RankingConfig holds retrieval tuning
type RankingConfig struct {
	HitsPerQuery  int
	StopWordCount int
	StopWordField string
	AbstractBoost float64
	Stemming      bool
}

// IndexConfig selects where the index lives during the run
type IndexConfig struct {
	Store string
}

// OutputConfig holds result and report options
type OutputConfig struct {
	IncludeScores bool
	MetricsFile   string
	ReportFile    string
}

// LogConfig holds logging options
type LogConfig struct {
	Level string
}

// ConfigError reports a missing or invalid parameter
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Default returns a configuration with every optional value set
func Default() *Config {
	opts := ranking.DefaultOptions()
	return &Config{
		Ranking: RankingConfig{
			HitsPerQuery:  10,
			StopWordCount: opts.StopWordCount,
			StopWordField: opts.StopWordField,
			AbstractBoost: opts.AbstractBoost,
		},
		Index: IndexConfig{Store: StoreMemory},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the parameter file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads key=value lines. The first occurrence of a key wins, blank
// lines, # comments and lines without "=" are skipped. Unknown keys are
// ignored.
func Parse(r io.Reader) (*Config, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := values[key]; !seen {
			values[key] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}

	cfg := Default()
	required := []struct {
		key string
		dst *string
	}{
		{KeyQueryFile, &cfg.Run.QueryFile},
		{KeyDocsFile, &cfg.Run.DocsFile},
		{KeyOutputFile, &cfg.Run.OutputFile},
		{KeyRetrievalAlgorithm, &cfg.Run.RetrievalAlgorithm},
	}
	for _, req := range required {
		v, ok := values[req.key]
		if !ok || v == "" {
			return nil, &ConfigError{Key: req.key, Reason: "missing required key"}
		}
		*req.dst = v
	}

	var err error
	if cfg.Ranking.HitsPerQuery, err = intValue(values, KeyHitsPerQuery, cfg.Ranking.HitsPerQuery); err != nil {
		return nil, err
	}
	if cfg.Ranking.StopWordCount, err = intValue(values, KeyStopWordCount, cfg.Ranking.StopWordCount); err != nil {
		return nil, err
	}
	if cfg.Ranking.AbstractBoost, err = floatValue(values, KeyAbstractBoost, cfg.Ranking.AbstractBoost); err != nil {
		return nil, err
	}
	if cfg.Ranking.Stemming, err = boolValue(values, KeyStemming, cfg.Ranking.Stemming); err != nil {
		return nil, err
	}
	if cfg.Output.IncludeScores, err = boolValue(values, KeyIncludeScores, cfg.Output.IncludeScores); err != nil {
		return nil, err
	}
	if cfg.Corpus.StripMarkup, err = boolValue(values, KeyStripMarkup, cfg.Corpus.StripMarkup); err != nil {
		return nil, err
	}
	cfg.Ranking.StopWordField = stringValue(values, KeyStopWordField, cfg.Ranking.StopWordField)
	cfg.Index.Store = stringValue(values, KeyIndexStore, cfg.Index.Store)
	cfg.Output.MetricsFile = stringValue(values, KeyMetricsFile, cfg.Output.MetricsFile)
	cfg.Output.ReportFile = stringValue(values, KeyReportFile, cfg.Output.ReportFile)
	cfg.Log.Level = stringValue(values, KeyLogLevel, cfg.Log.Level)

	return cfg, nil
}

// ApplyEnv overrides values from RANKER_* environment variables
func (c *Config) ApplyEnv() {
	c.Log.Level = GetStringEnv("RANKER_LOG_LEVEL", c.Log.Level)
	c.Index.Store = GetStringEnv("RANKER_INDEX_STORE", c.Index.Store)
	c.Ranking.HitsPerQuery = GetIntEnv("RANKER_HITS_PER_QUERY", c.Ranking.HitsPerQuery)
	c.Output.IncludeScores = GetBoolEnv("RANKER_INCLUDE_SCORES", c.Output.IncludeScores)
}

// Validate checks values that parsing alone cannot
func (c *Config) Validate() error {
	if _, err := ranking.ParseAlgorithm(c.Run.RetrievalAlgorithm); err != nil {
		return &ConfigError{Key: KeyRetrievalAlgorithm, Reason: fmt.Sprintf("unknown algorithm %q", c.Run.RetrievalAlgorithm)}
	}
	if c.Ranking.HitsPerQuery <= 0 {
		return &ConfigError{Key: KeyHitsPerQuery, Reason: "must be positive"}
	}
	if c.Ranking.StopWordCount <= 0 {
		return &ConfigError{Key: KeyStopWordCount, Reason: "must be positive"}
	}
	if c.Ranking.StopWordField == "" {
		return &ConfigError{Key: KeyStopWordField, Reason: "must not be empty"}
	}
	if c.Ranking.AbstractBoost <= 0 {
		return &ConfigError{Key: KeyAbstractBoost, Reason: "must be positive"}
	}
	switch c.Index.Store {
	case StoreMemory, StoreSQLite:
	default:
		return &ConfigError{Key: KeyIndexStore, Reason: fmt.Sprintf("unknown store %q (want %q or %q)", c.Index.Store, StoreMemory, StoreSQLite)}
	}
	return nil
}

// RankingOptions converts the ranking section for the strategies
func (c *Config) RankingOptions() ranking.Options {
	return ranking.Options{
		StopWordCount: c.Ranking.StopWordCount,
		StopWordField: c.Ranking.StopWordField,
		AbstractBoost: c.Ranking.AbstractBoost,
	}
}

func stringValue(values map[string]string, key, def string) string {
	if v, ok := values[key]; ok && v != "" {
		return v
	}
	return def
}

func intValue(values map[string]string, key string, def int) (int, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Key: key, Reason: fmt.Sprintf("not an integer: %q", v)}
	}
	return n, nil
}

func floatValue(values map[string]string, key string, def float64) (float64, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ConfigError{Key: key, Reason: fmt.Sprintf("not a number: %q", v)}
	}
	return f, nil
}

func boolValue(values map[string]string, key string, def bool) (bool, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigError{Key: key, Reason: fmt.Sprintf("not a boolean: %q", v)}
	}
	return b, nil
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
