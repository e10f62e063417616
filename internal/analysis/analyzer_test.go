package analysis_test

import (
	"testing"

	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/ranker/internal/analysis"
)

type positioned struct {
	Term     string
	Position int
}

func analyze(t *testing.T, cfg analysis.Config, text string) bleveanalysis.TokenStream {
	t.Helper()
	m := mapping.NewIndexMapping()
	require.NoError(t, analysis.Register(m, "test", cfg))
	a, err := analysis.Lookup(m, "test")
	require.NoError(t, err)
	return a.Analyze([]byte(text))
}

func positions(stream bleveanalysis.TokenStream) []positioned {
	out := make([]positioned, len(stream))
	for i, tok := range stream {
		out[i] = positioned{Term: string(tok.Term), Position: tok.Position}
	}
	return out
}

func TestAnalyzer_LowercasesAndDropsStopWords(t *testing.T) {
	stream := analyze(t, analysis.Config{StopWords: analysis.EnglishStopWords()}, "Hello, World! This is a test.")

	assert.Equal(t, []positioned{
		{Term: "hello", Position: 1},
		{Term: "world", Position: 2},
		{Term: "test", Position: 6},
	}, positions(stream))
}

func TestAnalyzer_NoStopSetKeepsEverything(t *testing.T) {
	stream := analyze(t, analysis.Config{}, "The cat is here")
	assert.Equal(t, []string{"the", "cat", "is", "here"}, analysis.Terms(stream))
}

func TestAnalyzer_SplitsOnHyphens(t *testing.T) {
	stream := analyze(t, analysis.Config{StopWords: analysis.EnglishStopWords()}, "State-of-the-art retrieval")

	assert.Equal(t, []positioned{
		{Term: "state", Position: 1},
		{Term: "art", Position: 4},
		{Term: "retrieval", Position: 5},
	}, positions(stream))
}

func TestAnalyzer_KeepsDecimalNumbers(t *testing.T) {
	stream := analyze(t, analysis.Config{}, "pi 3.14")
	require.Len(t, stream, 2)
	assert.Equal(t, []string{"pi", "3.14"}, analysis.Terms(stream))
	assert.Equal(t, bleveanalysis.AlphaNumeric, stream[0].Type)
	assert.Equal(t, bleveanalysis.Numeric, stream[1].Type)
}

func TestAnalyzer_Stemming(t *testing.T) {
	stream := analyze(t, analysis.Config{StopWords: analysis.EnglishStopWords(), Stemming: true}, "Running CATS")
	assert.Equal(t, []string{"run", "cat"}, analysis.Terms(stream))
}

func TestAnalyzer_StemOfStopWordIsRemoved(t *testing.T) {
	// "cats" stems to a stop word; "the" is not a stop word here.
	stream := analyze(t, analysis.Config{StopWords: analysis.NewStopSet("cat"), Stemming: true}, "the cats dogs")
	assert.Equal(t, []string{"the", "dog"}, analysis.Terms(stream))
}

func TestAnalyzer_MaxTokenLength(t *testing.T) {
	stream := analyze(t, analysis.Config{MaxTokenLength: 3}, "abcd ef")
	assert.Equal(t, []positioned{{Term: "ef", Position: 2}}, positions(stream))
}

func TestRegister_DuplicateNameFails(t *testing.T) {
	m := mapping.NewIndexMapping()
	require.NoError(t, analysis.Register(m, "dup", analysis.Config{}))
	assert.Error(t, analysis.Register(m, "dup", analysis.Config{}))
}

func TestLookup_Unknown(t *testing.T) {
	_, err := analysis.Lookup(mapping.NewIndexMapping(), "missing")
	assert.Error(t, err)
}

func TestStopSet(t *testing.T) {
	base := analysis.EnglishStopWords()
	assert.Len(t, base, 33)
	assert.True(t, base.Contains("the"))
	assert.False(t, base.Contains("cat"))

	union := base.Union(analysis.NewStopSet("cat", "the"))
	assert.Len(t, union, 34)
	assert.Len(t, base, 33, "Union must not modify the receiver")

	assert.Equal(t, []string{"a", "b", "c"}, analysis.NewStopSet("c", "a", "b").Sorted())

	var empty analysis.StopSet
	assert.False(t, empty.Contains("a"))
}
