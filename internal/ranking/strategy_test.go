package ranking_test

import (
	"context"
	"testing"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/ranker/internal/analysis"
	"github.com/knowledge-engine/ranker/internal/corpus"
	"github.com/knowledge-engine/ranker/internal/queryparser"
	"github.com/knowledge-engine/ranker/internal/ranking"
	"github.com/knowledge-engine/ranker/internal/search"
)

func openIndex(t *testing.T, docs ...corpus.Document) *search.Index {
	t.Helper()

	idx, err := search.NewIndex(search.Options{
		Fields: map[string]search.FieldKind{
			corpus.FieldID:       search.KeywordField,
			corpus.FieldTitle:    search.TextField,
			corpus.FieldAbstract: search.TextField,
			corpus.FieldText:     search.TextField,
		},
		Analyzer: analysis.Config{StopWords: analysis.EnglishStopWords()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	for _, d := range docs {
		_, err := idx.Add(search.NewDocument(
			search.NewIntField(corpus.FieldID, d.ID),
			search.NewTextField(corpus.FieldTitle, d.Title),
			search.NewTextField(corpus.FieldAbstract, d.Abstract),
			search.NewTextField(corpus.FieldText, d.Text),
		))
		require.NoError(t, err)
	}
	require.NoError(t, idx.Commit())
	return idx
}

func newAnalyzer(t *testing.T, stop analysis.StopSet) analysis.Analyzer {
	t.Helper()
	m := mapping.NewIndexMapping()
	require.NoError(t, analysis.Register(m, "query", analysis.Config{StopWords: stop}))
	a, err := analysis.Lookup(m, "query")
	require.NoError(t, err)
	return a
}

func mustDoc(t *testing.T, id int, title, abstract string) corpus.Document {
	t.Helper()
	d, err := corpus.NewDocument(id, title, abstract)
	require.NoError(t, err)
	return d
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ranking.ParseAlgorithm("basic")
	require.NoError(t, err)
	assert.Equal(t, ranking.Basic, a)

	a, err = ranking.ParseAlgorithm(" improved ")
	require.NoError(t, err)
	assert.Equal(t, ranking.Improved, a)

	_, err = ranking.ParseAlgorithm("bm25")
	assert.Error(t, err)
}

func TestNew_ValidatesOptions(t *testing.T) {
	opts := ranking.DefaultOptions()
	assert.Equal(t, 20, opts.StopWordCount)
	assert.Equal(t, corpus.FieldAbstract, opts.StopWordField)
	assert.Equal(t, 12.0, opts.AbstractBoost)

	for _, alg := range []ranking.Algorithm{ranking.Basic, ranking.Improved} {
		s, err := ranking.New(alg, opts)
		require.NoError(t, err)
		assert.Equal(t, alg, s.Name())
	}

	_, err := ranking.New("other", opts)
	assert.Error(t, err)

	bad := opts
	bad.StopWordCount = 0
	_, err = ranking.New(ranking.Basic, bad)
	assert.Error(t, err)

	bad = opts
	bad.AbstractBoost = 0
	_, err = ranking.New(ranking.Improved, bad)
	assert.Error(t, err)
}

func TestBasic_BuildQueryTargetsTextField(t *testing.T) {
	s, err := ranking.New(ranking.Basic, ranking.DefaultOptions())
	require.NoError(t, err)

	q, err := s.BuildQuery(newAnalyzer(t, analysis.EnglishStopWords()), "The Cats")
	require.NoError(t, err)
	assert.Equal(t, "text:cats", search.Describe(q))
}

func TestImproved_BuildQueryBoostsAbstract(t *testing.T) {
	s, err := ranking.New(ranking.Improved, ranking.DefaultOptions())
	require.NoError(t, err)
	a := newAnalyzer(t, analysis.EnglishStopWords())

	q, err := s.BuildQuery(a, "cats")
	require.NoError(t, err)
	assert.Equal(t, "title:cats abstract:cats^12", search.Describe(q))

	bq, ok := q.(*query.BooleanQuery)
	require.True(t, ok)
	assert.Nil(t, bq.Must)
	assert.Nil(t, bq.MustNot)

	// The strategy weight multiplies any boost written in the query.
	q, err = s.BuildQuery(a, "cats^3 +dogs")
	require.NoError(t, err)
	assert.Equal(t, "(+title:dogs title:cats^3) (+abstract:dogs^12 abstract:cats^36)", search.Describe(q))
}

func TestImproved_BuildQueryPropagatesParseErrors(t *testing.T) {
	s, err := ranking.New(ranking.Improved, ranking.DefaultOptions())
	require.NoError(t, err)

	_, err = s.BuildQuery(newAnalyzer(t, nil), `"cats`)
	var pe *queryparser.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestBasic_SelectStopWordsUsesAbstractFrequencies(t *testing.T) {
	r := openIndex(t,
		mustDoc(t, 1, "Zebra zebra zebra", "retrieval model retrieval"),
		mustDoc(t, 2, "Other", "model evaluation retrieval"),
	)

	opts := ranking.DefaultOptions()
	opts.StopWordCount = 2
	s, err := ranking.New(ranking.Basic, opts)
	require.NoError(t, err)

	stop, err := s.SelectStopWords(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "retrieval"}, stop.Sorted())
	assert.False(t, stop.Contains("zebra"), "title terms are not counted")
}

func TestImproved_SelectStopWordsIsEmpty(t *testing.T) {
	r := openIndex(t, mustDoc(t, 1, "Cats", "cats cats cats"))

	s, err := ranking.New(ranking.Improved, ranking.DefaultOptions())
	require.NoError(t, err)

	stop, err := s.SelectStopWords(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, stop)
}

func TestDeriveStopWords_FewerTermsThanRequested(t *testing.T) {
	r := openIndex(t, mustDoc(t, 1, "Cats", "purr"))

	stop, err := ranking.DeriveStopWords(context.Background(), r, corpus.FieldAbstract, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"purr"}, stop.Sorted())
}
