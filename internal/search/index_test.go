package search_test

import (
	"context"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/ranker/internal/analysis"
	"github.com/knowledge-engine/ranker/internal/search"
)

var schema = map[string]search.FieldKind{
	"id":   search.KeywordField,
	"text": search.TextField,
}

func newIndex(t *testing.T, store string, texts ...string) *search.Index {
	t.Helper()

	idx, err := search.NewIndex(search.Options{
		Store:  store,
		Fields: schema,
		Logger: logrus.NewEntry(logrus.New()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	for i, text := range texts {
		ord, err := idx.Add(search.NewDocument(
			search.NewIntField("id", i+1),
			search.NewTextField("text", text),
		))
		require.NoError(t, err)
		assert.Equal(t, i, ord)
	}
	require.NoError(t, idx.Commit())
	return idx
}

func termQuery(field, term string) *query.TermQuery {
	q := query.NewTermQuery(term)
	q.SetField(field)
	return q
}

func TestIndex_SearchReturnsStoredFields(t *testing.T) {
	idx := newIndex(t, search.StoreMemory, "Cats purr", "Dogs bark", "Cats chase the dogs")
	assert.Equal(t, 3, idx.NumDocs())

	top, err := idx.Search(context.Background(), termQuery("text", "cats"), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, top.TotalHits)
	require.Len(t, top.Hits, 2)

	id, err := top.Hits[0].Stored.Int("id")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, "Cats purr", top.Hits[0].Stored["text"])

	id, err = top.Hits[1].Stored.Int("id")
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Greater(t, top.Hits[0].Score, top.Hits[1].Score, "shorter field scores higher")
}

func TestIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx := newIndex(t, search.StoreMemory, "cats bark", "cats purr", "dogs", "cats hiss")

	top, err := idx.Search(context.Background(), termQuery("text", "cats"), 10)
	require.NoError(t, err)
	require.Len(t, top.Hits, 3)

	var ids []int
	for _, hit := range top.Hits {
		id, err := hit.Stored.Int("id")
		require.NoError(t, err)
		ids = append(ids, id)
		assert.Equal(t, top.Hits[0].Score, hit.Score)
	}
	assert.Equal(t, []int{1, 2, 4}, ids)
}

func TestIndex_HitLimit(t *testing.T) {
	idx := newIndex(t, search.StoreMemory, "cats", "cats", "cats")

	top, err := idx.Search(context.Background(), termQuery("text", "cats"), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, top.TotalHits)
	assert.Len(t, top.Hits, 2)

	_, err = idx.Search(context.Background(), termQuery("text", "cats"), 0)
	assert.Error(t, err)
}

func TestIndex_SQLiteMatchesMemory(t *testing.T) {
	texts := []string{"new york city", "york new", "the city that never sleeps city"}
	mem := newIndex(t, search.StoreMemory, texts...)
	sql := newIndex(t, search.StoreSQLite, texts...)

	for _, term := range []string{"city", "new", "york", "sleeps", "absent"} {
		q := termQuery("text", term)
		want, err := mem.Search(context.Background(), q, 10)
		require.NoError(t, err)
		got, err := sql.Search(context.Background(), q, 10)
		require.NoError(t, err)

		require.Equal(t, len(want.Hits), len(got.Hits), term)
		for i := range want.Hits {
			assert.Equal(t, want.Hits[i].ID, got.Hits[i].ID, term)
			assert.InDelta(t, want.Hits[i].Score, got.Hits[i].Score, 1e-9, term)
		}
	}
}

func TestIndex_Lifecycle(t *testing.T) {
	idx, err := search.NewIndex(search.Options{Fields: schema})
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), termQuery("text", "cats"), 1)
	assert.ErrorIs(t, err, search.ErrNotCommitted)

	_, err = idx.Add(search.NewDocument(search.NewTextField("text", "a"), search.NewTextField("text", "b")))
	assert.Error(t, err, "a field may appear once")
	_, err = idx.Add(search.NewDocument(search.NewTextField("id", "x")))
	assert.Error(t, err, "field kind must match the schema")
	_, err = idx.Add(search.NewDocument(search.NewTextField("body", "x")))
	assert.Error(t, err, "field must be in the schema")

	require.NoError(t, idx.Commit())
	assert.ErrorIs(t, idx.Commit(), search.ErrAlreadyCommitted)
	_, err = idx.Add(search.NewDocument(search.NewTextField("text", "late")))
	assert.ErrorIs(t, err, search.ErrAlreadyCommitted)
	assert.Equal(t, 0, idx.NumDocs())

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	_, err = idx.Search(context.Background(), termQuery("text", "cats"), 1)
	assert.ErrorIs(t, err, search.ErrIndexClosed)
}

func TestNewIndex_RejectsBadOptions(t *testing.T) {
	_, err := search.NewIndex(search.Options{Store: "redis", Fields: schema})
	assert.Error(t, err)

	_, err = search.NewIndex(search.Options{})
	assert.Error(t, err)
}

func TestIndex_RegisterAnalyzer(t *testing.T) {
	idx := newIndex(t, search.StoreMemory, "cats")

	require.NoError(t, idx.RegisterAnalyzer("query", analysis.Config{StopWords: analysis.NewStopSet("cats")}))
	a, err := idx.Analyzer("query")
	require.NoError(t, err)
	assert.Equal(t, []string{"dogs"}, analysis.Terms(a.Analyze([]byte("Cats dogs"))))

	assert.Error(t, idx.RegisterAnalyzer("query", analysis.Config{}), "names are unique")
	_, err = idx.Analyzer("missing")
	assert.Error(t, err)
}

func TestHighFreqTerms(t *testing.T) {
	idx := newIndex(t, search.StoreMemory, "b a a", "b c", "b")

	stats, err := search.HighFreqTerms(context.Background(), idx, "text", 2)
	require.NoError(t, err)
	assert.Equal(t, []search.TermStats{
		{Field: "text", Term: "b", DocFreq: 3, TotalTermFreq: 3},
		{Field: "text", Term: "a", DocFreq: 1, TotalTermFreq: 2},
	}, stats)

	_, err = search.HighFreqTerms(context.Background(), idx, "text", 0)
	assert.Error(t, err)

	stats, err = search.HighFreqTerms(context.Background(), idx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestHighFreqTerms_TiesAreLexicographic(t *testing.T) {
	idx := newIndex(t, search.StoreSQLite, "zeta alpha", "mid")

	stats, err := search.HighFreqTerms(context.Background(), idx, "text", 10)
	require.NoError(t, err)
	var terms []string
	for _, st := range stats {
		terms = append(terms, st.Term)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, terms)
}
