package corpus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/ranker/internal/corpus"
)

func TestStripMarkup(t *testing.T) {
	raw := ".I 1\n.W\n<b>Cats</b>. Cats &amp; dogs<script>track()</script><br/>bark\n" +
		".I 2\n.W\n<!-- draft -->Birds.<style>p{}</style> Sing 5 &lt; 6\n"

	stripped, err := corpus.StripMarkup(raw)
	require.NoError(t, err)
	assert.NotContains(t, stripped, "track")
	assert.NotContains(t, stripped, "draft")

	docs, err := corpus.ParseDocuments(stripped)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Cats", docs[0].Title)
	assert.Equal(t, "Cats dogs bark", docs[0].Abstract)
	assert.Equal(t, "Birds", docs[1].Title)
	assert.Equal(t, "Sing 5 6", docs[1].Abstract)
}

func TestStripMarkup_PlainTextUnchanged(t *testing.T) {
	raw := ".I 1\n.W\nCats. Cats are mammals\n"
	stripped, err := corpus.StripMarkup(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, stripped)
}
