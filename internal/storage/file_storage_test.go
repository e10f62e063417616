package storage_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/ranker/internal/storage"
)

const sample = ".I 1\n.W\nCats. Purring animals.\n"

func TestFileStorage_ReadPlainText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.txt"), []byte(sample), 0644))

	fs, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	text, err := fs.ReadText("docs.txt")
	require.NoError(t, err)
	assert.Equal(t, sample, text)

	text, err = fs.ReadText(filepath.Join(dir, "docs.txt"))
	require.NoError(t, err)
	assert.Equal(t, sample, text, "absolute paths ignore the base directory")
}

func TestFileStorage_ReadCompressed(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.txt.gz"), gz.Bytes(), 0644))

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll([]byte(sample), nil)
	require.NoError(t, enc.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.txt.zst"), zst, 0644))

	fs, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	for _, name := range []string{"docs.txt.gz", "docs.txt.zst"} {
		text, err := fs.ReadText(name)
		require.NoError(t, err, name)
		assert.Equal(t, sample, text, name)
	}
}

func TestFileStorage_ReadMissingFile(t *testing.T) {
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = fs.ReadText("nope.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStorage_SaveLinesReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	require.NoError(t, fs.SaveLines("out/results.txt", []string{"old"}))
	require.NoError(t, fs.SaveLines("out/results.txt", []string{"q1,doc1,1", "q2,docdummy,1"}))

	data, err := os.ReadFile(filepath.Join(dir, "out", "results.txt"))
	require.NoError(t, err)
	assert.Equal(t, "q1,doc1,1\nq2,docdummy,1\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must be cleaned up")
	assert.Equal(t, "results.txt", entries[0].Name())
}

func TestFileStorage_SaveJSON(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	require.NoError(t, fs.SaveJSON("report.json", map[string]int{"queries": 3}))

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["queries"])

	assert.Error(t, fs.SaveJSON("bad.json", func() {}))
	_, err = os.Stat(filepath.Join(dir, "bad.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDigest(t *testing.T) {
	lines := []string{"q1,doc1,1", "q1,doc2,2"}

	assert.Len(t, storage.Digest(""), 64)
	assert.Equal(t, storage.Digest(strings.Join(lines, "\n")+"\n"), storage.DigestLines(lines))
	assert.NotEqual(t, storage.Digest("a"), storage.Digest("b"))
}
