package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/ingestd/internal/ingest"
	"github.com/mithrel/ingestd/internal/journal"
)

func sampleEntries() []journal.Entry {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return []journal.Entry{
		{ID: 2, ConnID: "b", Kind: ingest.KindParseFailed, ReceivedAt: at, Size: 8, Error: "parse payload: invalid character 'o'"},
		{ID: 1, ConnID: "a", Kind: ingest.KindDecoded, ReceivedAt: at, Size: 7, Payload: "{\"a\":\"x\\ty\"}", Digest: "d"},
	}
}

func TestWritePlainEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlainEntries(&buf, sampleEntries(), PlainOptions{Headers: true}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id"))
	assert.Contains(t, lines[1], "parse_failed")
	assert.Contains(t, lines[1], "invalid character")
	assert.Contains(t, lines[2], `{"a":"x\ty"}`)
}

func TestWritePlainEntriesTruncates(t *testing.T) {
	e := sampleEntries()[1]
	e.Payload = `"` + strings.Repeat("x", 500) + `"`
	var buf bytes.Buffer
	require.NoError(t, WritePlainEntries(&buf, []journal.Entry{e}, PlainOptions{Width: 100}))
	assert.Contains(t, buf.String(), "…")
	assert.Less(t, len([]rune(strings.TrimSpace(buf.String()))), 120)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "…", truncate("abcd", 1))
	assert.Equal(t, "abcd", truncate("abcd", 0))
}

func TestWriteJSONEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONEntries(&buf, sampleEntries(), true))
	var got []journal.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 2)

	buf.Reset()
	require.NoError(t, WriteJSONEntries(&buf, nil, false))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteNDJSONEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNDJSONEntries(&buf, sampleEntries()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"kind":"parse_failed"`)
	assert.NotContains(t, lines[0], `"payload"`)
}
