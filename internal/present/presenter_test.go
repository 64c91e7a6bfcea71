package present

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/ingestd/internal/ingest"
	"github.com/mithrel/ingestd/internal/journal"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModePlain, "plain": ModePlain, "json": ModeJSON, "ndjson": ModeNDJSON} {
		got, ok := ParseMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMode("tui")
	assert.False(t, ok)
}

func TestRenderEntriesToBufferIsUncolored(t *testing.T) {
	entries := []journal.Entry{{ID: 1, Kind: ingest.KindDecoded, ReceivedAt: time.Now(), Payload: `{"a":1}`}}
	var buf bytes.Buffer
	require.NoError(t, RenderEntries(&buf, entries, Options{Mode: ModePlain, Headers: true}))
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), `{"a":1}`)

	buf.Reset()
	require.NoError(t, RenderEntries(&buf, entries, Options{Mode: ModeNDJSON}))
	assert.Contains(t, buf.String(), `"kind":"decoded"`)
}
