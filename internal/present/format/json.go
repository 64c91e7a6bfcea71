package format

import (
	"encoding/json"
	"io"

	"github.com/mithrel/ingestd/internal/journal"
)

func WriteJSONEntries(w io.Writer, entries []journal.Entry, indent bool) error {
	if entries == nil {
		entries = []journal.Entry{}
	}
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(entries)
}
