package format

import (
	"encoding/json"
	"io"

	"github.com/mithrel/ingestd/internal/journal"
)

// WriteNDJSONEntries writes entries as newline-delimited JSON objects.
func WriteNDJSONEntries(w io.Writer, entries []journal.Entry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
