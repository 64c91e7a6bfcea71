package present

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/mithrel/ingestd/internal/journal"
	"github.com/mithrel/ingestd/internal/present/format"
)

type Mode int

const (
	ModePlain Mode = iota
	ModeJSON
	ModeNDJSON
)

type Options struct {
	Mode       Mode
	JSONIndent bool
	Headers    bool
}

// ParseMode parses "plain", "json" or "ndjson". Empty means plain.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "plain", "":
		return ModePlain, true
	case "json":
		return ModeJSON, true
	case "ndjson":
		return ModeNDJSON, true
	default:
		return ModePlain, false
	}
}

// RenderEntries renders journal entries according to options. Plain output
// to a terminal is colored and fitted to its width.
func RenderEntries(w io.Writer, entries []journal.Entry, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSONEntries(w, entries, opts.JSONIndent)
	case ModeNDJSON:
		return format.WriteNDJSONEntries(w, entries)
	default:
		po := format.PlainOptions{Headers: opts.Headers}
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			po.Color = true
			if width, _, err := term.GetSize(int(f.Fd())); err == nil {
				po.Width = width
			}
		}
		return format.WritePlainEntries(w, entries, po)
	}
}
