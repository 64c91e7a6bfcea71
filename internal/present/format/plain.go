package format

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mithrel/ingestd/internal/ingest"
	"github.com/mithrel/ingestd/internal/journal"
)

// TSV columns: id, received, kind, size, detail
var headerLine = "id\treceived\tkind\tsize\tdetail\n"

// PlainOptions tunes the tabular output.
type PlainOptions struct {
	Headers bool
	// Color styles the kind column. Only set it when writing to a terminal.
	Color bool
	// Width truncates the detail column so rows fit; 0 disables truncation.
	Width int
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func esc(field string) string {
	field = strings.ReplaceAll(field, "\t", "\\t")
	field = strings.ReplaceAll(field, "\n", "\\n")
	return field
}

// truncate cuts s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func detail(e journal.Entry) string {
	if e.Kind == ingest.KindDecoded {
		return e.Payload
	}
	return e.Error
}

func WritePlainEntries(w io.Writer, entries []journal.Entry, opts PlainOptions) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if opts.Headers {
		_, _ = io.WriteString(tw, headerLine)
	}
	// id, timestamp, kind and size take roughly this many columns.
	const fixed = 60
	for _, e := range entries {
		kind := string(e.Kind)
		if opts.Color {
			// Pad before styling; tabwriter counts escape codes as width.
			kind = fmt.Sprintf("%-13s", kind)
			if e.Kind == ingest.KindDecoded {
				kind = okStyle.Render(kind)
			} else {
				kind = failStyle.Render(kind)
			}
		}
		d := esc(detail(e))
		if opts.Width > 0 {
			d = truncate(d, max(opts.Width-fixed, 16))
		}
		line := fmt.Sprintf("%d\t%s\t%s\t%d\t%s\n",
			e.ID, e.ReceivedAt.Local().Format(time.DateTime), kind, e.Size, d)
		_, _ = io.WriteString(tw, line)
	}
	return tw.Flush()
}
