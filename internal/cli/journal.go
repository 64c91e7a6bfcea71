package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mithrel/ingestd/internal/config"
	"github.com/mithrel/ingestd/internal/ingest"
	"github.com/mithrel/ingestd/internal/journal"
	"github.com/mithrel/ingestd/internal/present"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded outcomes",
	}
	cmd.AddCommand(newJournalListCmd())
	cmd.AddCommand(newJournalStatsCmd())
	return cmd
}

// openJournal opens the configured journal even when recording is disabled,
// so past entries stay readable.
func openJournal(cmd *cobra.Command) (*journal.Journal, error) {
	cfg, err := config.FromViper(getViper(cmd))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.JournalPath); err != nil {
		return nil, fmt.Errorf("no journal at %s: %w", cfg.JournalPath, err)
	}
	return journal.Open(cmd.Context(), cfg.JournalPath, nil)
}

func newJournalListCmd() *cobra.Command {
	var kind, out string
	var limit int
	var since time.Duration
	var noHeaders bool
	cmd := &cobra.Command{
		Use:         "list",
		Short:       "List recorded outcomes, newest first",
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q := journal.Query{Kind: ingest.Kind(strings.TrimSpace(kind)), Limit: limit}
			if q.Kind != "" && !q.Kind.Valid() {
				return fmt.Errorf("unknown kind %q", kind)
			}
			mode, ok := present.ParseMode(out)
			if !ok {
				return fmt.Errorf("unknown output format %q (plain|json|ndjson)", out)
			}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			entries, err := j.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			return present.RenderEntries(cmd.OutOrStdout(), entries, present.Options{
				Mode:       mode,
				JSONIndent: true,
				Headers:    !noHeaders,
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only show this outcome kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	cmd.Flags().DurationVar(&since, "since", 0, "only show entries newer than this, e.g. 1h")
	cmd.Flags().StringVarP(&out, "output", "o", "plain", "output format: plain|json|ndjson")
	cmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit the header row in plain output")
	cmd.Flags().String("journal", "", "journal database (overrides journal.path)")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(ingest.Kinds()))
		for _, k := range ingest.Kinds() {
			out = append(out, string(k))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newJournalStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "stats",
		Short:       "Count recorded outcomes by kind",
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			counts, err := j.Count(cmd.Context())
			if err != nil {
				return err
			}
			kinds := make([]string, 0, len(counts))
			for k := range counts {
				kinds = append(kinds, string(k))
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-14s %d\n", k, counts[ingest.Kind(k)])
			}
			return nil
		},
	}
	cmd.Flags().String("journal", "", "journal database (overrides journal.path)")
	return cmd
}
