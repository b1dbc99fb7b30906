package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
)

type searchOptions struct {
	limit  int
	format string
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single query and print the best lines",
		Example: `  linesearch search quick brown fox
  linesearch search --data ./books "to be or not" -n 10
  linesearch search lazy dgo --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", opts.format)
			}
			ctx := cmd.Context()
			defer a.close()

			idx, err := a.buildIndex(ctx)
			if err != nil {
				return err
			}
			collector := a.collector(ctx)
			if collector != nil {
				defer collector.Close()
			}

			query := strings.Join(args, " ")
			start := time.Now()
			res, err := a.executor(idx).Search(ctx, query, opts.limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			track(collector, res, "cli", time.Since(start))

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if res.Warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", res.Warning)
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default search.defaultLimit)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func printResults(w io.Writer, res *executor.SearchResult) {
	if len(res.Results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, m := range res.Results {
		fmt.Fprintf(w, "%d. %s\n   %s:%d  score %.2f\n", i+1, m.Sentence, m.Source, m.LineOffset+1, m.Score)
	}
	if res.TotalHits > len(res.Results) {
		fmt.Fprintf(w, "(%d of %d matching lines)\n", len(res.Results), res.TotalHits)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func track(c *analytics.Collector, res *executor.SearchResult, surface string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Track(analytics.SearchEvent{
		Type:         analytics.Classify(res.TotalHits, false, len(res.UnknownWords)),
		Query:        res.Query,
		Words:        res.Words,
		UnknownWords: res.UnknownWords,
		TotalHits:    res.TotalHits,
		Returned:     len(res.Results),
		LatencyMs:    elapsed.Milliseconds(),
		Surface:      surface,
		Timestamp:    time.Now().UTC(),
	})
}
