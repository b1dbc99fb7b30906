package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Build the index and print its statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()

			idx, err := a.buildIndex(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), idx.Stats)
			}

			s := idx.Stats
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Corpus:\t%s\n", a.cfg.Corpus.Dir)
			fmt.Fprintf(tw, "Sources:\t%d\n", s.Sources)
			fmt.Fprintf(tw, "Skipped:\t%d\n", s.SourcesSkipped)
			fmt.Fprintf(tw, "Lines:\t%d\n", s.Lines)
			fmt.Fprintf(tw, "Words:\t%d\n", s.Words)
			fmt.Fprintf(tw, "Occurrences:\t%d\n", s.Occurrences)
			fmt.Fprintf(tw, "Build time:\t%s\n", s.Duration.Round(time.Microsecond))
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output statistics as JSON")

	return cmd
}
