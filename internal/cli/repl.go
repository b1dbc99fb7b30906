package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const prompt = "Google: "

func newReplCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Index the corpus once, then answer queries read from stdin",
		Long: `Builds the index and reads one query per line until end of input or
"exit"/"quit". A prompt is shown when stdin is a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			exec := a.executor(idx)

			in := cmd.InOrStdin()
			out := cmd.OutOrStdout()
			interactive := isTerminal(in)
			fmt.Fprintf(cmd.ErrOrStderr(), "indexed %d lines (%d words) from %d sources\n",
				idx.Stats.Lines, idx.Stats.Words, idx.Stats.Sources-idx.Stats.SourcesSkipped)

			scanner := bufio.NewScanner(in)
			for {
				if interactive {
					fmt.Fprint(out, prompt)
				}
				if !scanner.Scan() {
					if interactive {
						fmt.Fprintln(out)
					}
					return scanner.Err()
				}
				query := strings.TrimSpace(scanner.Text())
				switch query {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				start := time.Now()
				res, err := exec.Search(ctx, query, limit)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				track(collector, res, "repl", time.Since(start))

				if res.Warning != "" {
					fmt.Fprintln(out, "too many unknown words used.")
				}
				printResults(out, res)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results per query (default search.defaultLimit)")

	return cmd
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
