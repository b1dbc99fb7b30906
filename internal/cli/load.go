package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/postgres"
)

func newLoadCmd(a *app) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Copy the corpus files into the PostgreSQL lines table",
		Long: `Reads every corpus file the way the indexer does and stores its lines in
the postgres.table table, creating it if needed. Each file replaces its
previously stored lines, so load can be re-run after files change.

Set postgres.enabled to have search, repl and serve index the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			defer a.close()
			if table == "" {
				table = a.cfg.Postgres.Table
			}

			decoder, err := source.NewDecoder(a.cfg.Corpus.Encodings)
			if err != nil {
				return err
			}
			files, err := source.Discover(a.cfg.Corpus.Dir, a.cfg.Corpus.Extensions, decoder)
			if err != nil {
				return fmt.Errorf("discovering corpus files: %w", err)
			}

			db, err := postgres.New(ctx, a.cfg.Postgres)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, db.Close)
			if err := db.CreateLinesTable(ctx, table); err != nil {
				return err
			}

			srcs := make([]source.Source, len(files))
			for i, f := range files {
				srcs[i] = f
			}
			res, err := loadSources(ctx, srcs, func(ctx context.Context, name string, rows []postgres.Row) error {
				return db.ReplaceSource(ctx, table, name, rows)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d lines from %d files into %s", res.lines, res.loaded, table)
			if res.skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d skipped)", res.skipped)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Target table (default postgres.table)")

	return cmd
}

type loadResult struct {
	lines, loaded, skipped int
}

// loadSources reads each source whole and hands its rows to store. A source
// that cannot be opened or decoded is skipped, as the indexer does; any
// other error stops the load.
func loadSources(
	ctx context.Context,
	srcs []source.Source,
	store func(ctx context.Context, name string, rows []postgres.Row) error,
) (loadResult, error) {
	log := logger.WithComponent("load")
	var res loadResult
	for _, src := range srcs {
		var rows []postgres.Row
		err := src.Lines(ctx, func(l source.Line) error {
			rows = append(rows, postgres.Row{Source: l.Source, Offset: l.Offset, Text: l.Text})
			return nil
		})
		switch {
		case errors.Is(err, apperrors.ErrSourceUnavailable):
			log.Warn("skipping source", "source", src.Name(), "error", err)
			res.skipped++
			continue
		case err != nil:
			return res, fmt.Errorf("reading %s: %w", src.Name(), err)
		}
		if err := store(ctx, src.Name(), rows); err != nil {
			return res, err
		}
		res.lines += len(rows)
		res.loaded++
	}
	return res, nil
}
