package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/postgres"
)

// PostgresSource streams corpus lines stored in a table with the columns
// (source text, line_offset int, text text), as created by
// postgres.Client.CreateLinesTable.
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (p *PostgresSource) Name() string {
	return "postgres:" + p.table
}

func (p *PostgresSource) Lines(ctx context.Context, fn func(Line) error) error {
	rows, err := p.db.QueryContext(ctx, p.query())
	if err != nil {
		return unavailable(p.Name(), fmt.Errorf("querying corpus table: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.Source, &line.Offset, &line.Text); err != nil {
			return unavailable(p.Name(), fmt.Errorf("scanning corpus row: %w", err))
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return unavailable(p.Name(), fmt.Errorf("iterating corpus rows: %w", err))
	}
	return nil
}

func (p *PostgresSource) query() string {
	return fmt.Sprintf(
		"SELECT source, line_offset, text FROM %s ORDER BY source, line_offset",
		postgres.QuoteTable(p.table),
	)
}
