// Package postgres manages the optional PostgreSQL corpus table: connecting
// with retry, creating the table and bulk-loading lines with COPY.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

// Row is one stored corpus line.
type Row struct {
	Source string
	Offset int
	Text   string
}

type Client struct {
	DB *sql.DB
}

// New opens a pool and waits, with backoff, until the server answers a ping.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ping := func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pctx)
	}
	if err := resilience.Retry(ctx, "postgres-ping", resilience.Backoff{}, ping); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// QuoteTable quotes each dot-separated part of a possibly schema-qualified
// table name.
func QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// CreateLinesTable creates table with the layout the line source reads, if it
// does not exist yet.
func (c *Client) CreateLinesTable(ctx context.Context, table string) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	source      text    NOT NULL,
	line_offset integer NOT NULL,
	text        text    NOT NULL,
	PRIMARY KEY (source, line_offset)
)`, QuoteTable(table))
	if _, err := c.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// ReplaceSource swaps every stored line of source for rows in one
// transaction, so readers never see a half-loaded file.
func (c *Client) ReplaceSource(ctx context.Context, table, source string, rows []Row) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		del := fmt.Sprintf("DELETE FROM %s WHERE source = $1", QuoteTable(table))
		if _, err := tx.ExecContext(ctx, del, source); err != nil {
			return fmt.Errorf("clearing %s: %w", source, err)
		}
		return copyRows(ctx, tx, table, rows)
	})
}

func copyRows(ctx context.Context, tx *sql.Tx, table string, rows []Row) error {
	schema, name := "", table
	if i := strings.LastIndex(table, "."); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}
	var copyIn string
	if schema != "" {
		copyIn = pq.CopyInSchema(schema, name, "source", "line_offset", "text")
	} else {
		copyIn = pq.CopyIn(name, "source", "line_offset", "text")
	}
	stmt, err := tx.PrepareContext(ctx, copyIn)
	if err != nil {
		return fmt.Errorf("preparing copy into %s: %w", table, err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Source, r.Offset, r.Text); err != nil {
			stmt.Close()
			return fmt.Errorf("copying %s:%d: %w", r.Source, r.Offset, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flushing copy into %s: %w", table, err)
	}
	return stmt.Close()
}

func (c *Client) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
