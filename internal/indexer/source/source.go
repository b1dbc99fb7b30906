// Package source provides the line producers the indexer consumes: text
// files discovered under a corpus directory and, optionally, rows of a
// PostgreSQL table. A source that cannot be read reports an
// *UnavailableError so the indexer can skip it without aborting the build.
package source

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

// Line is one raw line of text and where it came from. Offset is zero-based
// and counts every physical line of its source, blank ones included.
type Line struct {
	Text   string
	Source string
	Offset int
}

// Source produces lines in a fixed order. Lines calls fn for each line and
// stops at the first error fn returns.
type Source interface {
	Name() string
	Lines(ctx context.Context, fn func(Line) error) error
}

// UnavailableError reports a source that could not be opened or decoded.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is matches errors.ErrSourceUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == apperrors.ErrSourceUnavailable
}

func unavailable(name string, err error) error {
	return &UnavailableError{Source: name, Err: err}
}
