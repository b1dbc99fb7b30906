package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/postgres"
)

type fakeSource struct {
	name  string
	lines []string
	err   error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Lines(_ context.Context, fn func(source.Line) error) error {
	for i, text := range f.lines {
		if err := fn(source.Line{Text: text, Source: f.name, Offset: i}); err != nil {
			return err
		}
	}
	return f.err
}

func TestLoadSources_SkipsUnavailable(t *testing.T) {
	srcs := []source.Source{
		fakeSource{name: "a.txt", lines: []string{"the quick brown fox", "", "lazy dog"}},
		fakeSource{name: "broken.txt", lines: []string{"partial"}, err: &source.UnavailableError{
			Source: "broken.txt", Err: errors.New("no configured encoding could decode the content"),
		}},
		fakeSource{name: "b.txt", lines: []string{"quick thinking"}},
	}
	stored := map[string][]postgres.Row{}

	res, err := loadSources(context.Background(), srcs, func(_ context.Context, name string, rows []postgres.Row) error {
		stored[name] = rows
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, loadResult{lines: 4, loaded: 2, skipped: 1}, res)
	assert.NotContains(t, stored, "broken.txt")
	assert.Equal(t, postgres.Row{Source: "a.txt", Offset: 2, Text: "lazy dog"}, stored["a.txt"][2])
}

func TestLoadSources_OtherErrorsAbort(t *testing.T) {
	boom := errors.New("disk on fire")
	srcs := []source.Source{fakeSource{name: "a.txt", err: boom}}

	_, err := loadSources(context.Background(), srcs, func(context.Context, string, []postgres.Row) error {
		t.Error("nothing should be stored")
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reading a.txt")

	storeErr := errors.New("copy failed")
	_, err = loadSources(context.Background(), []source.Source{fakeSource{name: "b.txt"}},
		func(context.Context, string, []postgres.Row) error { return storeErr })
	assert.ErrorIs(t, err, storeErr)
}
