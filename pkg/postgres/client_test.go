package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"corpus_lines"`, QuoteTable("corpus_lines"))
	assert.Equal(t, `"public"."corpus_lines"`, QuoteTable("public.corpus_lines"))
	assert.Equal(t, `"weird""name"`, QuoteTable(`weird"name`))
}
