package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParserWithHeader(t *testing.T, data string) *CSVParser {
	t.Helper()
	parser, err := NewCSVParser(strings.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, parser.ParseHeader())
	return parser
}

func TestNewCSVParser(t *testing.T) {
	t.Run("strips UTF-8 BOM", func(t *testing.T) {
		data := "\xEF\xBB\xBFkind,rate\ninstance,0.05\n"
		parser := newParserWithHeader(t, data)

		assert.Equal(t, []string{"kind", "rate"}, parser.Headers())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("rejects non-UTF8 input", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("kind\n\xFF\xFE\x00"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})
}

func TestParseHeader(t *testing.T) {
	t.Run("builds column index", func(t *testing.T) {
		parser := newParserWithHeader(t, "kind,key,rate\n")
		assert.Equal(t, []string{"kind", "key", "rate"}, parser.Headers())
	})

	t.Run("trims header whitespace", func(t *testing.T) {
		parser := newParserWithHeader(t, " kind , key ,rate\n")
		assert.Equal(t, []string{"kind", "key", "rate"}, parser.Headers())
	})
}

func TestValidateHeaders(t *testing.T) {
	parser := newParserWithHeader(t, "kind,rate\n")

	assert.Empty(t, parser.ValidateHeaders([]string{"kind", "rate"}))
	assert.Equal(t, []string{"key", "currency"}, parser.ValidateHeaders([]string{"kind", "key", "currency"}))
}

func TestReadRow(t *testing.T) {
	t.Run("maps fields to headers", func(t *testing.T) {
		parser := newParserWithHeader(t, "kind,key,rate\ninstance,m1.small,0.05\n")

		row, err := parser.ReadRow()
		require.NoError(t, err)

		assert.Equal(t, 2, row.LineNumber)
		assert.Equal(t, "instance", row.Get("kind"))
		assert.Equal(t, "m1.small", row.Get("key"))
		assert.Equal(t, "0.05", row.Get("rate"))
	})

	t.Run("short row yields empty columns", func(t *testing.T) {
		parser := newParserWithHeader(t, "kind,key,rate\nvolume\n")

		row, err := parser.ReadRow()
		require.NoError(t, err)

		assert.Equal(t, "volume", row.Get("kind"))
		assert.Equal(t, "", row.Get("key"))
		assert.Equal(t, "", row.Get("rate"))
	})

	t.Run("trims field whitespace", func(t *testing.T) {
		parser := newParserWithHeader(t, "kind,rate\n instance , 0.05 \n")

		row, err := parser.ReadRow()
		require.NoError(t, err)

		assert.Equal(t, "instance", row.Get("kind"))
		assert.Equal(t, "0.05", row.Get("rate"))
	})

	t.Run("EOF after last row", func(t *testing.T) {
		parser := newParserWithHeader(t, "kind\ninstance\n")

		_, err := parser.ReadRow()
		require.NoError(t, err)

		_, err = parser.ReadRow()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestRow(t *testing.T) {
	t.Run("GetOrDefault", func(t *testing.T) {
		row := &Row{Data: map[string]string{"currency": "", "kind": "instance"}}

		assert.Equal(t, "USD", row.GetOrDefault("currency", "USD"))
		assert.Equal(t, "instance", row.GetOrDefault("kind", "volume"))
		assert.Equal(t, "fallback", row.GetOrDefault("missing", "fallback"))
	})

	t.Run("IsEmpty", func(t *testing.T) {
		assert.True(t, (&Row{Data: map[string]string{"kind": "", "rate": ""}}).IsEmpty())
		assert.False(t, (&Row{Data: map[string]string{"kind": "instance"}}).IsEmpty())
	})
}

func TestReadAllRows(t *testing.T) {
	t.Run("skips blank rows", func(t *testing.T) {
		data := "kind,rate\ninstance,0.05\n,\nvolume,0.01\n"
		parser := newParserWithHeader(t, data)

		rows, err := parser.ReadAllRows()
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "instance", rows[0].Get("kind"))
		assert.Equal(t, "volume", rows[1].Get("kind"))
	})

	t.Run("line numbers count skipped rows", func(t *testing.T) {
		data := "kind,rate\ninstance,0.05\n,\nvolume,0.01\n"
		parser := newParserWithHeader(t, data)

		rows, err := parser.ReadAllRows()
		require.NoError(t, err)

		assert.Equal(t, 2, rows[0].LineNumber)
		assert.Equal(t, 4, rows[1].LineNumber)
	})

	t.Run("empty sheet yields no rows", func(t *testing.T) {
		parser := newParserWithHeader(t, "kind,rate\n")

		rows, err := parser.ReadAllRows()
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("quoted fields with embedded commas", func(t *testing.T) {
		data := "kind,key\ninstance,\"a,b\"\n"
		parser := newParserWithHeader(t, data)

		rows, err := parser.ReadAllRows()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a,b", rows[0].Get("key"))
	})
}
