package output

import (
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "table", want: FormatTable},
		{input: "", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "  yaml ", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type scopeRow struct {
	Scope   string `json:"scope" yaml:"scope"`
	Deleted int    `json:"deleted" yaml:"deleted"`
}

type scopeRows []scopeRow

func (s scopeRows) Headers() []string { return []string{"Scope", "Deleted"} }
func (s scopeRows) Rows() [][]string {
	var rows [][]string
	for _, r := range s {
		rows = append(rows, []string{r.Scope, strconv.Itoa(r.Deleted)})
	}
	return rows
}

func TestPrinterPrint(t *testing.T) {
	data := scopeRows{{Scope: "u1", Deleted: 3}, {Scope: "u2", Deleted: 0}}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable).Print(data))
		out := buf.String()
		assert.Contains(t, out, "SCOPE")
		assert.Contains(t, out, "DELETED")
		assert.Contains(t, out, "u1")
		assert.Contains(t, out, "3")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON).Print(data))
		var got []scopeRow
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, []scopeRow(data), got)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML).Print(data))
		var got []scopeRow
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, []scopeRow(data), got)
	})

	t.Run("table falls back to json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable).Print(map[string]int{"deleted": 2}))
		assert.JSONEq(t, `{"deleted": 2}`, buf.String())
	})
}

func TestPrinterStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	p.Success("done")
	p.Warning("careful")
	p.Error("failed")

	// A buffer is never a terminal, so no escape codes.
	assert.Equal(t, "done\ncareful\nfailed\n", buf.String())
	assert.False(t, p.Structured())
	assert.True(t, NewPrinter(&buf, FormatJSON).Structured())
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{
		{"Pass", "abc"},
		{"Deleted", "12"},
	}))
	out := buf.String()
	assert.Contains(t, out, "Pass")
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "Deleted")
	assert.Contains(t, out, "12")
}

func TestTableData(t *testing.T) {
	table := NewTableData("Key", "Outcome")
	assert.Empty(t, table.Rows())

	table.AddRow("imgs/u1/a.png", "deleted")
	assert.Equal(t, []string{"Key", "Outcome"}, table.Headers())
	assert.Equal(t, [][]string{{"imgs/u1/a.png", "deleted"}}, table.Rows())
}
