package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"toon", FormatTOON},
		{"yml", FormatYAML},
		{"yaml", FormatYAML},
		{"text", FormatText},
		{"", FormatText},
		{"bogus", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFormat(tt.in))
		})
	}
}

func metricsTable() *Table {
	return NewTable("Line coverage",
		[]string{"Config", "Value"},
		[][]string{{"2-standard", "0.50"}, {"2-licm", "0.75"}},
		nil, nil)
}

func TestTableText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(metricsTable()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Line coverage\n=============\n"))
	assert.Contains(t, out, "2-licm")
	assert.Contains(t, out, "0.75")
}

func TestTableMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatMarkdown, &buf, false).Output(metricsTable()))
	assert.Equal(t, "## Line coverage\n\n| Config | Value |\n| --- | --- |\n| 2-standard | 0.50 |\n| 2-licm | 0.75 |\n\n", buf.String())
}

func TestTableData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatJSON, &buf, false).Output(metricsTable()))

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, []map[string]string{
		{"Config": "2-standard", "Value": "0.50"},
		{"Config": "2-licm", "Value": "0.75"},
	}, rows)

	buf.Reset()
	wrapped := NewTable("t", []string{"a"}, nil, nil, map[string]float64{"2-licm": 0.75})
	require.NoError(t, NewWriterFormatter(FormatYAML, &buf, false).Output(wrapped))
	var got map[string]float64
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 0.75, got["2-licm"])
}

func TestRawData(t *testing.T) {
	data := map[string]any{"inputs": 3}

	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatTOON, &buf, false).Output(data))
	assert.Contains(t, buf.String(), "inputs")

	buf.Reset()
	require.NoError(t, NewWriterFormatter(FormatMarkdown, &buf, false).Output(data))
	assert.True(t, strings.HasPrefix(buf.String(), "```json\n"))

	buf.Reset()
	require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(data))
	assert.JSONEq(t, `{"inputs":3}`, buf.String())
}

func TestReport(t *testing.T) {
	r := &Report{Title: "Metrics", Sections: []Renderable{metricsTable(), metricsTable()}}

	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatMarkdown, &buf, false).Output(r))
	assert.True(t, strings.HasPrefix(buf.String(), "# Metrics\n\n## Line coverage"))
	assert.Equal(t, 2, strings.Count(buf.String(), "## Line coverage"))

	data, ok := r.RenderData().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Metrics", data["title"])
}

func TestFileOutputDisablesColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, true)
	require.NoError(t, err)
	assert.False(t, f.Colored())
	require.NoError(t, f.Output(map[string]int{"a": 1}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestMessagesWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatText, &buf, false)
	f.Warning("source %s missing", "a.c")
	f.Error("boom")
	f.Success("done")
	f.Info("%d sessions", 3)
	assert.Equal(t, "WARNING: source a.c missing\nERROR: boom\ndone\n3 sessions\n", buf.String())
}

func TestMessagesWithColor(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatText, &buf, true)
	f.Success("done")
	f.Warning("careful")

	out := buf.String()
	assert.Contains(t, out, "\x1b[32mdone")
	assert.Contains(t, out, "\x1b[33mcareful")
	assert.NotContains(t, out, "WARNING:")
}

func TestRatioColor(t *testing.T) {
	for _, r := range []float64{0.1, 0.6, 0.9} {
		assert.Contains(t, RatioColor(r, "x"), "x")
	}
}
