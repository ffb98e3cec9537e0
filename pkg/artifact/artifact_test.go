package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/dbgfidelity/pkg/trace"
)

func sampleTraces() *Traces {
	tr := NewTraces("gcc")
	tr.Inputs = 2
	std := tr.Ensure("2", PassStandard)
	std.TextHash = "aa"
	std.Variables.Lines = trace.Variables{"/src/a.c": {
		5: {Function: "f", Available: []string{"a"}, OptimizedOut: []string{}},
	}}
	std.Crashes = []string{"crash-1"}

	inline := tr.Ensure("2", "-inline")
	inline.TextHash = "aa"
	inline.Variables.Standard = true
	return tr
}

func TestTracesRoundTrip(t *testing.T) {
	path := TracesPath(t.TempDir(), "fuzz_one")
	require.NoError(t, Save(path, sampleTraces()))

	got, err := LoadTraces(path)
	require.NoError(t, err)

	c, ok := got.Config("2", "-inline")
	require.True(t, ok)
	assert.True(t, c.Variables.Standard)
	assert.False(t, c.Traced())

	c, ok = got.Config("2", PassStandard)
	require.True(t, ok)
	assert.True(t, c.Traced())
	lr := c.Variables.Lines["/src/a.c"][5]
	require.NotNil(t, lr)
	assert.Equal(t, []string{"a"}, lr.Available)
	assert.Equal(t, []string{"crash-1"}, c.Crashes)
	assert.Equal(t, []string{PassStandard, "-inline"}, got.SortedPasses("2"))
}

func TestStandardMarkerEncoding(t *testing.T) {
	data, err := json.Marshal(Configuration{Variables: Variables{Standard: true}, TextHash: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"variables":"standard",".text_hash":"x"}`, string(data))

	data, err = json.Marshal(Configuration{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"variables":{},".text_hash":""}`, string(data))

	var v Variables
	assert.Error(t, json.Unmarshal([]byte(`"other"`), &v))
}

func TestValidateTraces(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "minimal", input: `{"inputs":0,"traces":{}}`},
		{name: "standard marker", input: `{"inputs":1,"traces":{"1":{"-licm":{"variables":"standard",".text_hash":"a"}}}}`},
		{name: "missing traces", input: `{"inputs":1}`, wantErr: true},
		{name: "bad marker", input: `{"inputs":1,"traces":{"1":{"-licm":{"variables":"reused"}}}}`, wantErr: true},
		{name: "non-numeric line", input: `{"inputs":1,"traces":{"1":{"-a":{"variables":{"/a.c":{"x":{"available":[],"optimized_out":[]}}}}}}}`, wantErr: true},
		{name: "not json", input: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTraces([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadTracesRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces-x.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"traces":[]}`), 0o644))
	_, err := LoadTraces(path)
	assert.Error(t, err)
}

func TestPolishedRoundTrip(t *testing.T) {
	p := NewPolished()
	p.Vars["1"] = &Level[*VarBuckets]{
		Total: []string{"/a.c:3:x"},
		Passes: map[string]*VarBuckets{
			PassStandard: {Total: []string{"/a.c:3:x"}, NotLive: []string{"/a.c:3:y"}},
			"-licm":      {Total: []string{}, NotLive: []string{}, Reused: true},
		},
	}
	p.Lines["1"] = &Level[*LineBuckets]{
		Total:  []string{"/a.c:3"},
		Passes: map[string]*LineBuckets{PassStandard: {Total: []string{"/a.c:3"}}},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"vars": {"1": {
			"total": ["/a.c:3:x"],
			"-standard": {"total": ["/a.c:3:x"], "notlive": ["/a.c:3:y"]},
			"-licm": {"total": [], "notlive": [], "reused": true}
		}},
		"lines": {"1": {
			"total": ["/a.c:3"],
			"-standard": {"total": ["/a.c:3"]}
		}}
	}`, string(data))

	path := PolishedPath(t.TempDir(), "fz")
	require.NoError(t, Save(path, p))
	got, err := LoadPolished(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "/a.c:3:x", VarKey("/a.c", 3, "x"))
	assert.Equal(t, "/a.c:3", LineKey("/a.c", 3))

	line, v, ok := SplitVarKey("/a.c:3:x")
	require.True(t, ok)
	assert.Equal(t, "/a.c:3", line)
	assert.Equal(t, "x", v)

	_, _, ok = SplitVarKey("nocolon")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, SortedSet(map[string]struct{}{"b": {}, "a": {}}))
}
