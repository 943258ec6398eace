package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

const traceYAML = `
variables:
  - path: tb.cpu.state
    width: 2
    enum: {"00": IDLE, "01": RUN}
    changes:
      - {t: 0, v: "00"}
      - {t: 10, v: "01"}
      - {t: 20, v: "x"}
  - path: tb.cpu.count
    width: 8
    signed: true
    var_type: integer
    changes:
      - {t: 5, uint: 200}
  - path: tb.msg
    encoding: string
    changes:
      - {t: 0, text: hello}
  - path: tb.pkt
    kind: struct
    width: 5
    fields:
      - {name: valid, width: 1}
      - {name: data, width: 4, index: {msb: 1, lsb: -2}}
    changes:
      - {t: 0, v: "10101"}
`

func loadTestTrace(t *testing.T) *Trace {
	t.Helper()
	tr, err := LoadYAML(strings.NewReader(traceYAML))
	require.NoError(t, err)
	return tr
}

func TestLoadYAMLMeta(t *testing.T) {
	tr := loadTestTrace(t)
	assert.Equal(t, []string{"tb.cpu.state", "tb.cpu.count", "tb.msg", "tb.pkt"}, tr.Variables())

	state, ok := tr.Meta("tb.cpu.state")
	require.True(t, ok)
	assert.Equal(t, value.Ref{Scope: "tb.cpu", Name: "state"}, state.Ref)
	assert.Equal(t, value.KindEnum, state.Kind)
	assert.Equal(t, "RUN", state.EnumMap["01"])

	count, _ := tr.Meta("tb.cpu.count")
	assert.True(t, count.Signed)
	assert.Equal(t, "integer", count.VarType)

	msg, _ := tr.Meta("tb.msg")
	assert.True(t, msg.IsString())

	pkt, _ := tr.Meta("tb.pkt")
	assert.Equal(t, value.KindStruct, pkt.Kind)
	assert.True(t, pkt.Decomposable())
	data, ok := pkt.Field("data")
	require.True(t, ok)
	assert.Equal(t, &value.Index{MSB: 1, LSB: -2}, data.Index)

	_, ok = tr.Meta("tb.missing")
	assert.False(t, ok)
}

func TestSample(t *testing.T) {
	tr := loadTestTrace(t)

	tests := []struct {
		variable string
		at       uint64
		want     string
		ok       bool
	}{
		{"tb.cpu.state", 0, "00", true},
		{"tb.cpu.state", 9, "00", true},
		{"tb.cpu.state", 10, "01", true},
		{"tb.cpu.state", 1000, "xx", true},
		{"tb.cpu.count", 4, "", false},
		{"tb.cpu.count", 5, "11001000", true},
		{"tb.missing", 0, "", false},
	}
	for _, tt := range tests {
		v, ok := tr.Sample(tt.variable, tt.at)
		assert.Equal(t, tt.ok, ok, "%s@%d", tt.variable, tt.at)
		if ok {
			assert.Equal(t, tt.want, v.Bits(), "%s@%d", tt.variable, tt.at)
		}
	}

	msg, ok := tr.Sample("tb.msg", 3)
	require.True(t, ok)
	text, _ := msg.Text()
	assert.Equal(t, "hello", text)
}

func TestChanges(t *testing.T) {
	tr := loadTestTrace(t)

	cs, err := tr.Changes("tb.cpu.state", 5, 21)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, uint64(5), cs[0].Time)
	assert.Equal(t, "00", cs[0].Value.Bits())
	assert.Equal(t, uint64(10), cs[1].Time)
	assert.Equal(t, uint64(20), cs[2].Time)

	// the range is half-open
	cs, err = tr.Changes("tb.cpu.state", 5, 20)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, uint64(10), cs[1].Time)

	cs, err = tr.Changes("tb.cpu.count", 0, 4)
	require.NoError(t, err)
	assert.Empty(t, cs)

	_, err = tr.Changes("tb.missing", 0, 1)
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindNotFound, kind)

	_, err = tr.Changes("tb.cpu.state", 9, 1)
	kind, _ = errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidInput, kind)
}

func TestLoadYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind errors.Kind
	}{
		{"unknown key", "variables:\n  - path: a\n    wdth: 1\n", errors.KindInvalidData},
		{"bad bit", "variables:\n  - path: a\n    width: 1\n    changes: [{t: 0, v: \"q\"}]\n", errors.KindInvalidData},
		{"too wide", "variables:\n  - path: a\n    width: 1\n    changes: [{t: 0, v: \"01\"}]\n", errors.KindInvalidData},
		{"unordered", "variables:\n  - path: a\n    width: 1\n    changes: [{t: 5, v: \"0\"}, {t: 5, v: \"1\"}]\n", errors.KindInvalidData},
		{"duplicate", "variables:\n  - {path: a, width: 1}\n  - {path: a, width: 1}\n", errors.KindDuplicate},
		{"unnamed", "variables:\n  - {width: 1}\n", errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.doc))
			require.Error(t, err)
			kind, _ := errors.KindOf(err)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(traceYAML), 0o644))

	tr, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tr.Variables(), 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsLoadFailure(err))
}

func TestEmptyDocument(t *testing.T) {
	tr, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tr.Variables())
}
