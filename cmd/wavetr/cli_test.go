package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wave-translate/session"
)

const testTrace = `
variables:
  - path: tb.state
    width: 2
    enum: {"00": IDLE, "01": RUN}
    changes:
      - {t: 0, v: "00"}
      - {t: 10, v: "01"}
      - {t: 20, v: "01"}
  - path: tb.data
    width: 8
    changes:
      - {t: 0, v: "00001111"}
      - {t: 5, v: "zzzzzzzz"}
`

type fixture struct {
	dir   string
	trace string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	trace := filepath.Join(dir, "trace.yaml")
	require.NoError(t, os.WriteFile(trace, []byte(testTrace), 0o644))
	return fixture{dir: dir, trace: trace}
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := newCLI()
	var out bytes.Buffer
	c.SetOutput(&out)
	c.SetArgs(append([]string{"--search-path", f.dir, "--color", "never"}, args...))
	err := c.Execute(context.Background())
	return out.String(), err
}

func TestListShowsBuiltinsInOrder(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "String")
	assert.Contains(t, out, "Hexadecimal")
	assert.Contains(t, out, "builtin")
}

func TestApplicableMarksCurrent(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "--trace", f.trace, "applicable", "tb.state")
	require.NoError(t, err)
	assert.Contains(t, out, "* Enum\n")
	assert.Contains(t, out, "  Binary (not recommended)\n")
}

func TestTranslate(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "--trace", f.trace, "translate", "--to", "30")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"tb.state [Enum]",
		"  0..10  IDLE",
		"  10..30  RUN",
		"tb.data [Hexadecimal]",
		"  0..5  0f",
		"  5..30  zz",
		"",
	}, "\n"), out)
}

func TestTranslateWithBindingSavesSession(t *testing.T) {
	f := newFixture(t)
	sess := filepath.Join(f.dir, "session.yaml")
	out, err := f.run(t, "--trace", f.trace, "--session", sess,
		"translate", "--var", "tb.data", "--translator", "Binary", "--from", "2", "--to", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "  2..4  00001111\n")

	data, err := os.ReadFile(sess)
	require.NoError(t, err)
	b, err := session.Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Binary", b["tb.data"][""])

	out, err = f.run(t, "--trace", f.trace, "--session", sess, "translate", "--var", "tb.data", "--to", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "tb.data [Binary]")
}

func TestBind(t *testing.T) {
	f := newFixture(t)
	sess := filepath.Join(f.dir, "s.yaml")

	_, err := f.run(t, "--trace", f.trace, "bind", "tb.data", "Octal")
	require.Error(t, err)

	_, err = f.run(t, "--trace", f.trace, "--session", sess, "bind", "tb.data", "Octal")
	require.NoError(t, err)
	out, err := f.run(t, "--trace", f.trace, "--session", sess, "applicable", "tb.data")
	require.NoError(t, err)
	assert.Contains(t, out, "* Octal")

	_, err = f.run(t, "--trace", f.trace, "--session", sess, "bind", "tb.data", "Bit")
	require.Error(t, err)
}

func TestMissingTrace(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "translate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--trace")

	_, err = f.run(t, "--trace", filepath.Join(f.dir, "nope.yaml"), "translate")
	require.Error(t, err)
}
