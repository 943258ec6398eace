package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wavetranslate "github.com/wippyai/wave-translate"
	"github.com/wippyai/wave-translate/config"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/source"
)

func newTestView(t *testing.T) *viewModel {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.SearchPaths = []string{t.TempDir()}
	eng, err := wavetranslate.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	trace, err := source.LoadYAML(strings.NewReader(testTrace))
	require.NoError(t, err)
	eng.SetSource(trace, trace.Variables())

	m := newViewModel(ctx, eng, trace.Variables())
	m.Update(m.Init()())
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewStepsThroughChanges(t *testing.T) {
	m := newTestView(t)
	assert.False(t, m.pending)
	assert.Contains(t, m.View(), "IDLE")

	m.Update(key("l"))
	assert.Equal(t, uint64(10), m.time)
	assert.Contains(t, m.View(), "RUN")

	// the repeated value at 20 was collapsed into the run starting at 10
	m.Update(key("l"))
	assert.Equal(t, uint64(10), m.time)

	m.Update(key("h"))
	assert.Equal(t, uint64(0), m.time)
}

func TestViewCyclesTranslator(t *testing.T) {
	m := newTestView(t)
	m.Update(key("j"))
	require.Equal(t, 1, m.selected)

	_, cmd := m.Update(key("tab"))
	require.NotNil(t, cmd)
	m.Update(cmd())

	name, err := m.eng.Translator("tb.data", "")
	require.NoError(t, err)
	assert.NotEqual(t, "Hexadecimal", name)
	assert.Equal(t, name, m.results["tb.data"].Translator)
}

func TestViewJumpToTime(t *testing.T) {
	m := newTestView(t)
	m.Update(key("g"))
	require.True(t, m.jumping)
	m.Update(key("1"))
	m.Update(key("5"))
	m.Update(key("enter"))
	assert.False(t, m.jumping)
	assert.Equal(t, uint64(15), m.time)
	assert.Contains(t, m.View(), "RUN")
}

func TestViewReloadTranslatorReportsUnsupported(t *testing.T) {
	m := newTestView(t)
	_, cmd := m.Update(key("R"))
	require.Error(t, m.err)
	assert.True(t, errors.IsUnsupported(m.err))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Contains(t, m.View(), "IDLE")
}
