package builtin

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wave-translate/value"
)

func TestQuire(t *testing.T) {
	pattern := "10101010100010001010101010001000"
	tests := []struct {
		name       string
		translator string
		bits       string
		want       string
	}{
		{"q8 rounds to posit", NamePositQuire8, zeros(16) + "1010101010001000", "10"},
		{"q8 zero", NamePositQuire8, zeros(32), "0"},
		{"q8 one", NamePositQuire8, zeros(19) + "1" + zeros(12), "1"},
		{"q8 minus one", NamePositQuire8, strings.Repeat("1", 20) + zeros(12), "-1"},
		{"q8 saturates negative", NamePositQuire8, "10000111000000001111111111111111", "-64"},
		{"q8 saturates positive", NamePositQuire8, "01110000000000111000000000000000", "64"},
		{"q8 nar", NamePositQuire8, "1" + zeros(31), "NaR"},
		{"q16 saturates negative", NamePositQuire16, strings.Repeat(pattern, 4), "-268435456"},
		{"q16 tiny rounds to minpos", NamePositQuire16, zeros(125) + "111", "3.725290298461914e-9"},
		{"q16 zero", NamePositQuire16, zeros(128), "0"},
		{"q16 integer", NamePositQuire16, zeros(64) + "1000011100000000111111111111111101110000000000111000000000000000", "135"},
		{"q16 small", NamePositQuire16, zeros(96) + "01110000000000111000000000000000", "2.9802322387695312e-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := byName(t, tt.translator).Translate(context.Background(), value.VariableMeta{}, value.MustBits(tt.bits))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, value.Normal, res.Kind)
		})
	}
}

func TestQuireWidths(t *testing.T) {
	_, err := byName(t, NamePositQuire8).Validate(value.VariableMeta{Width: 32})
	require.NoError(t, err)
	_, err = byName(t, NamePositQuire8).Validate(value.VariableMeta{Width: 8})
	assert.Error(t, err)
	_, err = byName(t, NamePositQuire16).Validate(value.VariableMeta{Width: 128})
	require.NoError(t, err)

	res, err := byName(t, NamePositQuire8).Translate(context.Background(), value.VariableMeta{}, value.MustBits("x"+zeros(31)))
	require.NoError(t, err)
	assert.Equal(t, value.Undefined, res.Kind)
}
