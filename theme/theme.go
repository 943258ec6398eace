// Package theme maps value kinds to display colours.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

// Theme holds the colours of the built-in value kinds. Warn values share
// the undefined colour; Normal values use the colour the user picked for
// the variable, falling back to Normal.
type Theme struct {
	Normal        value.Color
	Undefined     value.Color
	HighImpedance value.Color
	DontCare      value.Color
	Weak          value.Color
}

func rgb(r, g, b uint8) value.Color { return value.Color{R: r, G: g, B: b, A: 0xff} }

// Default returns the stock colours.
func Default() Theme {
	return Theme{
		Normal:        rgb(0x33, 0xcc, 0x33),
		Undefined:     rgb(0xff, 0x33, 0x33),
		HighImpedance: rgb(0xe6, 0xd2, 0x1e),
		DontCare:      rgb(0x3c, 0x78, 0xff),
		Weak:          rgb(0x90, 0x90, 0x90),
	}
}

// WithOverrides returns a copy of t with colours replaced by class name,
// e.g. {"undefined": "#ff0000"}. "warn" and "custom" cannot be themed.
func (t Theme) WithOverrides(overrides map[string]string) (Theme, error) {
	for name, hex := range overrides {
		c, ok := value.ParseColor(hex)
		if !ok {
			return t, errors.InvalidData(errors.PhaseConfig, []string{"theme", name}, fmt.Sprintf("invalid colour %q", hex))
		}
		class, ok := value.ParseClass(name)
		if !ok {
			return t, errors.InvalidData(errors.PhaseConfig, []string{"theme", name}, "unknown value kind")
		}
		switch class {
		case value.ClassNormal:
			t.Normal = c
		case value.ClassUndefined:
			t.Undefined = c
		case value.ClassHighImpedance:
			t.HighImpedance = c
		case value.ClassDontCare:
			t.DontCare = c
		case value.ClassWeak:
			t.Weak = c
		default:
			return t, errors.InvalidData(errors.PhaseConfig, []string{"theme", name}, "value kind has no themeable colour")
		}
	}
	return t, nil
}

// ValueKindColor resolves the colour a value of kind is drawn in. user is
// the variable's own colour, used for Normal values; nil means the theme
// default.
func (t Theme) ValueKindColor(kind value.ValueKind, user *value.Color) value.Color {
	switch kind.Class {
	case value.ClassUndefined, value.ClassWarn:
		return t.Undefined
	case value.ClassHighImpedance:
		return t.HighImpedance
	case value.ClassDontCare:
		return t.DontCare
	case value.ClassWeak:
		return t.Weak
	case value.ClassCustom:
		return kind.Color
	}
	if user != nil {
		return *user
	}
	return t.Normal
}

// Style returns a terminal style drawing text in the kind's colour.
func (t Theme) Style(kind value.ValueKind, user *value.Color) lipgloss.Style {
	c := t.ValueKindColor(kind, user)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
}

// Render draws a translation result.
func (t Theme) Render(r value.TranslationResult, user *value.Color) string {
	return t.Style(r.Kind, user).Render(r.Text)
}
