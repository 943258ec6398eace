package builtin

import (
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

func stringTranslator() translator.Translator {
	return &translator.Func{
		ID: NameString,
		Accept: func(meta value.VariableMeta) (translator.Fit, error) {
			if !meta.IsString() {
				return translator.Incompatible(NameString, "not a string or real variable")
			}
			return translator.Preferred, nil
		},
		Decode: func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			if s, ok := v.Text(); ok {
				return value.Result(s, value.Normal)
			}
			return value.Result(v.String(), value.Normal)
		},
	}
}

func enumTranslator() translator.Translator {
	return &translator.Func{
		ID: NameEnum,
		Accept: func(meta value.VariableMeta) (translator.Fit, error) {
			if len(meta.EnumMap) == 0 {
				return translator.Incompatible(NameEnum, "no enum map")
			}
			return translator.Preferred, nil
		},
		Decode: func(meta value.VariableMeta, v value.SampledValue) value.TranslationResult {
			if name, ok := meta.EnumMap[v.Bits()]; ok {
				return value.Result(name, value.Normal)
			}
			return value.Result("ERROR ("+v.Bits()+")", value.Warn)
		},
	}
}
