// Package script hosts user translators written in Lua.
//
// Script files live in <search path>/scripts/*.lua and share one
// interpreter state. A script registers translators through the global
// surfer table:
//
//	surfer.register{
//	    name = "Opcode",
//	    translates = function(var)
//	        if var.width == 8 then return surfer.Preference.Prefer end
//	        return surfer.Preference.No
//	    end,
//	    translate = function(var, value)
//	        if value == "00000000" then return "NOP", surfer.ValueKind.Weak end
//	        return value, surfer.ValueKind.Normal
//	    end,
//	}
//
// var carries name, scope, width, signed, kind, encoding, type_name,
// var_type and, when present, enum and fields. value is the MSB-first bit
// string, or the text of a string or real sample.
//
// Only one call runs at a time. Every call is bounded by a deadline, and an
// error raised by a script fails only the value being translated.
package script
