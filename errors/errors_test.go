package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:      PhaseTranslate,
				Kind:       KindRuntimeFault,
				Translator: "riscv-plugin",
				Variable:   "top.cpu.insn",
				Path:       []string{"opcode"},
				Detail:     "guest trapped",
			},
			contains: []string{"[translate]", "runtime_fault", "riscv-plugin", "top.cpu.insn.opcode", "guest trapped"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseValidate,
				Kind:  KindIncompatible,
			},
			contains: []string{"[validate]", "incompatible"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindLoadFailure,
				Detail: "load plugin.wasm",
				Cause:  errors.New("bad magic"),
			},
			contains: []string{"[load]", "load_failure", "plugin.wasm", "caused by", "bad magic"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseSandbox,
		Kind:  KindRuntimeFault,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:      PhaseTranslate,
		Kind:       KindRuntimeFault,
		Translator: "foo",
	}

	if !err.Is(&Error{Phase: PhaseTranslate, Kind: KindRuntimeFault}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseScript, Kind: KindRuntimeFault}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseTranslate, Kind: KindUnusable}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseTranslate, Kind: KindRuntimeFault}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseSandbox, KindRuntimeFault).
		Path("a", "b").
		Translator("t").
		Variable("top.v").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "ptr", "nothing").
		Build()

	if err.Phase != PhaseSandbox {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseSandbox)
	}
	if err.Kind != KindRuntimeFault {
		t.Errorf("Kind = %v, want %v", err.Kind, KindRuntimeFault)
	}
	if len(err.Path) != 2 || err.Path[0] != "a" || err.Path[1] != "b" {
		t.Errorf("Path = %v, want [a b]", err.Path)
	}
	if err.Translator != "t" || err.Variable != "top.v" {
		t.Errorf("Translator=%q Variable=%q", err.Translator, err.Variable)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected ptr, got nothing" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestKindPredicates(t *testing.T) {
	wrapped := fmt.Errorf("batch: %w", RuntimeFault(PhaseScript, "lua", errors.New("boom")))

	if !IsRuntimeFault(wrapped) {
		t.Error("IsRuntimeFault should see through fmt wrapping")
	}
	if IsIncompatible(wrapped) {
		t.Error("runtime fault is not incompatible")
	}
	if !IsIncompatible(Incompatible("Bit", "width 8")) {
		t.Error("IsIncompatible")
	}
	if !IsUnusable(Unusable(PhaseSandbox, "p", "bad pointer")) {
		t.Error("IsUnusable")
	}
	if !IsLoadFailure(LoadFailure("x.wasm", nil)) {
		t.Error("IsLoadFailure")
	}
	if !IsCancelled(Cancelled(PhaseSchedule, nil)) {
		t.Error("IsCancelled")
	}
	if !IsUnsupported(Unsupported(PhaseSandbox, "decompose")) {
		t.Error("IsUnsupported")
	}

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindRuntimeFault {
		t.Errorf("KindOf = %v, %v", kind, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf on plain error should fail")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Duplicate", func(t *testing.T) {
		err := Duplicate("Hex", "/tmp/a.wasm")
		if err.Kind != KindDuplicate || err.Phase != PhaseDiscover {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseValue, nil, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseSandbox, "alloc", "(i32) -> i32", "() -> i32")
		if !strings.Contains(err.Error(), "alloc") {
			t.Errorf("missing export name in %q", err.Error())
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseBind, "translator", "Nope")
		if !strings.Contains(err.Detail, `"Nope"`) {
			t.Errorf("Detail = %q", err.Detail)
		}
	})
}

func TestForbiddenImportsError(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		err := NewForbiddenImportsError([]string{
			"wasi_snapshot_preview1#fd_write",
			"env#system",
		})

		if len(err.Imports) != 2 {
			t.Fatalf("len = %d, want 2", len(err.Imports))
		}
		if err.Imports[0].Module != "wasi_snapshot_preview1" || err.Imports[0].Function != "fd_write" {
			t.Errorf("Imports[0] = %+v", err.Imports[0])
		}

		msg := err.Error()
		for _, s := range []string{"2 host import", "wasi_snapshot_preview1:", "fd_write", "env:", "system"} {
			if !strings.Contains(msg, s) {
				t.Errorf("message %q does not contain %q", msg, s)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		err := &ForbiddenImportsError{}
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("is", func(t *testing.T) {
		var target *ForbiddenImportsError
		err := fmt.Errorf("load: %w", NewForbiddenImportsError([]string{"env#x"}))
		if !errors.As(err, &target) {
			t.Error("errors.As should find ForbiddenImportsError")
		}
	})
}

func TestMessage(t *testing.T) {
	inner := fmt.Errorf("wasm error: unreachable")
	if got := Message(RuntimeFault(PhaseSandbox, "p", inner)); got != "wasm error: unreachable" {
		t.Errorf("Message(fault) = %q", got)
	}
	withDetail := New(PhaseScript, KindRuntimeFault).Detail("s.lua:3: boom").Cause(inner).Build()
	if got := Message(withDetail); got != "s.lua:3: boom" {
		t.Errorf("Message(detail) = %q", got)
	}
	if got := Message(NotFound(PhaseBind, "translator", "X")); got != `translator "X" not found` {
		t.Errorf("Message(not found) = %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q", got)
	}
}

func TestKindPredicatesJoined(t *testing.T) {
	joined := errors.Join(
		NotFound(PhaseDiscover, "dir", "x"),
		fmt.Errorf("plugin: %w", LoadFailure("a.wasm", errors.New("bad magic"))),
	)
	if !IsLoadFailure(joined) {
		t.Error("IsLoadFailure(joined) = false")
	}
	if IsRuntimeFault(joined) {
		t.Error("IsRuntimeFault(joined) = true")
	}
}
