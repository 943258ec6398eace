package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseValue     Phase = "value"     // sampled value construction
	PhaseDiscover  Phase = "discover"  // search path scanning
	PhaseLoad      Phase = "load"      // plugin, script or decoder loading
	PhaseValidate  Phase = "validate"  // applicability checks
	PhaseTranslate Phase = "translate" // value translation
	PhaseSelect    Phase = "select"    // default translator selection
	PhaseBind      Phase = "bind"      // user translator bindings
	PhaseSandbox   Phase = "sandbox"   // bytecode runtime
	PhaseScript    Phase = "script"    // embedded interpreter
	PhaseSchedule  Phase = "schedule"  // batch scheduling
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseSession   Phase = "session"   // persisted bindings
	PhaseDecode    Phase = "decode"    // instruction decoder definitions
	PhaseTrace     Phase = "trace"     // upstream trace access
)

// Kind categorizes the error
type Kind string

const (
	KindIncompatible  Kind = "incompatible"
	KindLoadFailure   Kind = "load_failure"
	KindRuntimeFault  Kind = "runtime_fault"
	KindUnusable      Kind = "unusable"
	KindDuplicate     Kind = "duplicate"
	KindNotFound      Kind = "not_found"
	KindInvalidInput  Kind = "invalid_input"
	KindInvalidData   Kind = "invalid_data"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindCancelled     Kind = "cancelled"
	KindUnsupported   Kind = "unsupported"
	KindMissingExport Kind = "missing_export"
	KindTypeMismatch  Kind = "type_mismatch"
	KindClosed        Kind = "closed"
)

// Error is the structured error type used throughout the engine
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	Translator string
	Variable   string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Translator != "" {
		b.WriteString(" translator ")
		b.WriteString(e.Translator)
	}

	if e.Variable != "" || len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(e.Variable)
		if len(e.Path) > 0 {
			if e.Variable != "" {
				b.WriteByte('.')
			}
			b.WriteString(strings.Join(e.Path, "."))
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the composite field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Translator sets the translator identity
func (b *Builder) Translator(name string) *Builder {
	b.err.Translator = name
	return b
}

// Variable sets the variable the error relates to
func (b *Builder) Variable(name string) *Builder {
	b.err.Variable = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func hasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if hasKind(inner, kind) {
					return true
				}
			}
			return false
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsIncompatible reports whether err is a validate rejection.
func IsIncompatible(err error) bool { return hasKind(err, KindIncompatible) }

// IsRuntimeFault reports whether err is a trap or script exception.
func IsRuntimeFault(err error) bool { return hasKind(err, KindRuntimeFault) }

// IsUnusable reports whether err marks a translator as permanently broken.
func IsUnusable(err error) bool { return hasKind(err, KindUnusable) }

// IsLoadFailure reports whether err is a plugin or script load failure.
func IsLoadFailure(err error) bool { return hasKind(err, KindLoadFailure) }

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool { return hasKind(err, KindCancelled) }

// IsUnsupported reports whether err rejects an optional operation.
func IsUnsupported(err error) bool { return hasKind(err, KindUnsupported) }

// Message returns the most specific human-readable text in err's chain:
// the first non-empty Detail, or else the innermost cause.
func Message(err error) string {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if se, ok := e.(*Error); ok && se.Detail != "" {
			return se.Detail
		}
		if stderrors.Unwrap(e) == nil {
			return e.Error()
		}
	}
	return ""
}

// Convenience constructors for common error patterns

// Incompatible creates a validate rejection
func Incompatible(translator, reason string) *Error {
	return &Error{
		Phase:      PhaseValidate,
		Kind:       KindIncompatible,
		Translator: translator,
		Detail:     reason,
	}
}

// LoadFailure creates a plugin, script or decoder load failure
func LoadFailure(source string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailure,
		Detail: fmt.Sprintf("load %s", source),
		Cause:  cause,
	}
}

// RuntimeFault creates a per-value execution failure
func RuntimeFault(phase Phase, translator string, cause error) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindRuntimeFault,
		Translator: translator,
		Cause:      cause,
	}
}

// Unusable marks a translator whose runtime state can no longer be trusted
func Unusable(phase Phase, translator, detail string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindUnusable,
		Translator: translator,
		Detail:     detail,
	}
}

// Duplicate creates a duplicate identity error
func Duplicate(translator, source string) *Error {
	return &Error{
		Phase:      PhaseDiscover,
		Kind:       KindDuplicate,
		Translator: translator,
		Detail:     fmt.Sprintf("already registered, skipping %s", source),
	}
}

// Cancelled creates a cancellation error
func Cancelled(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCancelled,
		Cause: cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch creates an ABI signature mismatch error
func TypeMismatch(phase Phase, name, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   []string{name},
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// ForbiddenImport is a single host import a plugin asked for but may not have
type ForbiddenImport struct {
	Module   string // e.g., "wasi_snapshot_preview1"
	Function string // e.g., "fd_write"
}

// ForbiddenImportsError is returned when a plugin imports host functions
// outside the sandbox allow-list
type ForbiddenImportsError struct {
	Imports []ForbiddenImport
}

// NewForbiddenImportsError creates an error from a list of "module#function" strings
func NewForbiddenImportsError(imports []string) *ForbiddenImportsError {
	result := &ForbiddenImportsError{
		Imports: make([]ForbiddenImport, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, ForbiddenImport{
			Module:   mod,
			Function: fn,
		})
	}
	return result
}

func parseImportKey(key string) (module, function string) {
	mod, fn, found := strings.Cut(key, "#")
	if found {
		return mod, fn
	}
	return key, ""
}

func (e *ForbiddenImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[sandbox] forbidden_import: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d host import(s) outside the allow-list:\n", len(e.Imports)))

	// Group by module for cleaner output
	byMod := make(map[string][]string)
	var modOrder []string
	for _, imp := range e.Imports {
		if _, exists := byMod[imp.Module]; !exists {
			modOrder = append(modOrder, imp.Module)
		}
		byMod[imp.Module] = append(byMod[imp.Module], imp.Function)
	}

	for _, mod := range modOrder {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byMod[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *ForbiddenImportsError) Is(target error) bool {
	_, ok := target.(*ForbiddenImportsError)
	return ok
}
