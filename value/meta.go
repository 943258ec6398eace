package value

import "strings"

// Ref identifies a variable by its scope path and name.
type Ref struct {
	Scope string `yaml:"scope" toml:"scope"`
	Name  string `yaml:"name" toml:"name"`
}

// ParseRef splits a dotted path; the last element is the name.
func ParseRef(path string) Ref {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return Ref{Name: path}
	}
	return Ref{Scope: path[:i], Name: path[i+1:]}
}

func (r Ref) String() string {
	if r.Scope == "" {
		return r.Name
	}
	return r.Scope + "." + r.Name
}

// VarKind is the structural kind of a variable.
type VarKind uint8

const (
	KindScalar VarKind = iota
	KindEnum
	KindArray
	KindStruct
	KindTransaction
)

var varKindNames = [...]string{"scalar", "enum", "array", "struct", "transaction"}

func (k VarKind) String() string {
	if int(k) < len(varKindNames) {
		return varKindNames[k]
	}
	return "unknown"
}

// ParseVarKind maps a kind name back to VarKind. Unknown names map to scalar.
func ParseVarKind(s string) VarKind {
	for i, n := range varKindNames {
		if n == s {
			return VarKind(i)
		}
	}
	return KindScalar
}

// Encoding is how the trace stores the variable's samples.
type Encoding uint8

const (
	EncodingBits Encoding = iota
	EncodingString
	EncodingReal
)

func (e Encoding) String() string {
	switch e {
	case EncodingString:
		return "string"
	case EncodingReal:
		return "real"
	default:
		return "bits"
	}
}

// Index is the declared bit range, e.g. [7:-4] for a fixed point signal.
type Index struct {
	MSB int `yaml:"msb"`
	LSB int `yaml:"lsb"`
}

// Field is a named member of a composite variable.
type Field struct {
	Name string       `yaml:"name"`
	Meta VariableMeta `yaml:"meta"`
}

// VariableMeta is immutable for the lifetime of a loaded trace.
type VariableMeta struct {
	Index    *Index            `yaml:"index,omitempty"`
	EnumMap  map[string]string `yaml:"enum,omitempty"`
	Ref      Ref               `yaml:"ref"`
	TypeName string            `yaml:"type_name,omitempty"`
	VarType  string            `yaml:"var_type,omitempty"`
	Fields   []Field           `yaml:"fields,omitempty"`
	Width    int               `yaml:"width"`
	Kind     VarKind           `yaml:"-"`
	Encoding Encoding          `yaml:"-"`
	Signed   bool              `yaml:"signed,omitempty"`
	Packed   bool              `yaml:"packed,omitempty"`
}

// Decomposable reports whether the variable can be split into its fields.
// Packed layouts are opaque, and so is any composite whose field widths do
// not add up to its own width.
func (m VariableMeta) Decomposable() bool {
	if len(m.Fields) == 0 || m.Packed {
		return false
	}
	sum := 0
	for _, f := range m.Fields {
		sum += f.Meta.Width
	}
	return sum == m.Width
}

// Field resolves a dotted field path. The empty path is the variable itself.
func (m VariableMeta) Field(path string) (VariableMeta, bool) {
	if path == "" {
		return m, true
	}
	head, rest, _ := strings.Cut(path, ".")
	for _, f := range m.Fields {
		if f.Name == head {
			return f.Meta.Field(rest)
		}
	}
	return VariableMeta{}, false
}

// IsString reports whether samples are textual rather than bit vectors.
func (m VariableMeta) IsString() bool {
	return m.Encoding == EncodingString || m.Encoding == EncodingReal
}
