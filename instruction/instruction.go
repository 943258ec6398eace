// Package instruction implements table-driven instruction decoders.
//
// A decoder is described by one or more TOML sets sharing the same word
// width. Each set names bit fields and lists instructions as mask/match
// pairs with a format string:
//
//	width = 32
//	[fields]
//	rd = { bits = [[11, 7]], table = "x" }
//	[[instruction]]
//	name = "addi"
//	mask = 0x0000707f
//	match = 0x00000013
//	format = "addi {rd}, {rs1}, {imm_i}"
//
// Decoders are translators: an encoding that matches no instruction renders
// as "UNKNOWN INSN (0x...)" with a warning kind.
package instruction

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// Identities of the embedded decoders.
const (
	RV32I = "RV32I"
	RV32  = "RV32"
	RV64  = "RV64"
	MIPS  = "MIPS"
	LA64  = "LA64"
)

//go:embed decoders/*.toml
var embedded embed.FS

var builtinFiles = map[string][]string{
	RV32I: {"rv32i"},
	RV32:  {"rv32i", "rvm", "rv32a", "rvf", "zicsr", "zb", "rv32zb", "rvc", "rv32c"},
	RV64:  {"rv32i", "rv64i", "rvm", "rv64m", "rv32a", "rv64a", "rvf", "rvd", "zicsr", "zb", "rv64zb", "rvc", "rv64c"},
	MIPS:  {"mips"},
	LA64:  {"la64"},
}

// FieldSpec describes how an operand is assembled from instruction bits.
type FieldSpec struct {
	// Bits lists [hi, lo] ranges concatenated most significant first.
	Bits   [][]int `toml:"bits"`
	Format string  `toml:"format"` // "dec" (default) or "hex"
	Table  string  `toml:"table"`  // register name table
	Shift  int     `toml:"shift"`
	Signed bool    `toml:"signed"`
}

// InstructionSpec is one mask/match entry.
type InstructionSpec struct {
	Name   string `toml:"name"`
	Format string `toml:"format"`
	Mask   int64  `toml:"mask"`
	Match  int64  `toml:"match"`
}

// Set is the contents of one decoder definition file.
type Set struct {
	Registers    map[string][]string  `toml:"registers"`
	Fields       map[string]FieldSpec `toml:"fields"`
	Name         string               `toml:"name"`
	Instructions []InstructionSpec    `toml:"instruction"`
	Width        int                  `toml:"width"`
}

// Parse decodes a definition file.
func Parse(data []byte) (*Set, error) {
	var s Set
	md, err := toml.Decode(string(data), &s)
	if err != nil {
		return nil, errors.ParseFailed(errors.PhaseDecode, "decoder definition", err)
	}
	if !md.IsDefined("width") {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("mandatory key 'width' is missing").
			Build()
	}
	if s.Width <= 0 || s.Width > 64 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"width"}, fmt.Sprintf("unsupported width %d", s.Width))
	}
	return &s, nil
}

type field struct {
	table  []string
	ranges [][2]uint
	shift  uint
	hex    bool
	signed bool
}

type entry struct {
	name   string
	format string
	mask   uint64
	match  uint64
}

// Decoder decodes fixed-width instruction words.
type Decoder struct {
	fields map[string]field
	name   string
	insns  []entry
	width  int
}

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// New merges sets into one decoder. All sets must share a width; entries
// are matched in the order given.
func New(name string, sets ...*Set) (*Decoder, error) {
	if len(sets) == 0 {
		return nil, errors.InvalidInput(errors.PhaseDecode, "no decoder definitions")
	}
	d := &Decoder{name: name, width: sets[0].Width, fields: make(map[string]field)}
	tables := make(map[string][]string)
	for _, s := range sets {
		for k, v := range s.Registers {
			tables[k] = v
		}
	}

	for _, s := range sets {
		if s.Width != d.width {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Translator(name).
				Detail("bit widths do not match: %d and %d", d.width, s.Width).
				Build()
		}
		for fname, spec := range s.Fields {
			f, err := compileField(fname, spec, tables, d.width)
			if err != nil {
				return nil, err
			}
			d.fields[fname] = f
		}
		for _, in := range s.Instructions {
			d.insns = append(d.insns, entry{
				name:   in.Name,
				format: in.Format,
				mask:   uint64(in.Mask),
				match:  uint64(in.Match),
			})
		}
	}

	for _, in := range d.insns {
		for _, m := range placeholder.FindAllStringSubmatch(in.format, -1) {
			if _, ok := d.fields[m[1]]; !ok {
				return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Translator(name).
					Path(in.name).
					Detail("unknown field %q", m[1]).
					Build()
			}
		}
	}
	return d, nil
}

func compileField(name string, spec FieldSpec, tables map[string][]string, width int) (field, error) {
	f := field{shift: uint(spec.Shift), signed: spec.Signed, hex: spec.Format == "hex"}
	if spec.Table != "" {
		t, ok := tables[spec.Table]
		if !ok {
			return field{}, errors.NotFound(errors.PhaseDecode, "register table", spec.Table)
		}
		f.table = t
	}
	for _, r := range spec.Bits {
		if len(r) != 2 || r[0] < r[1] || r[1] < 0 || r[0] >= width {
			return field{}, errors.InvalidData(errors.PhaseDecode, []string{"fields", name}, fmt.Sprintf("bad bit range %v", r))
		}
		f.ranges = append(f.ranges, [2]uint{uint(r[0]), uint(r[1])})
	}
	if len(f.ranges) == 0 {
		return field{}, errors.InvalidData(errors.PhaseDecode, []string{"fields", name}, "no bits")
	}
	return f, nil
}

func (f field) extract(word uint64) (uint64, uint) {
	var v uint64
	var n uint
	for _, r := range f.ranges {
		w := r[0] - r[1] + 1
		v = v<<w | (word>>r[1])&(1<<w-1)
		n += w
	}
	return v << f.shift, n + f.shift
}

func (f field) render(word uint64) string {
	v, n := f.extract(word)
	if f.table != nil && v < uint64(len(f.table)) {
		return f.table[v]
	}
	if f.signed && n > 0 && v&(1<<(n-1)) != 0 {
		return strconv.FormatInt(int64(v)-int64(1)<<n, 10)
	}
	if f.hex {
		return "0x" + strconv.FormatUint(v, 16)
	}
	return strconv.FormatUint(v, 10)
}

// Decode returns the disassembly of word, or false if no entry matches.
func (d *Decoder) Decode(word uint64) (string, bool) {
	for _, in := range d.insns {
		if word&in.mask != in.match {
			continue
		}
		return placeholder.ReplaceAllStringFunc(in.format, func(m string) string {
			return d.fields[m[1:len(m)-1]].render(word)
		}), true
	}
	return "", false
}

// Width is the instruction word width in bits.
func (d *Decoder) Width() int { return d.width }

func (d *Decoder) Name() string              { return d.name }
func (d *Decoder) Domain() translator.Domain { return translator.Native }

func (d *Decoder) Validate(meta value.VariableMeta) (translator.Fit, error) {
	if meta.IsString() || meta.Kind == value.KindTransaction || meta.Width != d.width {
		return translator.Incompatible(d.name, "requires %d bits, got %d", d.width, meta.Width)
	}
	return translator.NotRecommended, nil
}

func (d *Decoder) Translate(_ context.Context, _ value.VariableMeta, v value.SampledValue) (value.TranslationResult, error) {
	if r, ok := value.Classify(v); ok {
		return r, nil
	}
	word, ok := v.Uint64()
	if !ok {
		return value.Result("INVALID", value.Warn), nil
	}
	if text, ok := d.Decode(word); ok {
		return value.Result(text, value.Normal), nil
	}
	digits := (d.width + 3) / 4
	return value.Result(fmt.Sprintf("UNKNOWN INSN (0x%0*x)", digits, word), value.Warn), nil
}

// Builtin returns an embedded decoder by identity. Extension sets are
// matched after the base set they extend.
func Builtin(name string) (*Decoder, error) {
	files, ok := builtinFiles[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseDecode, "builtin decoder", name)
	}
	sets := make([]*Set, 0, len(files))
	for _, f := range files {
		path := "decoders/" + f + ".toml"
		data, err := embedded.ReadFile(path)
		if err != nil {
			return nil, errors.LoadFailure(path, err)
		}
		set, err := Parse(data)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, path)
		}
		sets = append(sets, set)
	}
	return New(name, sets...)
}

// MustBuiltin is Builtin for decoders known to exist.
func MustBuiltin(name string) *Decoder {
	d, err := Builtin(name)
	if err != nil {
		panic(err)
	}
	return d
}

// LoadDir builds a decoder from every *.toml file in dir, named after the
// directory. Files that cannot be read or parsed, or whose width differs
// from the first accepted file, are skipped with a warning.
func LoadDir(dir string) (*Decoder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.LoadFailure(dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var sets []*Set
	for _, n := range names {
		path := filepath.Join(dir, n)
		data, err := os.ReadFile(path)
		if err != nil {
			Logger().Warn("skipping decoder file, cannot read", zap.String("path", path), zap.Error(err))
			continue
		}
		set, err := Parse(data)
		if err != nil {
			Logger().Warn("skipping decoder file, cannot parse", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(sets) > 0 && set.Width != sets[0].Width {
			Logger().Warn("skipping decoder file, bit widths do not match",
				zap.String("path", path),
				zap.Int("width", set.Width),
				zap.Int("expected", sets[0].Width))
			continue
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil, errors.LoadFailure(dir, errors.InvalidInput(errors.PhaseDecode, "no usable decoder files"))
	}
	return New(filepath.Base(dir), sets...)
}

// Discover loads every decoder directory under root/decoders in name order.
// Directories that fail to load are logged and omitted.
func Discover(root string) []*Decoder {
	base := filepath.Join(root, "decoders")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	var out []*Decoder
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := LoadDir(filepath.Join(base, e.Name()))
		if err != nil {
			Logger().Warn("decoder not loaded", zap.String("dir", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	return out
}
