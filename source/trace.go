package source

import (
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

var _ Source = (*Trace)(nil)

// Trace is an immutable in-memory Source.
type Trace struct {
	metas   map[string]value.VariableMeta
	changes map[string][]Change
	order   []string
}

// NewTrace creates an empty trace. Populate it with Add before sharing it.
func NewTrace() *Trace {
	return &Trace{
		metas:   make(map[string]value.VariableMeta),
		changes: make(map[string][]Change),
	}
}

// Add appends a variable. Changes must be in strictly increasing time order
// and every bit sample must match the declared width.
func (t *Trace) Add(meta value.VariableMeta, changes ...Change) error {
	path := meta.Ref.String()
	if path == "" {
		return errors.InvalidInput(errors.PhaseTrace, "variable without a name")
	}
	if _, ok := t.metas[path]; ok {
		return errors.New(errors.PhaseTrace, errors.KindDuplicate).
			Variable(path).
			Detail("variable declared twice").
			Build()
	}
	for i, c := range changes {
		if i > 0 && c.Time <= changes[i-1].Time {
			return errors.New(errors.PhaseTrace, errors.KindInvalidData).
				Variable(path).
				Detail("change at %d is not after %d", c.Time, changes[i-1].Time).
				Build()
		}
		if !c.Value.IsPayload() && c.Value.Width() != meta.Width {
			return errors.New(errors.PhaseTrace, errors.KindInvalidData).
				Variable(path).
				Detail("sample at %d has %d bits, want %d", c.Time, c.Value.Width(), meta.Width).
				Build()
		}
	}
	t.metas[path] = meta
	t.changes[path] = changes
	t.order = append(t.order, path)
	return nil
}

func (t *Trace) Variables() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Trace) Meta(variable string) (value.VariableMeta, bool) {
	m, ok := t.metas[variable]
	return m, ok
}

// at returns the index of the change in effect at time ts, or -1.
func at(cs []Change, ts uint64) int {
	return sort.Search(len(cs), func(i int) bool { return cs[i].Time > ts }) - 1
}

func (t *Trace) Sample(variable string, ts uint64) (value.SampledValue, bool) {
	cs := t.changes[variable]
	i := at(cs, ts)
	if i < 0 {
		return value.SampledValue{}, false
	}
	return cs[i].Value, true
}

func (t *Trace) Changes(variable string, from, to uint64) ([]Change, error) {
	cs, ok := t.changes[variable]
	if !ok {
		return nil, errors.New(errors.PhaseTrace, errors.KindNotFound).
			Variable(variable).
			Detail("no such variable").
			Build()
	}
	if from > to {
		return nil, errors.New(errors.PhaseTrace, errors.KindInvalidInput).
			Variable(variable).
			Detail("empty range [%d, %d]", from, to).
			Build()
	}

	var out []Change
	i := at(cs, from)
	if i >= 0 {
		out = append(out, Change{Time: from, Value: cs[i].Value})
	}
	for i++; i < len(cs) && cs[i].Time < to; i++ {
		out = append(out, cs[i])
	}
	return out, nil
}

type traceDoc struct {
	Variables []varDoc `yaml:"variables"`
}

type varDoc struct {
	Index    *value.Index      `yaml:"index"`
	Enum     map[string]string `yaml:"enum"`
	Path     string            `yaml:"path"`
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	Encoding string            `yaml:"encoding"`
	TypeName string            `yaml:"type_name"`
	VarType  string            `yaml:"var_type"`
	Fields   []varDoc          `yaml:"fields"`
	Changes  []changeDoc       `yaml:"changes"`
	Width    int               `yaml:"width"`
	Signed   bool              `yaml:"signed"`
	Packed   bool              `yaml:"packed"`
}

type changeDoc struct {
	Real *float64 `yaml:"real"`
	Uint *uint64  `yaml:"uint"`
	Bits string   `yaml:"v"`
	Text string   `yaml:"text"`
	Time uint64   `yaml:"t"`
}

func (d varDoc) meta() value.VariableMeta {
	m := value.VariableMeta{
		Index:    d.Index,
		EnumMap:  d.Enum,
		TypeName: d.TypeName,
		VarType:  d.VarType,
		Width:    d.Width,
		Kind:     value.ParseVarKind(d.Kind),
		Signed:   d.Signed,
		Packed:   d.Packed,
	}
	if d.Path != "" {
		m.Ref = value.ParseRef(d.Path)
	}
	switch d.Encoding {
	case "string":
		m.Encoding = value.EncodingString
	case "real":
		m.Encoding = value.EncodingReal
	}
	if len(d.Enum) > 0 && d.Kind == "" {
		m.Kind = value.KindEnum
	}
	for _, f := range d.Fields {
		m.Fields = append(m.Fields, value.Field{Name: f.Name, Meta: f.meta()})
	}
	return m
}

func (c changeDoc) sample(width int) (value.SampledValue, error) {
	switch {
	case c.Real != nil:
		return value.FromReal(*c.Real), nil
	case c.Uint != nil:
		return value.FromUint(*c.Uint, width), nil
	case c.Text != "":
		return value.FromText(c.Text), nil
	default:
		return value.FromBits(c.Bits, width)
	}
}

// LoadYAML reads a trace document:
//
//	variables:
//	  - path: tb.cpu.state
//	    width: 2
//	    enum: {"00": IDLE, "01": RUN}
//	    changes:
//	      - {t: 0, v: "00"}
//	      - {t: 10, v: "01"}
func LoadYAML(r io.Reader) (*Trace, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc traceDoc
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.ParseFailed(errors.PhaseTrace, "trace document", err)
	}

	t := NewTrace()
	for _, vd := range doc.Variables {
		meta := vd.meta()
		changes := make([]Change, 0, len(vd.Changes))
		for _, cd := range vd.Changes {
			v, err := cd.sample(meta.Width)
			if err != nil {
				return nil, errors.New(errors.PhaseTrace, errors.KindInvalidData).
					Variable(vd.Path).
					Detail("sample at %d", cd.Time).
					Cause(err).
					Build()
			}
			changes = append(changes, Change{Time: cd.Time, Value: v})
		}
		if err := t.Add(meta, changes...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadFile reads a YAML trace from path.
func LoadFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.LoadFailure(path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}
