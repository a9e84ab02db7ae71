package manifest

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
)

// Version is the manifest format version written by Encode.
const Version = 1

// Namespace derives build ids from the encoded configuration, so equal
// configurations get equal ids unless one is supplied.
var Namespace = uuid.MustParse("6f1d0c8e-3b0a-4d55-9a57-2f6c8b1e4a90")

// Field is one bit range of a class's handle layout.
type Field struct {
	Name  string `cbor:"1,keyasint"`
	Lo    int    `cbor:"2,keyasint"`
	Width int    `cbor:"3,keyasint"`
}

// Class describes one size-class index. Infeasible classes carry only the
// reason they were rejected.
type Class struct {
	Reason     string  `cbor:"1,keyasint,omitempty"`
	Fields     []Field `cbor:"2,keyasint,omitempty"`
	Shifts     []uint  `cbor:"3,keyasint,omitempty"`
	Size       uint64  `cbor:"4,keyasint"`
	Index      int     `cbor:"5,keyasint"`
	OffsetBits int     `cbor:"6,keyasint"`
	Levels     int     `cbor:"7,keyasint,omitempty"`
	WastedBits int     `cbor:"8,keyasint,omitempty"`
	Feasible   bool    `cbor:"9,keyasint"`
}

// Manifest is the portable description of a plan handed to code that
// composes handles.
type Manifest struct {
	Config  config.Config `cbor:"1,keyasint"`
	Classes []Class       `cbor:"2,keyasint"`
	BuildID uuid.UUID     `cbor:"3,keyasint"`
	Version int           `cbor:"4,keyasint"`
}

type options struct {
	buildID uuid.UUID
}

// Option configures manifest construction.
type Option func(*options)

// WithBuildID sets an explicit build id.
func WithBuildID(id uuid.UUID) Option {
	return func(o *options) {
		o.buildID = id
	}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// FromPlan describes p.
func FromPlan(p *handletable.Plan, opts ...Option) (*Manifest, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manifest{
		Version: Version,
		Config:  p.Config,
		Classes: make([]Class, len(p.Classes)),
		BuildID: o.buildID,
	}
	for i, r := range p.Classes {
		c := Class{
			Index:      r.Class.Index,
			Size:       r.Class.Size,
			OffsetBits: r.Class.OffsetBits,
		}
		if r.Feasible() {
			c.Feasible = true
			c.Levels = r.Class.IndirectionLevels
			c.WastedBits = r.Class.WastedBits
			for _, f := range r.Layout.Fields {
				c.Fields = append(c.Fields, Field{Name: f.Name(), Lo: f.Lo, Width: f.Width})
			}
			for _, lv := range p.Specs[i].Levels {
				c.Shifts = append(c.Shifts, lv.Shift)
			}
		} else if r.Err != nil {
			c.Reason = r.Err.Error()
		}
		m.Classes[i] = c
	}

	if m.BuildID == uuid.Nil {
		cfg, err := encMode.Marshal(m.Config)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "encode config")
		}
		m.BuildID = uuid.NewSHA1(Namespace, cfg)
	}
	return m, nil
}

// Encode describes p as deterministic CBOR.
func Encode(p *handletable.Plan, opts ...Option) ([]byte, error) {
	m, err := FromPlan(p, opts...)
	if err != nil {
		return nil, err
	}
	return m.Marshal()
}

// Marshal encodes m as deterministic CBOR.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "encode manifest")
	}
	return data, nil
}

// Decode parses a manifest and checks its version. It does not re-plan;
// call Verify for that.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, errors.InvalidData(errors.PhaseManifest, "decode manifest", err)
	}
	if m.Version != Version {
		return nil, errors.New(errors.PhaseManifest, errors.KindUnsupported).
			Value(m.Version).
			Detail("manifest version %d, want %d", m.Version, Version).
			Build()
	}
	return &m, nil
}

// Supported returns the indices of feasible classes.
func (m *Manifest) Supported() []int {
	var out []int
	for _, c := range m.Classes {
		if c.Feasible {
			out = append(out, c.Index)
		}
	}
	return out
}

// Verify re-plans the embedded configuration and reports the first class
// whose recorded layout differs.
func (m *Manifest) Verify() error {
	p, err := handletable.Generate(m.Config)
	if err != nil {
		return errors.InvalidData(errors.PhaseManifest, "embedded configuration", err)
	}
	want, err := FromPlan(p, WithBuildID(m.BuildID))
	if err != nil {
		return err
	}
	if len(m.Classes) != len(want.Classes) {
		return errors.New(errors.PhaseManifest, errors.KindInvalidData).
			Path("classes").
			Detail("%d classes recorded, configuration has %d", len(m.Classes), len(want.Classes)).
			Build()
	}
	for i := range want.Classes {
		if what := diff(m.Classes[i], want.Classes[i]); what != "" {
			return errors.New(errors.PhaseManifest, errors.KindInvalidData).
				Path(fmt.Sprintf("class[%d]", i), what).
				Detail("recorded layout does not match configuration").
				Build()
		}
	}
	return nil
}

func diff(got, want Class) string {
	switch {
	case got.Index != want.Index:
		return "index"
	case got.Feasible != want.Feasible:
		return "feasible"
	case got.Size != want.Size:
		return "size"
	case got.OffsetBits != want.OffsetBits:
		return "offset_bits"
	case got.Levels != want.Levels:
		return "levels"
	case got.WastedBits != want.WastedBits:
		return "wasted_bits"
	case !slices.Equal(got.Fields, want.Fields):
		return "fields"
	case !slices.Equal(got.Shifts, want.Shifts):
		return "shifts"
	}
	return ""
}
