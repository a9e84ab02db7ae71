package layout

import (
	"fmt"
	"strings"

	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
)

// FieldKind names a region of the handle.
type FieldKind uint8

const (
	FieldPresent FieldKind = iota
	FieldArena
	FieldSizeTag
	FieldWasted
	FieldLevel
	FieldOffset
)

func (k FieldKind) String() string {
	switch k {
	case FieldPresent:
		return "present"
	case FieldArena:
		return "arena"
	case FieldSizeTag:
		return "size_tag"
	case FieldWasted:
		return "wasted"
	case FieldLevel:
		return "level"
	case FieldOffset:
		return "offset"
	default:
		return fmt.Sprintf("field(%d)", uint8(k))
	}
}

// Field is a contiguous bit range [Lo, Lo+Width) of the handle.
// Level is only meaningful for FieldLevel.
type Field struct {
	Kind  FieldKind
	Level int
	Lo    int
	Width int
}

// Name returns "level_3" for level fields and the kind name otherwise.
func (f Field) Name() string {
	if f.Kind == FieldLevel {
		return fmt.Sprintf("level_%d", f.Level)
	}
	return f.Kind.String()
}

// Mask returns the field's value mask, before shifting.
func (f Field) Mask() uint64 {
	if f.Width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<f.Width - 1
}

// Extract pulls the field's value out of a handle. Zero-width fields read
// as zero.
func (f Field) Extract(h uint64) uint64 {
	if f.Width == 0 {
		return 0
	}
	return (h >> f.Lo) & f.Mask()
}

// BitLayout is the immutable partition of a handle for one size class.
// Fields are ordered from the most significant bit down.
type BitLayout struct {
	Fields       []Field
	Class        SizeClass
	HandleBits   int
	BitsPerLevel int
}

func build(cfg config.Config, sc SizeClass) *BitLayout {
	l := &BitLayout{
		Class:        sc,
		HandleBits:   cfg.HandleBits,
		BitsPerLevel: cfg.BitsPerLevel,
	}

	hi := cfg.HandleBits
	push := func(kind FieldKind, level, width int) {
		hi -= width
		l.Fields = append(l.Fields, Field{Kind: kind, Level: level, Lo: hi, Width: width})
	}

	push(FieldPresent, 0, 1)
	push(FieldArena, 0, cfg.ArenaBits)
	push(FieldSizeTag, 0, cfg.SizeBits)
	push(FieldWasted, 0, sc.WastedBits)
	for i := sc.IndirectionLevels - 1; i >= 0; i-- {
		push(FieldLevel, i, cfg.BitsPerLevel)
	}
	push(FieldOffset, 0, sc.OffsetBits)
	return l
}

// Levels is the number of indirection levels.
func (l *BitLayout) Levels() int {
	return l.Class.IndirectionLevels
}

// Field returns the first field of the given kind.
func (l *BitLayout) Field(kind FieldKind) Field {
	for _, f := range l.Fields {
		if f.Kind == kind {
			return f
		}
	}
	return Field{Kind: kind}
}

// Level returns the field for indirection level i.
func (l *BitLayout) Level(i int) Field {
	for _, f := range l.Fields {
		if f.Kind == FieldLevel && f.Level == i {
			return f
		}
	}
	return Field{Kind: FieldLevel, Level: i}
}

// LevelShift is offset_bits + bits_per_level*i.
func (l *BitLayout) LevelShift(i int) int {
	return l.Class.OffsetBits + l.BitsPerLevel*i
}

// LevelIndex extracts the node index for level i:
// (h >> (offset_bits + bits_per_level*i)) & (1<<bits_per_level - 1).
func (l *BitLayout) LevelIndex(h uint64, i int) uint64 {
	return (h >> uint(l.LevelShift(i))) & (uint64(1)<<l.BitsPerLevel - 1)
}

// Parts are the field values of a handle. Levels[i] belongs to level i.
type Parts struct {
	Levels  []uint64
	Arena   uint64
	SizeTag uint64
	Wasted  uint64
	Offset  uint64
	Present bool
}

// Compose packs parts into a handle, rejecting values wider than their field.
func (l *BitLayout) Compose(p Parts) (uint64, error) {
	if len(p.Levels) != l.Levels() {
		return 0, errors.InvalidInput(errors.PhasePlan,
			fmt.Sprintf("got %d level indexes, layout has %d levels", len(p.Levels), l.Levels()))
	}

	var h uint64
	for _, f := range l.Fields {
		var v uint64
		switch f.Kind {
		case FieldPresent:
			if p.Present {
				v = 1
			}
		case FieldArena:
			v = p.Arena
		case FieldSizeTag:
			v = p.SizeTag
		case FieldWasted:
			v = p.Wasted
		case FieldLevel:
			v = p.Levels[f.Level]
		case FieldOffset:
			v = p.Offset
		}
		if v&^f.Mask() != 0 {
			return 0, errors.Overflow(errors.PhasePlan, []string{f.Name()}, v, f.Width)
		}
		if f.Width > 0 {
			h |= v << f.Lo
		}
	}
	return h, nil
}

// Decompose splits a handle into its field values.
func (l *BitLayout) Decompose(h uint64) Parts {
	p := Parts{Levels: make([]uint64, l.Levels())}
	for _, f := range l.Fields {
		v := f.Extract(h)
		switch f.Kind {
		case FieldPresent:
			p.Present = v == 1
		case FieldArena:
			p.Arena = v
		case FieldSizeTag:
			p.SizeTag = v
		case FieldWasted:
			p.Wasted = v
		case FieldLevel:
			p.Levels[f.Level] = v
		case FieldOffset:
			p.Offset = v
		}
	}
	return p
}

// String renders the layout one character per bit, most significant first:
// F present, A arena, S size tag, _ wasted, digits for levels, . offset.
func (l *BitLayout) String() string {
	var b strings.Builder
	b.Grow(l.HandleBits)
	for _, f := range l.Fields {
		var c byte
		switch f.Kind {
		case FieldPresent:
			c = 'F'
		case FieldArena:
			c = 'A'
		case FieldSizeTag:
			c = 'S'
		case FieldWasted:
			c = '_'
		case FieldLevel:
			c = byte('0' + f.Level%10)
		case FieldOffset:
			c = '.'
		}
		for i := 0; i < f.Width; i++ {
			b.WriteByte(c)
		}
	}
	return b.String()
}
