package dispatch

import (
	"fmt"

	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
)

// Class is one planner verdict handed to Build. Walker is ignored when
// Feasible is unset.
type Class[W any] struct {
	Walker   W
	Index    int
	Feasible bool
}

type entry[W any] struct {
	walker    W
	supported bool
}

// Table maps a size-tag value to the walker for that class. It has exactly
// one entry per possible tag, so a handle's tag indexes it directly.
// A Table is immutable after Build and safe for concurrent use.
type Table[W any] struct {
	entries []entry[W]
	tagLo   uint
	tagMask uint64
}

// Build aggregates classes, given in ascending index order, into a table of
// size_base^size_bits entries. Indices missing from classes and infeasible
// classes both become unsupported entries.
func Build[W any](cfg config.Config, classes []Class[W]) (*Table[W], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.NumClasses()
	t := &Table[W]{
		entries: make([]entry[W], n),
		tagLo:   uint(cfg.HandleBits - 1 - cfg.ArenaBits - cfg.SizeBits),
		tagMask: uint64(1)<<cfg.SizeBits - 1,
	}

	prev := -1
	for i, c := range classes {
		if c.Index < 0 || c.Index >= n {
			return nil, errors.OutOfBounds(errors.PhaseDispatch,
				[]string{fmt.Sprintf("classes[%d]", i), "index"}, c.Index, n)
		}
		if c.Index <= prev {
			what := "out of order"
			if c.Index == prev {
				what = "duplicate"
			}
			return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
				Path(fmt.Sprintf("classes[%d]", i)).
				Value(c.Index).
				Detail("%s class index %d after %d", what, c.Index, prev).
				Build()
		}
		prev = c.Index
		if c.Feasible {
			t.entries[c.Index] = entry[W]{walker: c.Walker, supported: true}
		}
	}
	return t, nil
}

// Len is the number of entries, size_base^size_bits.
func (t *Table[W]) Len() int {
	return len(t.entries)
}

// Supported counts the entries holding a walker.
func (t *Table[W]) Supported() int {
	n := 0
	for _, e := range t.entries {
		if e.supported {
			n++
		}
	}
	return n
}

// Lookup returns the walker for a size tag. Unsupported and out-of-range
// tags fail with errors.ErrUnsupported.
func (t *Table[W]) Lookup(tag int) (W, error) {
	var zero W
	if tag < 0 || tag >= len(t.entries) {
		return zero, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Value(tag).
			Detail("size tag %d outside table of %d entries", tag, len(t.entries)).
			Build()
	}
	e := t.entries[tag]
	if !e.supported {
		return zero, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path(fmt.Sprintf("class[%d]", tag)).
			Value(tag).
			Detail("size class is not supported by this configuration").
			Build()
	}
	return e.walker, nil
}

// Tag extracts the size-tag field of a handle. Its position does not depend
// on the class.
func (t *Table[W]) Tag(handle uint64) int {
	return int((handle >> t.tagLo) & t.tagMask)
}

// Route looks up the walker for the size class named by a handle.
func (t *Table[W]) Route(handle uint64) (W, error) {
	return t.Lookup(t.Tag(handle))
}

// Each calls fn for every entry in tag order until fn returns false.
// The walker argument is the zero value for unsupported entries.
func (t *Table[W]) Each(fn func(tag int, w W, supported bool) bool) {
	for i, e := range t.entries {
		if !fn(i, e.walker, e.supported) {
			return
		}
	}
}
