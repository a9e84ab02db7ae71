package walker

import (
	"fmt"
	"strings"

	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
	"github.com/wippyai/handletable/layout"
)

// SlotBytes is the width of one table slot: a machine word.
const SlotBytes = 8

// Level describes how to index one node on the walk:
// index = (handle >> Shift) & Mask.
type Level struct {
	Level int
	Shift uint
	Mask  uint64
}

// Spec is the generated description of one size class's walk function.
// Levels run from the top level (L-1) down to level 0.
type Spec struct {
	Layout       *layout.BitLayout
	Levels       []Level
	Class        layout.SizeClass
	BitsPerLevel int
	Fanout       int
}

// Generate derives the walk for a feasible layout. A layout without
// indirection levels is rejected; the planner never produces one.
func Generate(cfg config.Config, l *layout.BitLayout) (*Spec, error) {
	if l == nil {
		return nil, errors.InvalidInput(errors.PhaseGenerate, "nil layout")
	}
	if l.Levels() < 1 {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Path(fmt.Sprintf("class[%d]", l.Class.Index)).
			Detail("size class has no indirection levels").
			Build()
	}
	if l.BitsPerLevel != cfg.BitsPerLevel || l.HandleBits != cfg.HandleBits {
		return nil, errors.InvalidInput(errors.PhaseGenerate, "layout was planned under a different configuration")
	}

	s := &Spec{
		Layout:       l,
		Class:        l.Class,
		BitsPerLevel: cfg.BitsPerLevel,
		Fanout:       cfg.Fanout(),
		Levels:       make([]Level, 0, l.Levels()),
	}
	mask := uint64(cfg.Fanout()) - 1
	for i := l.Levels() - 1; i >= 0; i-- {
		s.Levels = append(s.Levels, Level{
			Level: i,
			Shift: uint(l.LevelShift(i)),
			Mask:  mask,
		})
	}
	return s, nil
}

// Depth is the number of indirection levels.
func (s *Spec) Depth() int {
	return len(s.Levels)
}

// NodeBytes is the size of one table node when slots are machine words.
func (s *Spec) NodeBytes() int {
	return s.Fanout * SlotBytes
}

// Name is the exported symbol used by code-emitting backends.
func (s *Spec) Name() string {
	return fmt.Sprintf("drill_%d", s.Class.Index)
}

// Index returns the node index of handle h at the given level.
func (s *Spec) Index(h uint64, level int) uint64 {
	lv := s.Levels[len(s.Levels)-1-level]
	return (h >> lv.Shift) & lv.Mask
}

// Indexes returns the walk path of h, top level first.
func (s *Spec) Indexes(h uint64) []uint64 {
	out := make([]uint64, len(s.Levels))
	for i, lv := range s.Levels {
		out[i] = (h >> lv.Shift) & lv.Mask
	}
	return out
}

// String describes the index formulas, one level per line.
func (s *Spec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s size=%d levels=%d\n", s.Name(), s.Class.Size, s.Depth())
	for _, lv := range s.Levels {
		fmt.Fprintf(&b, "  ind%d = (h >> %d) & %#x\n", lv.Level, lv.Shift, lv.Mask)
	}
	return b.String()
}
