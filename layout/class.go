package layout

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
)

// SizeClass holds the derived bit budget for one size-class index.
type SizeClass struct {
	Index             int
	OffsetBits        int
	Size              uint64 // saturates at math.MaxUint64
	InfoBits          int
	IndirectionLevels int
	WastedBits        int
	Feasible          bool
}

// Remaining is the number of bits left for indirection and waste.
func (s SizeClass) Remaining(cfg config.Config) int {
	return cfg.HandleBits - s.InfoBits - s.OffsetBits
}

// Classify computes the size class for index n. It never fails; infeasible
// classes come back with Feasible unset and zero levels.
func Classify(cfg config.Config, n int) SizeClass {
	sc := SizeClass{
		Index:      n,
		OffsetBits: n + config.OffsetBitsBase,
		InfoBits:   cfg.InfoBits(),
	}
	sc.Size = pow(uint64(cfg.SizeBase), sc.OffsetBits)
	if !sc.Addressable(cfg) {
		return sc
	}

	remaining := sc.Remaining(cfg)
	if remaining < 0 {
		return sc
	}

	levels := min(remaining/cfg.BitsPerLevel, cfg.MaxLevels)
	sc.IndirectionLevels = levels
	sc.WastedBits = remaining - levels*cfg.BitsPerLevel
	sc.Feasible = levels >= cfg.MinLevels
	return sc
}

// Addressable reports whether the class index fits the size_tag field.
// With size_base above 2 the table has more entries than the tag can name.
func (s SizeClass) Addressable(cfg config.Config) bool {
	return cfg.SizeBits >= 63 || s.Index>>uint(cfg.SizeBits) == 0
}

// why reports the reason an infeasible class was rejected.
func (s SizeClass) why(cfg config.Config) string {
	if !s.Addressable(cfg) {
		return fmt.Sprintf("tag %d does not fit %d size_bits", s.Index, cfg.SizeBits)
	}
	if r := s.Remaining(cfg); r < 0 {
		return fmt.Sprintf("needs %d info+offset bits, handle has %d", s.InfoBits+s.OffsetBits, cfg.HandleBits)
	}
	return fmt.Sprintf("%d indirection levels below minimum %d", s.IndirectionLevels, cfg.MinLevels)
}

func pow(base uint64, exp int) uint64 {
	result := uint64(1)
	for i := 0; i < exp; i++ {
		hi, lo := bits.Mul64(result, base)
		if hi != 0 {
			return math.MaxUint64
		}
		result = lo
	}
	return result
}

// Result is the planner's verdict for one class index.
type Result struct {
	Err    error
	Layout *BitLayout
	Class  SizeClass
}

// Feasible reports whether a layout was produced.
func (r Result) Feasible() bool {
	return r.Layout != nil
}

// Plan returns the bit layout for size class n, or an error matching
// errors.ErrInfeasible.
func Plan(cfg config.Config, n int) (*BitLayout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n < 0 || n >= cfg.NumClasses() {
		return nil, errors.OutOfBounds(errors.PhasePlan, []string{"class"}, n, cfg.NumClasses())
	}
	return plan(cfg, n)
}

func plan(cfg config.Config, n int) (*BitLayout, error) {
	sc := Classify(cfg, n)
	if !sc.Feasible {
		return nil, errors.Infeasible(n, sc.why(cfg))
	}
	return build(cfg, sc), nil
}

// PlanAll plans every class index in ascending order. Under
// config.StopAtFirstInfeasible, indices after the first infeasible one are
// reported infeasible without being computed.
func PlanAll(cfg config.Config) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.NumClasses()
	results := make([]Result, n)
	stopped := -1
	for i := 0; i < n; i++ {
		if stopped >= 0 {
			results[i] = Result{
				Class: SizeClass{Index: i, OffsetBits: i + config.OffsetBitsBase, InfoBits: cfg.InfoBits()},
				Err:   errors.Infeasible(i, fmt.Sprintf("enumeration stopped at class %d", stopped)),
			}
			continue
		}

		l, err := plan(cfg, i)
		results[i] = Result{Class: Classify(cfg, i), Layout: l, Err: err}
		if err != nil && cfg.Enumeration == config.StopAtFirstInfeasible {
			stopped = i
		}
	}
	return results, nil
}
