package handletable

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/dispatch"
	"github.com/wippyai/handletable/errors"
	"github.com/wippyai/handletable/layout"
	"github.com/wippyai/handletable/walker"
)

// Plan is the output of one generation run: every class verdict, a walk
// description per feasible class and the dispatch table over them.
// A Plan is immutable.
type Plan struct {
	Config   config.Config
	Classes  []layout.Result
	Specs    []*walker.Spec // indexed by class, nil when infeasible
	Dispatch *dispatch.Table[*walker.Spec]
}

// Generate runs planner, generator and dispatch builder over cfg.
// Infeasible classes become unsupported dispatch entries; only an invalid
// configuration fails the run.
func Generate(cfg config.Config) (*Plan, error) {
	results, err := layout.PlanAll(cfg)
	if err != nil {
		return nil, err
	}

	log := Logger()
	p := &Plan{
		Config:  cfg,
		Classes: results,
		Specs:   make([]*walker.Spec, len(results)),
	}

	entries := make([]dispatch.Class[*walker.Spec], 0, len(results))
	for _, r := range results {
		if !r.Feasible() {
			log.Debug("size class unsupported",
				zap.Int("class", r.Class.Index),
				zap.Error(r.Err))
			entries = append(entries, dispatch.Class[*walker.Spec]{Index: r.Class.Index})
			continue
		}

		s, err := walker.Generate(cfg, r.Layout)
		if err != nil {
			return nil, fmt.Errorf("generate class %d: %w", r.Class.Index, err)
		}
		p.Specs[r.Class.Index] = s
		entries = append(entries, dispatch.Class[*walker.Spec]{
			Index:    r.Class.Index,
			Walker:   s,
			Feasible: true,
		})
	}

	if p.Dispatch, err = dispatch.Build(cfg, entries); err != nil {
		return nil, err
	}

	log.Debug("plan generated",
		zap.Int("classes", len(results)),
		zap.Int("supported", p.Dispatch.Supported()),
		zap.Int("bits_per_level", cfg.BitsPerLevel),
		zap.Int("max_levels", cfg.MaxLevels))
	return p, nil
}

// Feasible returns the walk descriptions of supported classes in index order.
func (p *Plan) Feasible() []*walker.Spec {
	out := make([]*walker.Spec, 0, len(p.Specs))
	for _, s := range p.Specs {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Spec returns the walk description for class n.
func (p *Plan) Spec(n int) (*walker.Spec, error) {
	return p.Dispatch.Lookup(n)
}

// ClassFor returns the smallest supported class whose size holds size bytes.
func (p *Plan) ClassFor(size uint64) (*walker.Spec, error) {
	for _, s := range p.Specs {
		if s != nil && s.Class.Size >= size {
			return s, nil
		}
	}
	return nil, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
		Value(size).
		Detail("no supported size class holds %d bytes", size).
		Build()
}

// Compile turns every walk description of p into a native walker and
// returns them behind a dispatch table with the same shape as p.Dispatch.
// Options apply to each walker, so walker.WithAllocator shares one node
// budget across classes.
func Compile[E any](p *Plan, opts ...walker.Option) (*dispatch.Table[*walker.Walker[E]], error) {
	entries := make([]dispatch.Class[*walker.Walker[E]], 0, len(p.Specs))
	for i, s := range p.Specs {
		if s == nil {
			continue
		}
		entries = append(entries, dispatch.Class[*walker.Walker[E]]{
			Index:    i,
			Walker:   walker.New[E](s, opts...),
			Feasible: true,
		})
	}
	return dispatch.Build(p.Config, entries)
}
