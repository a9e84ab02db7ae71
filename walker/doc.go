// Package walker turns a size class's bit layout into a table walk.
//
// Generate produces a Spec: for each indirection level, top first, the shift
// and mask that extract that level's node index from a handle. New compiles a
// Spec into a Walker that descends a radix tree of Nodes:
//
//	spec, _ := walker.Generate(cfg, layout)
//	w := walker.New[Mapping](spec)
//	root := w.NewRoot()
//
//	entry, err := w.Walk(handle, root, true)  // allocates missing nodes
//	entry, err = w.Walk(handle, root, false) // lookup only, ErrNotFound on a gap
//
// Walks never block and cost one slot read per level. Nodes are published
// with compare-and-swap so concurrent walks agree on a single child per
// slot. Nodes are never freed.
package walker
