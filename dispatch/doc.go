// Package dispatch routes a handle to the walker of its size class.
//
// A Table has one entry per value of the size-tag field, size_base^size_bits
// in total. Classes the planner rejected keep an explicit unsupported entry
// rather than being dropped, so lookup is a direct index:
//
//	table, err := dispatch.Build(cfg, classes)
//	w, err := table.Route(handle) // errors.ErrUnsupported for rejected classes
//
// Table is generic over the walker representation, so the same builder serves
// native walkers, generated specs and wasm exports.
package dispatch
