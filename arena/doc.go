// Package arena issues and translates handles for one arena id.
//
// An Arena compiles a native walker per supported size class and keeps one
// top-level node for each. Allocate picks the smallest class that holds the
// requested size, assigns the next free slot of that class and returns a
// handle whose offset field is zero:
//
//	a, err := arena.New(1, plan)
//	h, m, err := a.Allocate(100)
//	m.Base = addr
//	p, err := a.Pin(h + 12) // addr + 12
//	defer a.Unpin(h)
//
// Translate walks the table for any handle of the arena, consulting a small
// direct-mapped TLB first. Leaf slots never move, so cached translations
// stay valid across Free and reuse.
package arena
