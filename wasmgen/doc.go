// Package wasmgen compiles a plan's walkers into a WebAssembly module.
//
// Emit writes a self-contained core module: the table lives in the module's
// own linear memory, nodes are carved from it by a bump allocator, and each
// supported size class exports drill_<n>(addr i64, top i32, allocate i32).
// A walker returns the address of its 8-byte leaf slot, or a status code
// below HeapBase.
//
// Load runs the module under wazero and exposes the exports behind the same
// dispatch table shape as the native walkers:
//
//	mod, err := wasmgen.Load(ctx, plan, nil)
//	defer mod.Close(ctx)
//
//	w, _ := mod.Dispatch().Route(handle)
//	root, _ := w.NewRoot(ctx)
//	slot, err := w.Walk(ctx, handle, root, true)
//	err = mod.WriteEntry(slot, base)
//
// # Thread Safety
//
// A wasm instance is single-threaded, so publication of new nodes inside the
// generated code is a plain store. Module serializes every call into the
// instance; walkers share that lock.
package wasmgen
