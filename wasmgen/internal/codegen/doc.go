// Package codegen provides WASM bytecode emission for generated walkers.
//
// Emitter writes the instruction stream of one function body: control flow,
// locals, 64-bit loads and stores into the table, and the integer shifts and
// masks that extract level indexes from a handle. It does not validate stack
// shape; the module builder is responsible for balanced blocks.
//
// This package is internal to the wasm backend.
package codegen
