// Package handletable generates size-class-specialized translation tables for
// 64-bit handles.
//
// A handle replaces a raw pointer. Its high bits carry a present flag, an
// arena tag and a size-class tag; its low bits are a byte offset inside the
// allocation; the bits between them form a path through a sparse radix tree
// whose leaf holds the translation for that handle. Each size class gets its
// own fan-out and depth, so small allocations and large ones share one handle
// space without paying for the same table shape.
//
// # Architecture Overview
//
//	handletable/        Generate and Compile: the configuration pipeline
//	├── config/         Generation-time constants, YAML loading
//	├── layout/         Per-class bit partition (LayoutPlanner)
//	├── walker/         Walk description and native lazy-allocating walker
//	├── dispatch/       Size tag to walker table
//	├── wasmgen/        Walkers emitted as a WebAssembly module, run by wazero
//	├── manifest/       CBOR description of a plan for handle producers
//	├── arena/          Handle arena: allocate, translate, pin, free
//	├── errors/         Structured error types
//	└── cmd/drill/      Layout inspection CLI
//
// # Quick Start
//
//	plan, err := handletable.Generate(config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	table, err := handletable.Compile[Mapping](plan)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	w, err := table.Route(handle)        // errors.ErrUnsupported for rejected classes
//	root := w.NewRoot()                  // caller owns the top-level node
//	m, err := w.Walk(handle, root, true) // allocates missing nodes
//
// # Bit Layout
//
// Fields run from the most significant bit down:
//
//	present(1) arena size_tag wasted level_{L-1} .. level_0 offset
//
// For level i the node index is
//
//	(handle >> (offset_bits + bits_per_level*i)) & (1<<bits_per_level - 1)
//
// # Thread Safety
//
// Generate and Compile are pure and may run concurrently for different
// configurations. Walkers are safe for concurrent use on a shared table;
// intermediate nodes are published with compare-and-swap and never freed.
// The wasm backend serializes calls into its module instance.
package handletable
