// Package manifest records a plan as deterministic CBOR.
//
// Code that composes handles lives outside this module and must honor each
// class's field order and widths. A manifest carries the generating
// configuration, every class verdict with its fields and level shifts, and a
// build id derived from the configuration. Verify re-plans the configuration
// and rejects a manifest whose recorded layouts have drifted.
package manifest
