// Package errors provides structured error types for the handle translation
// library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The taxonomy mirrors the translation pipeline:
//
//   - KindInfeasible: a size class cannot be represented in the handle bit budget
//   - KindNotFound: a lookup-only walk reached an empty slot
//   - KindAllocation: a walk could not commit a new intermediate node
//   - KindUnsupported: a handle routed to a size class with no walker
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhasePlan, errors.KindInfeasible).
//		Path("class[40]").
//		Detail("needs %d bits, %d available", 71, 64).
//		Build()
//
// Sentinels carry only a Kind and match errors from any phase:
//
//	if errors.Is(err, herrors.ErrNotFound) { ... }
package errors
