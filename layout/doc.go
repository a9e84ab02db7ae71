// Package layout decides how a handle's bits are split for each size class.
//
// A size class n reserves n+6 low bits for the byte offset inside an
// allocation. The top of the handle carries a present flag, the arena tag
// and the size tag. What is left is cut into indirection levels of
// bits_per_level bits each, capped at max_levels; the remainder is wasted.
//
//	FAAASSSSS___222222222111111111000000000.........................
//
// Above: class 19 of the default configuration. F is the present flag, A the
// arena tag, S the size tag, _ wasted bits, digits the level indexes and dots
// the offset.
//
// Plan computes one class, PlanAll the whole index space. Both are pure.
package layout
