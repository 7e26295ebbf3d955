// Package policy implements the constrained schedule search: it enumerates
// candidate execution plans for an analyzed tensor program, checks them
// against the device capabilities, scores them with an analytic cost model
// and returns the top-K ranked Hints.
//
// Two policies share the same contract: Default searches the general tiling
// space from the program's raw iteration extents; Matrix additionally
// searches warp-level parameters for devices with specialized matrix units.
// The facade (package carver) selects one of the two based on the analyzer
// tags -- there is no runtime subtype substitution.
package policy

import (
	"cmp"
	"fmt"
	"slices"
)

// Swizzle describes an optional shared-memory layout transform: tile rows are
// XOR-permuted in chunks of Bytes-wide vectors so that warp-wide fragment
// loads hit distinct banks.
type Swizzle struct {
	Bytes int
}

// Hint is one fully specified candidate schedule plus its predicted score.
// Hints are pure values produced by a policy and never mutated afterwards.
type Hint struct {
	// Block holds the block-tile extent along each output axis, in tag order.
	Block []int

	// Grid holds the thread-group count along each output axis: the ceiling
	// division of the axis extent by the block tile, so remainder tiles are
	// guarded rather than dropped.
	Grid []int

	// RTile is the reduction-tile extent.
	RTile int

	// Stages is the software-pipelining depth over the reduction loop.
	Stages int

	// Threads is the thread-group size.
	Threads int

	// Warp holds the warp-tile extents along each output axis when the
	// schedule maps onto the device matrix unit; nil otherwise.
	Warp []int

	// Vector is the vectorization width of memory transfers, in elements.
	Vector int

	// Swizzle is the shared-memory layout descriptor, or nil for the plain
	// row-major layout.
	Swizzle *Swizzle

	// SharedBytes and Regs are the computed resource footprint: shared memory
	// per thread group and registers per thread.
	SharedBytes int
	Regs        int

	// Score is the predicted quality; higher is better. Scores order
	// candidates relative to each other, they are not runtime predictions.
	Score float64
}

func (h Hint) String() string {
	s := fmt.Sprintf("block=%v rtile=%d stages=%d threads=%d vector=%d shared=%dB score=%.3f",
		h.Block, h.RTile, h.Stages, h.Threads, h.Vector, h.SharedBytes, h.Score)
	if h.Warp != nil {
		s += fmt.Sprintf(" warp=%v", h.Warp)
	}
	return s
}

// Compare orders hints best-first: by descending score, then -- to keep
// ranking reproducible -- by smaller shared-memory footprint, smaller
// thread-group size, lexicographically smaller block-tile tuple, and finally
// by the remaining schedule parameters.
func Compare(a, b Hint) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.SharedBytes, b.SharedBytes); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Threads, b.Threads); c != 0 {
		return c
	}
	if c := slices.Compare(a.Block, b.Block); c != 0 {
		return c
	}
	if c := cmp.Compare(a.RTile, b.RTile); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Stages, b.Stages); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Vector, b.Vector); c != 0 {
		return c
	}
	return slices.Compare(a.Warp, b.Warp)
}
