// Package analyzer classifies a tensor program's loop nest and detects
// whether it matches the blocked-contraction pattern (a matrix-multiply-like
// reduction) eligible for the specialized schedule-search path.
//
// A pattern mismatch is a normal, tag-less outcome -- Analyze returns
// (nil, nil) and the caller falls back to the general search path. Errors are
// reserved for genuinely malformed programs.
package analyzer

import (
	"slices"

	"github.com/carverml/carver/arch"
	"github.com/carverml/carver/program"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrMalformedFunc is wrapped by Analyze when the program structure is
// inconsistent -- an access references an undeclared axis, or a reduce axis
// indexes the write operand.
var ErrMalformedFunc = errors.New("malformed tensor program")

// Tags describe one analyzed program that matched the blocked-contraction
// pattern. Tags are derived data: recomputed per Analyze call and never
// mutated afterwards.
type Tags struct {
	spatial    []program.Axis
	reduce     program.Axis
	inDType    dtypes.DType
	accumDType dtypes.DType
	matched    *program.Func
	gemv       bool
	unit       *arch.MatrixUnit
}

// Spatial returns the independent output axes, in write-operand order.
func (t *Tags) Spatial() []program.Axis { return slices.Clone(t.spatial) }

// Reduce returns the contraction axis.
func (t *Tags) Reduce() program.Axis { return t.reduce }

// InDType returns the element dtype of the read operands.
func (t *Tags) InDType() dtypes.DType { return t.inDType }

// AccumDType returns the element dtype of the write operand.
func (t *Tags) AccumDType() dtypes.DType { return t.accumDType }

// Func returns the normalized sub-program restricted to the matched pattern.
func (t *Tags) Func() *program.Func { return t.matched }

// Gemv reports whether the match is the degenerate matrix-vector-like shape
// (one read operand carries no spatial axis).
func (t *Tags) Gemv() bool { return t.gemv }

// Unit returns the device matrix unit admitted for this program, or nil when
// the program does not admit a specialized mapping on the analyzed device
// (unsupported dtype, reduction shorter than the unit, or a gemv shape).
func (t *Tags) Unit() *arch.MatrixUnit { return t.unit }

// Analyze walks fn's loop nest and returns Tags when it matches the blocked
// contraction pattern, or (nil, nil) when it does not. allowGemv additionally
// admits the degenerate matrix-vector-like shape.
//
// Analysis is read-only and deterministic. The returned error wraps
// ErrMalformedFunc only for structurally inconsistent programs.
func Analyze(fn *program.Func, dev *arch.Device, allowGemv bool) (*Tags, error) {
	if fn == nil {
		return nil, errors.Wrap(ErrMalformedFunc, "nil function")
	}

	// Structural consistency first: these are hard errors.
	accesses := append(fn.Reads(), fn.Write())
	for _, access := range accesses {
		for _, name := range access.Axes {
			if _, found := fn.AxisByName(name); !found {
				return nil, errors.Wrapf(ErrMalformedFunc,
					"%s: operand %q references undeclared axis %q", fn.Name(), access.Operand, name)
			}
		}
	}
	write := fn.Write()
	for _, reduce := range fn.ReduceAxes() {
		if slices.Contains(write.Axes, reduce.Name) {
			return nil, errors.Wrapf(ErrMalformedFunc,
				"%s: reduce axis %q indexes the write operand %q", fn.Name(), reduce.Name, write.Operand)
		}
	}

	// Everything below is pattern matching: failures mean "use the general
	// search path", not errors.
	reduceAxes := fn.ReduceAxes()
	if len(reduceAxes) != 1 {
		klog.V(2).Infof("analyzer: %s has %d reduce axes, no specialized match", fn, len(reduceAxes))
		return nil, nil
	}
	reduce := reduceAxes[0]
	reads := fn.Reads()
	if len(reads) != 2 {
		klog.V(2).Infof("analyzer: %s has %d read operands, no specialized match", fn, len(reads))
		return nil, nil
	}
	var readers int
	for _, read := range reads {
		if slices.Contains(read.Axes, reduce.Name) {
			readers++
		}
	}
	if readers < 2 {
		// A valid reduction (row-sum style), just not a contraction.
		klog.V(2).Infof("analyzer: %s reduce axis %q is read by %d operand(s), no specialized match",
			fn, reduce.Name, readers)
		return nil, nil
	}
	if reads[0].DType != reads[1].DType {
		klog.V(2).Infof("analyzer: %s mixes read dtypes %s and %s, no specialized match",
			fn, reads[0].DType, reads[1].DType)
		return nil, nil
	}

	spatialOf := func(access program.Access) []string {
		var out []string
		for _, name := range access.Axes {
			if name != reduce.Name {
				out = append(out, name)
			}
		}
		return out
	}
	left, right := spatialOf(reads[0]), spatialOf(reads[1])
	if !coversDisjoint(write.Axes, left, right) {
		return nil, nil
	}

	gemv := len(left) == 0 || len(right) == 0
	if gemv && !allowGemv {
		klog.V(2).Infof("analyzer: %s is a gemv-like shape and the fallback pattern is not allowed", fn)
		return nil, nil
	}
	if !gemv && len(write.Axes) < 2 {
		return nil, nil
	}

	tags := &Tags{
		reduce:     reduce,
		inDType:    reads[0].DType,
		accumDType: write.DType,
		matched:    fn,
		gemv:       gemv,
	}
	for _, name := range write.Axes {
		axis, _ := fn.AxisByName(name)
		tags.spatial = append(tags.spatial, axis)
	}
	if unit := dev.MatrixUnit(); unit != nil && !gemv &&
		unit.Supports(tags.inDType) && reduce.Extent >= unit.K {
		tags.unit = unit
	}
	return tags, nil
}

// coversDisjoint reports whether left and right are disjoint, non-overlapping
// partitions of the write axes.
func coversDisjoint(write, left, right []string) bool {
	if len(left)+len(right) != len(write) {
		return false
	}
	seen := make(map[string]bool, len(write))
	for _, name := range write {
		seen[name] = true
	}
	for _, name := range append(slices.Clone(left), right...) {
		if !seen[name] {
			return false
		}
		delete(seen, name)
	}
	return len(seen) == 0
}
