// Package program represents a tile-level tensor program: a loop nest over
// named axes with annotated operand accesses.
//
// Programs are produced by the surface DSL layer (out of scope here) and are
// immutable inputs to the analyzer and the schedule search. Constructors
// panic (with a stack trace, see github.com/gomlx/exceptions) on API misuse;
// structural inconsistencies that require analysis to detect are reported as
// errors by package analyzer instead.
package program

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// AxisKind distinguishes independent (spatial) axes from the contraction
// (reduce) axis of a loop nest.
type AxisKind int

//go:generate go tool enumer -type=AxisKind -output=gen_axiskind_enumer.go program.go

const (
	Spatial AxisKind = iota
	Reduce
)

// Axis is one named loop of the nest.
type Axis struct {
	Name   string
	Extent int
	Kind   AxisKind
}

func (a Axis) String() string {
	if a.Kind == Reduce {
		return fmt.Sprintf("%s:%d(reduce)", a.Name, a.Extent)
	}
	return fmt.Sprintf("%s:%d", a.Name, a.Extent)
}

// Access annotates how one operand is indexed by the loop nest: which axes
// appear in its index expression, in order, and its element dtype.
type Access struct {
	Operand string
	DType   dtypes.DType
	Axes    []string
}

func (a Access) String() string {
	return fmt.Sprintf("%s(%s)[%s]", a.Operand, a.DType, strings.Join(a.Axes, ", "))
}

// indexes returns whether the access indexes the given axis.
func (a Access) indexes(axis string) bool {
	return slices.Contains(a.Axes, axis)
}

// Func is one tensor program. It is immutable after construction.
type Func struct {
	name  string
	axes  []Axis
	reads []Access
	write Access
}

// NewFunc builds a Func from the loop axes, the read-operand accesses and the
// single write-operand access.
//
// It panics on malformed construction arguments: empty names, non-positive
// extents, duplicate axis names or no read operands.
func NewFunc(name string, axes []Axis, reads []Access, write Access) *Func {
	if name == "" {
		exceptions.Panicf("program.NewFunc: function name must not be empty")
	}
	if len(axes) == 0 {
		exceptions.Panicf("program.NewFunc(%q): at least one axis is required", name)
	}
	seen := make(map[string]bool, len(axes))
	for _, axis := range axes {
		if axis.Name == "" {
			exceptions.Panicf("program.NewFunc(%q): axis with empty name", name)
		}
		if axis.Extent <= 0 {
			exceptions.Panicf("program.NewFunc(%q): axis %q must have a positive extent, got %d",
				name, axis.Name, axis.Extent)
		}
		if seen[axis.Name] {
			exceptions.Panicf("program.NewFunc(%q): duplicate axis %q", name, axis.Name)
		}
		seen[axis.Name] = true
	}
	if len(reads) == 0 {
		exceptions.Panicf("program.NewFunc(%q): at least one read operand is required", name)
	}
	for _, access := range append(slices.Clone(reads), write) {
		if access.Operand == "" {
			exceptions.Panicf("program.NewFunc(%q): operand with empty name", name)
		}
	}
	return &Func{
		name:  name,
		axes:  slices.Clone(axes),
		reads: cloneAccesses(reads),
		write: cloneAccess(write),
	}
}

func cloneAccess(a Access) Access {
	a.Axes = slices.Clone(a.Axes)
	return a
}

func cloneAccesses(accesses []Access) []Access {
	out := make([]Access, len(accesses))
	for ii, a := range accesses {
		out[ii] = cloneAccess(a)
	}
	return out
}

// Name returns the function name.
func (f *Func) Name() string { return f.name }

// Axes returns a copy of the loop axes, outermost first.
func (f *Func) Axes() []Axis { return slices.Clone(f.axes) }

// Reads returns a copy of the read-operand accesses.
func (f *Func) Reads() []Access { return cloneAccesses(f.reads) }

// Write returns a copy of the write-operand access.
func (f *Func) Write() Access { return cloneAccess(f.write) }

// AxisByName looks up a declared axis.
func (f *Func) AxisByName(name string) (Axis, bool) {
	for _, axis := range f.axes {
		if axis.Name == name {
			return axis, true
		}
	}
	return Axis{}, false
}

// SpatialAxes returns the declared spatial axes, in declaration order.
func (f *Func) SpatialAxes() []Axis {
	return f.axesOfKind(Spatial)
}

// ReduceAxes returns the declared reduce axes, in declaration order.
func (f *Func) ReduceAxes() []Axis {
	return f.axesOfKind(Reduce)
}

func (f *Func) axesOfKind(kind AxisKind) []Axis {
	var out []Axis
	for _, axis := range f.axes {
		if axis.Kind == kind {
			out = append(out, axis)
		}
	}
	return out
}

// String implements fmt.Stringer, pretty-printing the loop nest signature.
func (f *Func) String() string {
	parts := make([]string, 0, len(f.axes))
	for _, axis := range f.axes {
		parts = append(parts, axis.String())
	}
	return fmt.Sprintf("%s[%s]", f.name, strings.Join(parts, " "))
}

// Fingerprint returns a stable structural identifier of the program, usable
// as (part of) a memoization key by callers that cache search results.
// Two Funcs with the same axes, accesses and dtypes share a fingerprint even
// if built separately.
func (f *Func) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(f.name)
	for _, axis := range f.axes {
		fmt.Fprintf(&sb, "|%s=%d:%s", axis.Name, axis.Extent, axis.Kind)
	}
	for _, read := range f.reads {
		fmt.Fprintf(&sb, "|r:%s", read)
	}
	fmt.Fprintf(&sb, "|w:%s", f.write)
	return sb.String()
}

// MatMul builds the canonical blocked-contraction program
// C[i, j] = sum over k of A[i, k] * B[k, j], with read operands of dtype in
// and the write operand of dtype accum.
func MatMul(m, n, k int, in, accum dtypes.DType) *Func {
	return NewFunc("matmul",
		[]Axis{
			{Name: "i", Extent: m, Kind: Spatial},
			{Name: "j", Extent: n, Kind: Spatial},
			{Name: "k", Extent: k, Kind: Reduce},
		},
		[]Access{
			{Operand: "A", DType: in, Axes: []string{"i", "k"}},
			{Operand: "B", DType: in, Axes: []string{"k", "j"}},
		},
		Access{Operand: "C", DType: accum, Axes: []string{"i", "j"}},
	)
}

// ErrNoUniqueFunc is wrapped by Module.UniqueFunc when the module does not
// hold exactly one function.
var ErrNoUniqueFunc = errors.New("module does not hold exactly one function")

// Module is a named collection of Funcs, the container form in which the DSL
// layer hands programs over.
type Module struct {
	funcs []*Func
}

// NewModule builds a Module. It panics if two functions share a name.
func NewModule(funcs ...*Func) *Module {
	seen := make(map[string]bool, len(funcs))
	for _, fn := range funcs {
		if seen[fn.Name()] {
			exceptions.Panicf("program.NewModule: duplicate function %q", fn.Name())
		}
		seen[fn.Name()] = true
	}
	return &Module{funcs: slices.Clone(funcs)}
}

// Funcs returns a copy of the module's functions, in insertion order.
func (m *Module) Funcs() []*Func { return slices.Clone(m.funcs) }

// UniqueFunc returns the module's single function.
// The returned error wraps ErrNoUniqueFunc when the module holds zero
// functions or more than one (ambiguous entry point).
func (m *Module) UniqueFunc() (*Func, error) {
	if len(m.funcs) != 1 {
		return nil, errors.Wrapf(ErrNoUniqueFunc, "module holds %d functions", len(m.funcs))
	}
	return m.funcs[0], nil
}
