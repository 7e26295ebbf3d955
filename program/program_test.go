package program

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMatMul(t *testing.T) {
	fn := MatMul(1024, 512, 256, dtypes.Float16, dtypes.Float32)
	require.Equal(t, "matmul", fn.Name())
	require.Len(t, fn.Axes(), 3)
	require.Len(t, fn.SpatialAxes(), 2)
	require.Len(t, fn.ReduceAxes(), 1)
	require.Equal(t, Axis{Name: "k", Extent: 256, Kind: Reduce}, fn.ReduceAxes()[0])

	axis, found := fn.AxisByName("j")
	require.True(t, found)
	require.Equal(t, 512, axis.Extent)
	_, found = fn.AxisByName("z")
	require.False(t, found)

	require.Equal(t, "matmul[i:1024 j:512 k:256(reduce)]", fn.String())
}

func TestNewFuncPanicsOnMisuse(t *testing.T) {
	axes := []Axis{{Name: "i", Extent: 8, Kind: Spatial}}
	read := Access{Operand: "A", DType: dtypes.Float32, Axes: []string{"i"}}
	write := Access{Operand: "B", DType: dtypes.Float32, Axes: []string{"i"}}

	require.Panics(t, func() { NewFunc("", axes, []Access{read}, write) })
	require.Panics(t, func() { NewFunc("f", nil, []Access{read}, write) })
	require.Panics(t, func() {
		NewFunc("f", []Axis{{Name: "i", Extent: 0}}, []Access{read}, write)
	})
	require.Panics(t, func() {
		NewFunc("f", []Axis{{Name: "i", Extent: 8}, {Name: "i", Extent: 4}}, []Access{read}, write)
	})
	require.Panics(t, func() { NewFunc("f", axes, nil, write) })
	require.Panics(t, func() {
		NewFunc("f", axes, []Access{{DType: dtypes.Float32, Axes: []string{"i"}}}, write)
	})
}

func TestFuncImmutability(t *testing.T) {
	fn := MatMul(64, 64, 64, dtypes.Float32, dtypes.Float32)
	axes := fn.Axes()
	axes[0].Extent = 1
	require.Equal(t, 64, fn.Axes()[0].Extent)

	reads := fn.Reads()
	reads[0].Axes[0] = "mutated"
	require.Equal(t, "i", fn.Reads()[0].Axes[0])
}

func TestFingerprint(t *testing.T) {
	a := MatMul(1024, 1024, 1024, dtypes.Float16, dtypes.Float32)
	b := MatMul(1024, 1024, 1024, dtypes.Float16, dtypes.Float32)
	require.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := MatMul(1024, 1024, 512, dtypes.Float16, dtypes.Float32)
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d := MatMul(1024, 1024, 1024, dtypes.BFloat16, dtypes.Float32)
	require.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestModuleUniqueFunc(t *testing.T) {
	fn := MatMul(8, 8, 8, dtypes.Float32, dtypes.Float32)
	mod := NewModule(fn)
	require.Same(t, fn, must.M1(mod.UniqueFunc()))

	_, err := NewModule().UniqueFunc()
	require.True(t, errors.Is(err, ErrNoUniqueFunc))

	other := NewFunc("other", []Axis{{Name: "i", Extent: 4, Kind: Spatial}},
		[]Access{{Operand: "A", DType: dtypes.Float32, Axes: []string{"i"}}},
		Access{Operand: "B", DType: dtypes.Float32, Axes: []string{"i"}})
	_, err = NewModule(fn, other).UniqueFunc()
	require.True(t, errors.Is(err, ErrNoUniqueFunc))

	require.Panics(t, func() { NewModule(fn, fn) })
}

func TestAxisKindEnum(t *testing.T) {
	require.Equal(t, "Spatial", Spatial.String())
	require.Equal(t, "Reduce", Reduce.String())
	require.Equal(t, Reduce, must.M1(AxisKindString("reduce")))
	require.True(t, Spatial.IsAAxisKind())
	require.False(t, AxisKind(7).IsAAxisKind())
}
