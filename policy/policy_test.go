package policy

import (
	"testing"

	"github.com/carverml/carver/analyzer"
	"github.com/carverml/carver/arch"
	"github.com/carverml/carver/program"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func sm80(t *testing.T) *arch.Device {
	t.Helper()
	return must.M1(arch.ByName("sm80"))
}

func gemm1024(t *testing.T) *program.Func {
	t.Helper()
	return program.MatMul(1024, 1024, 1024, dtypes.Float16, dtypes.Float32)
}

func requireFeasible(t *testing.T, hints []Hint, dev *arch.Device) {
	t.Helper()
	for _, h := range hints {
		require.LessOrEqual(t, h.SharedBytes, dev.SharedMemPerBlock(), "hint %s", h)
		require.LessOrEqual(t, h.Threads, dev.MaxThreadsPerBlock(), "hint %s", h)
		require.LessOrEqual(t, h.Regs, dev.RegistersPerThread(), "hint %s", h)
	}
}

func requireSorted(t *testing.T, hints []Hint) {
	t.Helper()
	for ii := 1; ii < len(hints); ii++ {
		require.LessOrEqual(t, Compare(hints[ii-1], hints[ii]), 0,
			"hints %d and %d out of order: %s vs %s", ii-1, ii, hints[ii-1], hints[ii])
	}
}

func TestDefaultEmitConfig(t *testing.T) {
	dev := sm80(t)
	p := NewDefault(gemm1024(t), dev, SearchLimits{})
	hints := must.M1(p.EmitConfig(10))
	require.Len(t, hints, 10)
	requireFeasible(t, hints, dev)
	requireSorted(t, hints)

	for _, h := range hints {
		require.Len(t, h.Block, 2)
		require.Len(t, h.Grid, 2)
		require.Nil(t, h.Warp)
		require.Contains(t, []int{2, 4, 8}, h.Vector) // fp16 operands, 4/8/16-byte transfers
		require.Equal(t, ceilDiv(1024, h.Block[0]), h.Grid[0])
		require.Positive(t, h.Score)
	}
}

func TestDefaultDeterministic(t *testing.T) {
	dev := sm80(t)
	fn := gemm1024(t)
	serial := must.M1(NewDefault(fn, dev, SearchLimits{MaxParallelism: 1}).EmitConfig(25))
	parallel := must.M1(NewDefault(fn, dev, SearchLimits{MaxParallelism: 8}).EmitConfig(25))
	again := must.M1(NewDefault(fn, dev, SearchLimits{MaxParallelism: 8}).EmitConfig(25))
	require.Equal(t, serial, parallel)
	require.Equal(t, parallel, again)
}

func TestDefaultTopKBounds(t *testing.T) {
	dev := sm80(t)
	p := NewDefault(gemm1024(t), dev, SearchLimits{})

	_, err := p.EmitConfig(0)
	require.True(t, errors.Is(err, ErrInvalidTopK))
	_, err = p.EmitConfig(-3)
	require.True(t, errors.Is(err, ErrInvalidTopK))

	all := must.M1(p.EmitConfig(1 << 20))
	require.NotEmpty(t, all)
	few := must.M1(p.EmitConfig(3))
	require.Len(t, few, 3)
	require.Equal(t, all[:3], few)
}

func TestShortReductionDegradesToSingleStage(t *testing.T) {
	// Reduction extent 3 is too small to pipeline; the single-stage hints
	// must still be produced.
	fn := program.MatMul(1024, 1024, 3, dtypes.Float32, dtypes.Float32)
	hints := must.M1(NewDefault(fn, sm80(t), SearchLimits{}).EmitConfig(10))
	require.NotEmpty(t, hints)
	for _, h := range hints {
		require.Equal(t, 1, h.Stages, "hint %s", h)
		require.Equal(t, 3, h.RTile, "hint %s", h)
	}
}

func TestSearchSpaceEmpty(t *testing.T) {
	cramped := arch.MustNew(arch.Spec{
		Name:                "cramped",
		NumSMs:              1,
		MaxThreadsPerBlock:  1024,
		SharedMemPerBlock:   1, // near-zero: no tile fits
		RegistersPerThread:  255,
		WarpSize:            32,
		MemoryBandwidthGBps: 1,
	})
	_, err := NewDefault(gemm1024(t), cramped, SearchLimits{}).EmitConfig(10)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSearchSpaceEmpty))
	require.Contains(t, err.Error(), "shared memory")
	require.Contains(t, err.Error(), "candidates considered")
}

func TestCandidateBudget(t *testing.T) {
	dev := sm80(t)
	limited := must.M1(NewDefault(gemm1024(t), dev, SearchLimits{MaxCandidates: 16}).EmitConfig(100))
	require.NotEmpty(t, limited)
	require.LessOrEqual(t, len(limited), 16)
	requireFeasible(t, limited, dev)
	requireSorted(t, limited)
}

func TestMatrixEmitConfig(t *testing.T) {
	dev := sm80(t)
	fn := gemm1024(t)
	tags := must.M1(analyzer.Analyze(fn, dev, false))
	require.NotNil(t, tags)
	require.NotNil(t, tags.Unit())

	hints := must.M1(NewMatrix(tags, dev, SearchLimits{}).EmitConfig(10))
	require.Len(t, hints, 10)
	requireFeasible(t, hints, dev)
	requireSorted(t, hints)

	// The matrix-unit bonus puts a specialized schedule on top.
	top := hints[0]
	require.NotNil(t, top.Warp)
	require.Len(t, top.Warp, 2)
	unit := tags.Unit()
	require.Zero(t, top.Warp[0]%unit.M)
	require.Zero(t, top.Warp[1]%unit.N)
	require.Zero(t, top.Block[0]%top.Warp[0])
	require.Zero(t, top.Block[1]%top.Warp[1])
	require.Zero(t, top.Threads%dev.WarpSize())
}

func TestMatrixNeverRegressesCoverage(t *testing.T) {
	dev := sm80(t)
	fn := gemm1024(t)
	tags := must.M1(analyzer.Analyze(fn, dev, false))

	const all = 1 << 20
	defaults := must.M1(NewDefault(fn, dev, SearchLimits{}).EmitConfig(all))
	specialized := must.M1(NewMatrix(tags, dev, SearchLimits{}).EmitConfig(all))
	require.GreaterOrEqual(t, len(specialized), len(defaults))
}

func TestMatrixDegradesWithoutUnit(t *testing.T) {
	// fp64 operands: tags exist, but the sm80 unit is not admitted. The
	// Matrix policy must fall back to default-equivalent candidates.
	dev := sm80(t)
	fn := program.MatMul(512, 512, 512, dtypes.Float64, dtypes.Float64)
	tags := must.M1(analyzer.Analyze(fn, dev, false))
	require.NotNil(t, tags)
	require.Nil(t, tags.Unit())

	fromMatrix := must.M1(NewMatrix(tags, dev, SearchLimits{}).EmitConfig(10))
	fromDefault := must.M1(NewDefault(fn, dev, SearchLimits{}).EmitConfig(10))
	require.Equal(t, fromDefault, fromMatrix)
}

func TestPolicyContract(t *testing.T) {
	dev := sm80(t)
	fn := gemm1024(t)
	tags := must.M1(analyzer.Analyze(fn, dev, false))

	for _, pol := range []Policy{
		NewDefault(fn, dev, SearchLimits{}),
		NewMatrix(tags, dev, SearchLimits{}),
	} {
		hints := must.M1(pol.EmitConfig(3))
		require.Len(t, hints, 3)
		requireFeasible(t, hints, dev)
		requireSorted(t, hints)
	}
}

func TestCompareTieBreaks(t *testing.T) {
	a := Hint{Score: 2, SharedBytes: 100, Threads: 128, Block: []int{64, 64}}
	b := Hint{Score: 1, SharedBytes: 1, Threads: 1, Block: []int{8, 8}}
	require.Negative(t, Compare(a, b)) // higher score wins

	b = Hint{Score: 2, SharedBytes: 200, Threads: 64, Block: []int{8, 8}}
	require.Negative(t, Compare(a, b)) // smaller shared memory wins the tie

	b = Hint{Score: 2, SharedBytes: 100, Threads: 256, Block: []int{8, 8}}
	require.Negative(t, Compare(a, b)) // then smaller thread groups

	b = Hint{Score: 2, SharedBytes: 100, Threads: 128, Block: []int{64, 128}}
	require.Negative(t, Compare(a, b)) // then lexicographic block order

	require.Zero(t, Compare(a, a))
}

func TestTileCandidates(t *testing.T) {
	require.Equal(t, []int{8, 16, 32, 64, 128, 256}, tileCandidates(1024))
	require.Equal(t, []int{8}, tileCandidates(8))
	require.Equal(t, []int{4}, tileCandidates(3))
	require.Equal(t, []int{8, 16, 32, 64}, rtileCandidates(1024))
	require.Equal(t, []int{3}, rtileCandidates(3))
	require.Equal(t, []int{2, 4, 8}, vectorCandidates(2))
	require.Equal(t, []int{1, 2, 4}, vectorCandidates(4))
}
