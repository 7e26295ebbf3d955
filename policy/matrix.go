package policy

import (
	"slices"

	"github.com/carverml/carver/analyzer"
	"github.com/carverml/carver/arch"
	"k8s.io/klog/v2"
)

// warpSplits are the candidate decompositions of a block tile into warps,
// (splits along axis 0) x (splits along axis 1), preferred order: more warps
// first, then taller splits.
var warpSplits = [][2]int{
	{4, 4}, {4, 2}, {2, 4}, {2, 2}, {2, 1}, {1, 2}, {1, 1},
}

// Matrix is the specialized policy for devices with hardware matrix units.
// It searches the same space as Default and additionally emits warp-level
// specialized variants of every candidate whose block tile decomposes evenly
// into warp tiles matching the unit's native operand shape. When the analyzed
// program admits no matrix-unit mapping, it degrades to the Default space
// rather than returning nothing.
type Matrix struct {
	search *search
	tags   *analyzer.Tags
}

// NewMatrix builds a Matrix policy from the analyzer tags of one program.
func NewMatrix(tags *analyzer.Tags, dev *arch.Device, limits SearchLimits) *Matrix {
	return &Matrix{search: newSearch(tags.Func(), dev, limits), tags: tags}
}

// EmitConfig implements the same contract as Default.EmitConfig.
//
// The base candidate space is always included, so specialization never
// regresses coverage relative to the Default policy.
func (p *Matrix) EmitConfig(topk int) ([]Hint, error) {
	candidates := p.search.enumerate()
	unit := p.tags.Unit()
	if unit == nil || len(p.search.spatial) != 2 {
		klog.V(1).Infof("policy: %s admits no matrix-unit mapping, searching the general space only",
			p.search.fn)
		return p.search.emit(candidates, topk)
	}

	specialized := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		warp, ok := p.warpTile(c.block, unit)
		if !ok {
			continue
		}
		sc := c
		sc.block = slices.Clone(c.block)
		sc.warp = warp
		sc.unit = unit
		specialized = append(specialized, sc)
	}
	return p.search.emit(append(candidates, specialized...), topk)
}

// warpTile picks the warp decomposition of a block tile: the first split in
// preference order whose warp tiles are exact multiples of the unit's native
// shape and whose thread count fits the device.
func (p *Matrix) warpTile(block []int, unit *arch.MatrixUnit) ([]int, bool) {
	for _, split := range warpSplits {
		if block[0]%split[0] != 0 || block[1]%split[1] != 0 {
			continue
		}
		warpM, warpN := block[0]/split[0], block[1]/split[1]
		if warpM%unit.M != 0 || warpN%unit.N != 0 {
			continue
		}
		if split[0]*split[1]*p.search.dev.WarpSize() > p.search.dev.MaxThreadsPerBlock() {
			continue
		}
		return []int{warpM, warpN}, true
	}
	return nil, false
}
