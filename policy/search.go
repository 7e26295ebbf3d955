package policy

import (
	"math"
	"slices"

	"github.com/carverml/carver/arch"
	"github.com/carverml/carver/program"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrInvalidTopK is wrapped by EmitConfig when topk is not positive.
var ErrInvalidTopK = errors.New("topk must be positive")

// ErrSearchSpaceEmpty is wrapped by EmitConfig when no candidate schedule
// fits the device capacities. It is fatal for the (program, device) pair:
// the engine performs no implicit retry.
var ErrSearchSpaceEmpty = errors.New("no feasible schedule in the search space")

// SearchLimits optionally bounds one search.
type SearchLimits struct {
	// MaxParallelism caps the number of concurrent scoring workers.
	// 0 uses one worker per CPU; 1 disables parallelism.
	MaxParallelism int

	// MaxCandidates bounds how many candidates are enumerated and scored.
	// 0 is unlimited. When the bound truncates the space, the best hints
	// found so far are returned, provided at least one was feasible.
	MaxCandidates int
}

// pipelineStages is the candidate set for the software-pipelining depth; the
// actual choices degrade to what the reduction extent can sustain.
var pipelineStages = []int{1, 2, 3, 4}

// microTileElems is the number of output elements one thread accumulates in
// the general (non matrix-unit) mapping.
const microTileElems = 16

// candidate is one unscored point of the search space.
type candidate struct {
	block  []int
	rtile  int
	stages int
	vector int

	// warp and unit are set only for matrix-unit-specialized candidates.
	warp []int
	unit *arch.MatrixUnit
}

// search holds the per-call, read-only state shared by the enumeration and
// scoring steps of both policies.
type search struct {
	fn     *program.Func
	dev    *arch.Device
	limits SearchLimits

	spatial      []program.Axis
	reduceExtent int
	elemIn       int // bytes of the widest read operand element
	elemAcc      int // bytes of the write operand element
}

func newSearch(fn *program.Func, dev *arch.Device, limits SearchLimits) *search {
	s := &search{fn: fn, dev: dev, limits: limits, spatial: fn.SpatialAxes()}
	s.reduceExtent = 1
	for _, axis := range fn.ReduceAxes() {
		s.reduceExtent *= axis.Extent
	}
	s.elemIn = 1
	for _, read := range fn.Reads() {
		s.elemIn = max(s.elemIn, int(read.DType.Memory()))
	}
	s.elemAcc = int(fn.Write().DType.Memory())
	return s
}

// tileCandidates returns the power-of-two block tiles considered for one
// spatial axis of the given extent.
func tileCandidates(extent int) []int {
	var out []int
	for t := 8; t <= 256; t *= 2 {
		if t >= 2*extent {
			break
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, ceilPow2(extent))
	}
	return out
}

// rtileCandidates returns the reduction-tile candidates: power-of-two tiles
// when the reduction is long enough, otherwise the full (tiny) extent.
func rtileCandidates(reduceExtent int) []int {
	var out []int
	for t := 8; t <= 64; t *= 2 {
		if t >= 2*reduceExtent {
			break
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, reduceExtent)
	}
	return out
}

// vectorCandidates returns the per-transfer element counts whose byte width
// matches a supported transfer size (4, 8 or 16 bytes).
func vectorCandidates(elemBytes int) []int {
	var out []int
	for _, width := range []int{4, 8, 16} {
		if width%elemBytes == 0 {
			out = append(out, width/elemBytes)
		}
	}
	if len(out) == 0 {
		out = append(out, 1)
	}
	return out
}

// enumerate produces the general (policy-independent) candidate space, in a
// deterministic order, honoring the MaxCandidates budget.
func (s *search) enumerate() []candidate {
	tiles := make([][]int, len(s.spatial))
	for ii, axis := range s.spatial {
		tiles[ii] = tileCandidates(axis.Extent)
	}
	rtiles := rtileCandidates(s.reduceExtent)
	vectors := vectorCandidates(s.elemIn)

	var out []candidate
	budget := s.limits.MaxCandidates
	block := make([]int, len(s.spatial))
	var walk func(axis int) bool
	walk = func(axis int) bool {
		if axis == len(block) {
			for _, rtile := range rtiles {
				maxStages := max(1, ceilDiv(s.reduceExtent, rtile))
				for _, stages := range pipelineStages {
					if stages > maxStages {
						break
					}
					for _, vector := range vectors {
						if budget > 0 && len(out) >= budget {
							return false
						}
						out = append(out, candidate{
							block:  slices.Clone(block),
							rtile:  rtile,
							stages: stages,
							vector: vector,
						})
					}
				}
			}
			return true
		}
		for _, tile := range tiles[axis] {
			block[axis] = tile
			if !walk(axis + 1) {
				return false
			}
		}
		return true
	}
	walk(0)
	return out
}

// resources is the computed footprint of one candidate.
type resources struct {
	threads     int
	sharedBytes int
	regs        int
}

func (s *search) resourcesOf(c candidate) resources {
	var r resources
	if c.warp != nil {
		warps := 1
		for ii, w := range c.warp {
			warps *= c.block[ii] / w
		}
		r.threads = warps * s.dev.WarpSize()
	} else {
		blockElems := product(c.block)
		r.threads = roundUp(ceilDiv(blockElems, microTileElems), s.dev.WarpSize())
	}

	perStage := 0
	for _, read := range s.fn.Reads() {
		perStage += s.tileBytes(read, c)
	}
	r.sharedBytes = c.stages * perStage

	accElems := ceilDiv(product(c.block), max(1, r.threads))
	r.regs = accElems*regWords(s.elemAcc) + 2*c.vector*regWords(s.elemIn) + 16
	return r
}

// tileBytes is the shared-memory footprint of one operand tile for one
// pipeline stage: spatial axes contribute their block tile, reduce axes the
// reduction tile.
func (s *search) tileBytes(access program.Access, c candidate) int {
	elems := 1
	for _, name := range access.Axes {
		axis, _ := s.fn.AxisByName(name)
		switch axis.Kind {
		case program.Reduce:
			elems *= min(c.rtile, axis.Extent)
		default:
			elems *= c.block[s.spatialIndex(name)]
		}
	}
	return elems * int(access.DType.Memory())
}

func (s *search) spatialIndex(name string) int {
	for ii, axis := range s.spatial {
		if axis.Name == name {
			return ii
		}
	}
	return 0
}

// Cost-model weights. Any monotone combination of occupancy, reuse and
// overlap preserves the ranking contract; these values only set the relative
// emphasis between the terms.
const (
	occupancyWeight = 4.0
	overlapWeight   = 2.0
	vectorWeight    = 0.25
	matrixBonus     = 2.0
	fedBonus        = 1.0
)

// score combines estimated occupancy, arithmetic intensity (useful compute
// per byte of global traffic) and pipeline-overlap benefit. Higher is better;
// the model preserves relative order, it does not predict runtime.
func (s *search) score(c candidate, r resources) float64 {
	occupancy := math.Min(1, float64(r.threads)/float64(s.dev.MaxThreadsPerBlock()))

	perStageBytes := 0
	for _, read := range s.fn.Reads() {
		perStageBytes += s.tileBytes(read, c)
	}
	compute := float64(product(c.block)) * float64(min(c.rtile, s.reduceExtent))
	intensity := compute / float64(max(1, perStageBytes))

	overlap := 1 - 1/float64(c.stages)
	vec := math.Log2(float64(c.vector*s.elemIn)) / 4

	total := occupancyWeight*occupancy + math.Log2(1+intensity) +
		overlapWeight*overlap + vectorWeight*vec
	if c.unit != nil {
		total += matrixBonus
		if s.continuouslyFed(c) {
			total += fedBonus
		}
	}
	return total
}

// continuouslyFed reports whether the matrix unit never sees a fractional
// warp tile: the reduction tile is an exact multiple of the unit depth and
// every output extent partitions evenly into its block tile.
func (s *search) continuouslyFed(c candidate) bool {
	if c.rtile%c.unit.K != 0 {
		return false
	}
	for ii, axis := range s.spatial {
		if axis.Extent%c.block[ii] != 0 {
			return false
		}
	}
	return true
}

// emit scores candidates (in parallel), filters the feasible ones, ranks and
// truncates to topk.
func (s *search) emit(candidates []candidate, topk int) ([]Hint, error) {
	if topk <= 0 {
		return nil, errors.Wrapf(ErrInvalidTopK, "got topk=%d", topk)
	}

	type scored struct {
		hint     Hint
		feasible bool
		blocked  int // index into blockedBy counters
	}
	const (
		bySharedMem = iota
		byThreads
		byRegisters
	)
	results := make([]scored, len(candidates))
	pool := newWorkersPool(s.limits.MaxParallelism)
	pool.partition(len(candidates), func(start, end int) {
		for ii := start; ii < end; ii++ {
			c := candidates[ii]
			r := s.resourcesOf(c)
			switch {
			case r.sharedBytes > s.dev.SharedMemPerBlock():
				results[ii] = scored{blocked: bySharedMem}
			case r.threads > s.dev.MaxThreadsPerBlock():
				results[ii] = scored{blocked: byThreads}
			case r.regs > s.dev.RegistersPerThread():
				results[ii] = scored{blocked: byRegisters}
			default:
				results[ii] = scored{feasible: true, hint: s.hintOf(c, r)}
			}
		}
	})

	hints := make([]Hint, 0, len(results))
	var blockedBy [3]int
	for _, res := range results {
		if res.feasible {
			hints = append(hints, res.hint)
		} else {
			blockedBy[res.blocked]++
		}
	}
	if len(hints) == 0 {
		return nil, errors.Wrapf(ErrSearchSpaceEmpty,
			"%s on %s: %d candidates considered, blocked by shared memory (%d bytes/block) %d times, "+
				"by threads (max %d) %d times, by registers (max %d/thread) %d times",
			s.fn, s.dev.Name(), len(candidates),
			s.dev.SharedMemPerBlock(), blockedBy[bySharedMem],
			s.dev.MaxThreadsPerBlock(), blockedBy[byThreads],
			s.dev.RegistersPerThread(), blockedBy[byRegisters])
	}

	slices.SortFunc(hints, Compare)
	if len(hints) > topk {
		hints = hints[:topk]
	}
	hints = slices.Clip(hints)
	klog.V(1).Infof("policy: %s on %s: %d/%d candidates feasible, emitting top %d",
		s.fn, s.dev.Name(), len(results)-blockedBy[0]-blockedBy[1]-blockedBy[2],
		len(candidates), len(hints))
	return hints, nil
}

func (s *search) hintOf(c candidate, r resources) Hint {
	h := Hint{
		Block:       slices.Clone(c.block),
		Grid:        make([]int, len(c.block)),
		RTile:       c.rtile,
		Stages:      c.stages,
		Threads:     r.threads,
		Warp:        slices.Clone(c.warp),
		Vector:      c.vector,
		SharedBytes: r.sharedBytes,
		Regs:        r.regs,
	}
	for ii, axis := range s.spatial {
		h.Grid[ii] = ceilDiv(axis.Extent, c.block[ii])
	}
	if c.unit != nil && c.vector*s.elemIn == 16 {
		h.Swizzle = &Swizzle{Bytes: 16}
	}
	h.Score = s.score(c, r)
	return h
}
