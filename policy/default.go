package policy

import (
	"github.com/carverml/carver/arch"
	"github.com/carverml/carver/program"
)

// Policy is the contract shared by the Default and Matrix variants. The
// facade picks the concrete variant once, from the analyzer's output.
type Policy interface {
	// EmitConfig returns the topk best-scored feasible Hints, sorted
	// best-first.
	EmitConfig(topk int) ([]Hint, error)
}

var (
	_ Policy = (*Default)(nil)
	_ Policy = (*Matrix)(nil)
)

// Default is the general-purpose policy: it searches factorizations of the
// raw iteration extents into block tiles, reduction tiles, pipeline depths
// and vector widths, with no specialized-unit assumptions.
type Default struct {
	search *search
}

// NewDefault builds a Default policy for one (program, device) pair.
// The policy is stateless across EmitConfig calls and safe for concurrent use.
func NewDefault(fn *program.Func, dev *arch.Device, limits SearchLimits) *Default {
	return &Default{search: newSearch(fn, dev, limits)}
}

// EmitConfig enumerates the constrained search space and returns the topk
// best-scored feasible Hints, sorted best-first.
//
// The returned error wraps ErrInvalidTopK when topk <= 0 and
// ErrSearchSpaceEmpty when no candidate fits the device capacities.
func (p *Default) EmitConfig(topk int) ([]Hint, error) {
	return p.search.emit(p.search.enumerate(), topk)
}
