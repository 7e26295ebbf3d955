// Package carver searches for good execution schedules ("hints") for
// tile-level tensor programs: given an analyzed program and a device
// capability model it enumerates, constrains and scores candidate tile
// sizes, pipelining depths, thread bindings and memory-layout transforms,
// and returns a small ranked set for the lowering pipeline to consume.
//
// RollerHints is the only entry point external collaborators call; the
// analyzer and policies it orchestrates live in the sub-packages analyzer,
// policy, program and arch.
package carver

import (
	"github.com/carverml/carver/analyzer"
	"github.com/carverml/carver/arch"
	"github.com/carverml/carver/policy"
	"github.com/carverml/carver/program"
	"k8s.io/klog/v2"
)

// DefaultTopK is the number of hints returned when HintOptions.TopK is zero.
const DefaultTopK = 10

// HintOptions configures one schedule search.
type HintOptions struct {
	// TopK is the maximum number of hints returned. 0 means DefaultTopK;
	// negative values are an input error.
	TopK int

	// MatrixOnly restricts the search to programs eligible for the
	// matrix-unit path: when the analyzer produces no tags the search
	// returns (nil, nil), a "not applicable" outcome rather than an error.
	MatrixOnly bool

	// AllowGemv additionally admits the degenerate matrix-vector-like
	// reduction shape to the specialized path.
	AllowGemv bool

	// Limits optionally bounds the search; see policy.SearchLimits.
	Limits policy.SearchLimits
}

// RollerHints analyzes fn, selects the Default or Matrix policy accordingly
// and returns its ranked hints.
//
// Errors from the analyzer and the selected policy are propagated verbatim:
// test with errors.Is against analyzer.ErrMalformedFunc,
// policy.ErrInvalidTopK and policy.ErrSearchSpaceEmpty.
func RollerHints(fn *program.Func, dev *arch.Device, opts HintOptions) ([]policy.Hint, error) {
	topk := opts.TopK
	if topk == 0 {
		topk = DefaultTopK
	}
	tags, err := analyzer.Analyze(fn, dev, opts.AllowGemv)
	if err != nil {
		return nil, err
	}
	var pol policy.Policy
	if tags == nil {
		if opts.MatrixOnly {
			klog.V(1).Infof("carver: %s does not match the specialized pattern, not applicable", fn)
			return nil, nil
		}
		pol = policy.NewDefault(fn, dev, opts.Limits)
	} else {
		pol = policy.NewMatrix(tags, dev, opts.Limits)
	}
	return pol.EmitConfig(topk)
}

// RollerHintsFromModule resolves the module's single function and searches
// it. A module holding zero or several functions is an ambiguous entry point:
// the returned error wraps program.ErrNoUniqueFunc.
func RollerHintsFromModule(mod *program.Module, dev *arch.Device, opts HintOptions) ([]policy.Hint, error) {
	fn, err := mod.UniqueFunc()
	if err != nil {
		return nil, err
	}
	return RollerHints(fn, dev, opts)
}
