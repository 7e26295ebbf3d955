// Package arch describes the compute and memory capabilities of a target device.
//
// A Device is a read-only value constructed once per target and shared across
// all schedule searches for that target. Well-known targets are registered at
// package initialization and looked up by name with ByName; additional targets
// can be added with Register.
package arch

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// ErrUnknownTarget is wrapped by ByName when the target identifier does not
// name a registered device.
var ErrUnknownTarget = errors.New("unknown device target")

// MatrixUnit describes a hardware fused multiply-accumulate unit operating on
// fixed-shape operand tiles (M x K times K x N accumulated into M x N).
type MatrixUnit struct {
	M, N, K int

	// DTypes lists the operand element types the unit accepts.
	DTypes []dtypes.DType
}

// Supports returns whether the unit accepts operands of the given dtype.
func (u *MatrixUnit) Supports(dtype dtypes.DType) bool {
	for _, dt := range u.DTypes {
		if dt == dtype {
			return true
		}
	}
	return false
}

func (u *MatrixUnit) String() string {
	return fmt.Sprintf("%dx%dx%d", u.M, u.N, u.K)
}

// Spec holds the capabilities used to construct a Device.
type Spec struct {
	// Name identifies the target, e.g. "sm80".
	Name string

	// NumSMs is the number of compute units (streaming multiprocessors).
	NumSMs int

	// MaxThreadsPerBlock is the maximum thread-group size.
	MaxThreadsPerBlock int

	// SharedMemPerBlock is the shared-memory capacity of one thread group, in bytes.
	SharedMemPerBlock int

	// RegistersPerThread is the register capacity estimate available to one thread.
	RegistersPerThread int

	// WarpSize is the number of threads executing in lockstep.
	WarpSize int

	// MemoryBandwidthGBps is the global-memory bandwidth in GB/s.
	MemoryBandwidthGBps int

	// MatrixUnit is nil for targets without specialized matrix hardware.
	MatrixUnit *MatrixUnit
}

// Device is the immutable capability model of one target.
//
// It is safe to share a Device across concurrent searches.
type Device struct {
	spec Spec
}

// New validates spec and returns the corresponding Device.
func New(spec Spec) (*Device, error) {
	if spec.Name == "" {
		return nil, errors.Wrap(ErrUnknownTarget, "device spec has an empty target name")
	}
	for _, check := range []struct {
		name  string
		value int
	}{
		{"NumSMs", spec.NumSMs},
		{"MaxThreadsPerBlock", spec.MaxThreadsPerBlock},
		{"SharedMemPerBlock", spec.SharedMemPerBlock},
		{"RegistersPerThread", spec.RegistersPerThread},
		{"WarpSize", spec.WarpSize},
		{"MemoryBandwidthGBps", spec.MemoryBandwidthGBps},
	} {
		if check.value <= 0 {
			return nil, errors.Errorf("device %q: %s must be positive, got %d",
				spec.Name, check.name, check.value)
		}
	}
	if u := spec.MatrixUnit; u != nil {
		if u.M <= 0 || u.N <= 0 || u.K <= 0 {
			return nil, errors.Errorf("device %q: invalid matrix unit shape %dx%dx%d",
				spec.Name, u.M, u.N, u.K)
		}
		if len(u.DTypes) == 0 {
			return nil, errors.Errorf("device %q: matrix unit declares no operand dtypes", spec.Name)
		}
	}
	return &Device{spec: spec}, nil
}

// MustNew is like New but panics on an invalid spec. Used for registering
// targets at package initialization.
func MustNew(spec Spec) *Device {
	dev, err := New(spec)
	if err != nil {
		exceptions.Panicf("arch.MustNew: %+v", err)
	}
	return dev
}

// Name returns the target identifier.
func (d *Device) Name() string { return d.spec.Name }

// NumSMs returns the number of compute units.
func (d *Device) NumSMs() int { return d.spec.NumSMs }

// MaxThreadsPerBlock returns the maximum thread-group size.
func (d *Device) MaxThreadsPerBlock() int { return d.spec.MaxThreadsPerBlock }

// SharedMemPerBlock returns the per-thread-group shared-memory capacity in bytes.
func (d *Device) SharedMemPerBlock() int { return d.spec.SharedMemPerBlock }

// RegistersPerThread returns the per-thread register capacity.
func (d *Device) RegistersPerThread() int { return d.spec.RegistersPerThread }

// WarpSize returns the lockstep execution width.
func (d *Device) WarpSize() int { return d.spec.WarpSize }

// MemoryBandwidthGBps returns the global-memory bandwidth in GB/s.
func (d *Device) MemoryBandwidthGBps() int { return d.spec.MemoryBandwidthGBps }

// MatrixUnit returns the specialized matrix-multiply unit, or nil if the
// target has none.
func (d *Device) MatrixUnit() *MatrixUnit { return d.spec.MatrixUnit }

// String implements fmt.Stringer, pretty-printing the main capacities.
func (d *Device) String() string {
	mma := "no matrix unit"
	if d.spec.MatrixUnit != nil {
		mma = "matrix unit " + d.spec.MatrixUnit.String()
	}
	return fmt.Sprintf("%s: %d SMs, %s shared/block, %d threads/block, %s",
		d.spec.Name, d.spec.NumSMs,
		humanize.IBytes(uint64(d.spec.SharedMemPerBlock)),
		d.spec.MaxThreadsPerBlock, mma)
}

var registeredDevices = make(map[string]*Device)

// Register makes dev available to ByName lookups. Registering the same name
// twice overwrites the previous entry.
//
// To be safe, call Register during initialization of a package.
func Register(dev *Device) {
	registeredDevices[dev.Name()] = dev
}

// ByName returns the registered Device for the given target identifier.
// The returned error wraps ErrUnknownTarget when the name is not registered.
func ByName(target string) (*Device, error) {
	dev, found := registeredDevices[target]
	if !found {
		return nil, errors.Wrapf(ErrUnknownTarget, "target %q (registered: %v)", target, TargetNames())
	}
	return dev, nil
}
