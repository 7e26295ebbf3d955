package arch

import (
	"sort"

	"github.com/gomlx/gopjrt/dtypes"
)

// Built-in targets. Capacities are the per-block limits the schedule search
// checks against, not full datasheet descriptions.
func init() {
	Register(MustNew(Spec{
		Name:                "sm50",
		NumSMs:              16,
		MaxThreadsPerBlock:  1024,
		SharedMemPerBlock:   48 * 1024,
		RegistersPerThread:  255,
		WarpSize:            32,
		MemoryBandwidthGBps: 224,
	}))
	Register(MustNew(Spec{
		Name:                "sm70",
		NumSMs:              80,
		MaxThreadsPerBlock:  1024,
		SharedMemPerBlock:   96 * 1024,
		RegistersPerThread:  255,
		WarpSize:            32,
		MemoryBandwidthGBps: 900,
		MatrixUnit: &MatrixUnit{
			M: 16, N: 16, K: 16,
			DTypes: []dtypes.DType{dtypes.Float16},
		},
	}))
	Register(MustNew(Spec{
		Name:                "sm80",
		NumSMs:              108,
		MaxThreadsPerBlock:  1024,
		SharedMemPerBlock:   96 * 1024,
		RegistersPerThread:  255,
		WarpSize:            32,
		MemoryBandwidthGBps: 1555,
		MatrixUnit: &MatrixUnit{
			M: 16, N: 16, K: 16,
			DTypes: []dtypes.DType{dtypes.Float16, dtypes.BFloat16},
		},
	}))
	Register(MustNew(Spec{
		Name:                "sm90",
		NumSMs:              132,
		MaxThreadsPerBlock:  1024,
		SharedMemPerBlock:   227 * 1024,
		RegistersPerThread:  255,
		WarpSize:            32,
		MemoryBandwidthGBps: 3350,
		MatrixUnit: &MatrixUnit{
			M: 16, N: 16, K: 16,
			DTypes: []dtypes.DType{dtypes.Float16, dtypes.BFloat16},
		},
	}))
}

// TargetNames returns the sorted names of all registered targets.
func TargetNames() []string {
	names := make([]string, 0, len(registeredDevices))
	for name := range registeredDevices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
