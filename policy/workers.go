package policy

import (
	"runtime"
	"sync"
)

// workersPool partitions an index range across goroutines for CPU-bound
// scoring work. Results are written to caller-owned, index-aligned slots, so
// parallel and serial runs produce identical output.
type workersPool struct {
	// maxParallelism is the number of concurrent workers.
	// 1 runs everything inline.
	maxParallelism int
}

func newWorkersPool(maxParallelism int) *workersPool {
	if maxParallelism <= 0 {
		maxParallelism = runtime.NumCPU()
	}
	return &workersPool{maxParallelism: maxParallelism}
}

// partition runs fn over [0, n) split into contiguous chunks, one chunk per
// worker, and returns when all chunks are done.
func (w *workersPool) partition(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(w.maxParallelism, n)
	if workers == 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(start, end)
		}()
	}
	wg.Wait()
}
