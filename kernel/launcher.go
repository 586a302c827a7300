package kernel

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/tsdf/core"
)

// Launcher runs fn once for every index in [0, n) and returns after all calls
// have finished.  Calls may run concurrently and in any order.
type Launcher interface {
	Launch(n int64, fn func(i int64)) error
}

// SerialLauncher runs every index in order on the calling goroutine.
type SerialLauncher struct{}

func (SerialLauncher) Launch(n int64, fn func(i int64)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel panic: %v", r)
		}
	}()
	for i := int64(0); i < n; i++ {
		fn(i)
	}
	return nil
}

// chunksPerWorker is the number of index ranges scheduled per worker so slow
// ranges can be balanced across workers.
const chunksPerWorker = 4

// ParallelLauncher splits [0, n) into contiguous ranges run by a bounded group
// of goroutines.
type ParallelLauncher struct {
	// Workers is the maximum number of concurrent goroutines.  If zero,
	// core.NumCPU is used.
	Workers int

	// ChunkSize is the number of indices per range.  If zero, it is chosen
	// from n and Workers.
	ChunkSize int64
}

// NewParallelLauncher returns a launcher using the given number of workers.
func NewParallelLauncher(workers int) *ParallelLauncher {
	return &ParallelLauncher{Workers: workers}
}

func (l *ParallelLauncher) Launch(n int64, fn func(i int64)) error {
	if n <= 0 {
		return nil
	}
	workers := l.Workers
	if workers <= 0 {
		workers = core.NumCPU
	}
	chunk := l.ChunkSize
	if chunk <= 0 {
		chunk = (n + int64(workers*chunksPerWorker) - 1) / int64(workers*chunksPerWorker)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for start := int64(0); start < n; start += chunk {
		begin, end := start, start+chunk
		if end > n {
			end = n
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel panic in range [%d, %d): %v", begin, end, r)
				}
			}()
			for i := begin; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}
