package backend

import (
	"runtime"
	"sync"
)

// parallelRunner is the worker-pool backend, adapted from
// leabra.NetworkStru's StartThreads/ThrWorker/ThrLayFun: a fixed set of
// worker goroutines pull job closures off a channel and signal a
// sync.WaitGroup when done, so a dispatch call blocks until every worker
// has finished its shard before the next pipeline stage begins. Where
// leabra shards by "one layer per worker", this shards by "one
// contiguous range of neuron/synapse indices per worker", sized by the
// Context's ThreadsPerBlock* tunable.
type parallelRunner struct {
	jobs chan func()
	wg   sync.WaitGroup
	n    int
}

func newParallelRunner() *parallelRunner {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	r := &parallelRunner{jobs: make(chan func(), n*2), n: n}
	for w := 0; w < n; w++ {
		go r.worker()
	}
	return r
}

func (r *parallelRunner) worker() {
	for job := range r.jobs {
		job()
		r.wg.Done()
	}
}

// run splits [0, n) into shards of shard size, each processed by a
// single worker calling fn(i) sequentially over its slice of indices.
// Contributions to a shared postsynaptic accumulator from different
// shards commute (ordering note), so no further
// synchronization is needed within a dispatch beyond the final barrier.
func (r *parallelRunner) run(n int, shard int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if shard <= 0 {
		shard = n
	}
	for lo := 0; lo < n; lo += shard {
		hi := lo + shard
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		r.wg.Add(1)
		r.jobs <- func() {
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}
	}
	r.wg.Wait()
}

func (r *parallelRunner) stop() {
	close(r.jobs)
}
