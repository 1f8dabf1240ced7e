// Package backend implements the execution-backend abstraction: a
// Context selects one of two concrete Kind values (Parallel or
// Reference) and the neuron populations, input populations and synapse
// bundles dispatch their per-neuron / per-synapse work through the
// Context rather than looping directly, so the same Model runs unchanged
// on either backend. Plasticity rules and activity monitors loop in the
// calling goroutine.
//
// This generalizes leabra.NetworkStru's StartThreads/ThrWorker/ThrLayFun
// channel-worker pattern (one worker goroutine per fixed shard, a
// sync.WaitGroup barrier between stages) from "one worker per layer" to
// "one worker per shard of neurons or synapses". Front-end objects
// (spikenet.NeuronPopulation, spikenet.SynapseBundle) hold an owning
// reference to a Context; the Context holds no reference back, so there
// is no ownership cycle to break at shutdown.
package backend

import (
	"fmt"

	"cogentcore.org/core/base/timer"
)

// Kind names a concrete backend family. The set is closed and small, so
// a tagged variant (this enum) is used rather than an open interface
// registry.
type Kind int32

const (
	// Reference runs every kernel sequentially in the calling goroutine.
	// Used for deterministic tests and as the correctness oracle that the
	// Parallel backend is checked against (backend-equivalence
	// property).
	Reference Kind = iota
	// Parallel runs every kernel across a fixed pool of worker
	// goroutines, one logical worker per shard of neurons/synapses.
	Parallel
)

func (k Kind) String() string {
	switch k {
	case Reference:
		return "Reference"
	case Parallel:
		return "Parallel"
	default:
		return fmt.Sprintf("Kind(%d)", int32(k))
	}
}

// Context is the backend context every component reads tunables from and
// dispatches work through. It is safe to share a single Context across
// every population, bundle, and rule in a Model.
type Context struct {
	Kind Kind

	// ThreadsPerBlockNeurons is the shard width used to split a
	// per-neuron kernel across workers on the Parallel backend. Unused by
	// Reference.
	ThreadsPerBlockNeurons int

	// ThreadsPerBlockSynapses is the shard width used to split a
	// per-synapse kernel across workers on the Parallel backend. Unused
	// by Reference.
	ThreadsPerBlockSynapses int

	// MaximumAxonalDelayInTimesteps mirrors the synapse bundle's maximum
	// axonal delay. Set by the engine at finalize; the bundle sizes its
	// delayed-current ring itself and does not read this field.
	MaximumAxonalDelayInTimesteps int

	runner  runner
	times   map[string]*timer.Time
	started bool
}

// runner is the capability every concrete backend implementation
// provides: run n independent units of work, calling fn(i) for each
// i in [0, n), and return only once all of them have completed.
type runner interface {
	run(n int, shard int, fn func(i int))
	stop()
}

// Init resolves Kind to a concrete runner and starts any worker
// goroutines the Parallel backend needs. It is idempotent; calling it
// again after Stop restarts the pool.
func (c *Context) Init() error {
	if c.started {
		return nil
	}
	if c.ThreadsPerBlockNeurons <= 0 {
		c.ThreadsPerBlockNeurons = 256
	}
	if c.ThreadsPerBlockSynapses <= 0 {
		c.ThreadsPerBlockSynapses = 256
	}
	switch c.Kind {
	case Reference:
		c.runner = &referenceRunner{}
	case Parallel:
		c.runner = newParallelRunner()
	default:
		return fmt.Errorf("backend: unknown Kind %v", c.Kind)
	}
	c.times = make(map[string]*timer.Time)
	c.started = true
	return nil
}

// Stop releases backend resources (the Parallel worker pool). Safe to
// call on an uninitialized or already-stopped Context.
func (c *Context) Stop() {
	if !c.started {
		return
	}
	c.runner.stop()
	c.started = false
}

// RunNeurons dispatches fn(i) for i in [0, n) across
// ThreadsPerBlockNeurons shards, using whichever runner Kind selected.
func (c *Context) RunNeurons(n int, fn func(i int)) {
	c.timed("neurons", func() { c.runner.run(n, c.ThreadsPerBlockNeurons, fn) })
}

// RunSynapses dispatches fn(i) for i in [0, n) across
// ThreadsPerBlockSynapses shards.
func (c *Context) RunSynapses(n int, fn func(i int)) {
	c.timed("synapses", func() { c.runner.run(n, c.ThreadsPerBlockSynapses, fn) })
}

func (c *Context) timed(name string, fn func()) {
	t, ok := c.times[name]
	if !ok {
		t = &timer.Time{}
		c.times[name] = t
	}
	t.Start()
	fn()
	t.Stop()
}

// TimingReport returns the accumulated seconds spent in each kernel
// category (neurons, synapses), the same diagnostic role
// leabra.NetworkStru.TimerReport plays.
func (c *Context) TimingReport() map[string]float64 {
	rep := make(map[string]float64, len(c.times))
	for k, t := range c.times {
		rep[k] = t.TotalSecs()
	}
	return rep
}
