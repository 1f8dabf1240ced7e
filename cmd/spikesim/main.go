// spikesim runs a spiking network model of a configurable size, for
// benchmarking and for exercising the engine end to end outside of a
// test binary. Not a particularly realistic model -- a chain of Poisson
// input driving one excitatory neuron group over a delayed current
// synapse, with pair-based STDP and periodic weight normalization --
// but it is easy to size up and down.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/emer/emergent/v2/erand"

	"github.com/synapcore/spikenet/backend"
	"github.com/synapcore/spikenet/spikenet"
)

func main() {
	var units int
	var seconds float64
	var dt float64
	var rateHz float64
	var parallel bool

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.IntVar(&units, "units", 1000, "neurons in the driven population")
	flag.Float64Var(&seconds, "seconds", 1.0, "simulated seconds to run")
	flag.Float64Var(&dt, "dt", 1e-4, "integration timestep in seconds")
	flag.Float64Var(&rateHz, "rate", 20, "Poisson input rate in Hz")
	flag.BoolVar(&parallel, "parallel", false, "use the Parallel backend instead of Reference")
	flag.Parse()

	kind := backend.Reference
	if parallel {
		kind = backend.Parallel
	}

	m := spikenet.NewModel("spikesim", kind, spikenet.DefaultConfig())
	if err := m.SetTimestep(float32(dt)); err != nil {
		fatal(err)
	}

	neuronID, err := m.AddNeuronGroup(spikenet.NeuronParams{
		Family: spikenet.LIFCurrent,
		Shape:  [2]int{1, units},
		VRest:  -70, VThr: -50, VReset: -70,
		TauM: 0.02, R: 1, TauRef: 0.002,
	})
	if err != nil {
		fatal(err)
	}
	inputID, err := m.AddInputNeuronGroup(spikenet.InputNeuronParams{
		Family: spikenet.Poisson,
		Shape:  [2]int{1, units},
		RateHz: float32(rateHz),
	})
	if err != nil {
		fatal(err)
	}

	pre := spikenet.CorrectedPresynapticID(int(inputID), true)
	post := spikenet.CorrectedPresynapticID(int(neuronID), false)
	if err := m.AddSynapseGroup(pre, post, spikenet.SynapseGroupParams{
		Family:         spikenet.CurrentSynapse,
		DelayTimesteps: 3,
		WeightInit:     erand.RndParams{Mean: 15},
	}); err != nil {
		fatal(err)
	}

	bundle := m.Synapses
	m.AddPlasticityRule(&spikenet.STDPRule{
		Bundle: bundle, Neurons: m.Neurons, Inputs: m.Inputs,
		APlus: 0.005, AMinus: 0.005, TauPlus: 0.02, TauMinus: 0.02,
		WMin: 0, WMax: 60,
	})
	m.AddPlasticityRule(&spikenet.WeightNormRule{Bundle: bundle})

	m.AddActivityMonitor(spikenet.NewSpikeMonitor(m.Neurons, os.Stdout, 4096))

	if err := m.Run(float32(seconds)); err != nil {
		fatal(err)
	}

	fmt.Fprint(os.Stderr, m.SizeReport())
	for k, v := range m.TimingReport() {
		fmt.Fprintf(os.Stderr, "%s: %.4fs\n", k, v)
	}
}

func fatal(err error) {
	fmt.Fprintln(spikenet.DiagnosticSink, err)
	os.Exit(1)
}
