/*
Package spikenet is the overall repository for a discrete-time spiking
neural network simulator implemented in Go.

This top level of the repository has no functional code -- everything is
organized into the following sub-packages:

* spikenet: the core simulation engine -- the Model, neuron and input
populations, synapse bundles, plasticity rules, and activity monitors that
together implement one fixed-Δt simulation step.

* backend: the execution-backend abstraction that lets the same model run
either on a goroutine worker pool (the "parallel" backend) or sequentially
in the calling goroutine (the "reference" backend used for deterministic
testing).

* chans: ion-channel conductance bookkeeping, used by the LIFConductance
neuron family for its K-channel spike-frequency adaptation.

* cmd/spikesim: a runnable example program that assembles a small network
and runs it, the starting point for building your own simulations.
*/
package spikenet
