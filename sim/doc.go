// Package sim provides the core engine for simulating a population protocol
// that estimates its own size under an adversary that resizes the population.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - agent.go: the four-field Agent record and its starting states
//   - protocol.go: the pairwise Transition rule and protocol constants
//   - simulator.go: the round loop (adversary, interactions, snapshot)
//
// # Architecture
//
// Time is a logical interaction counter. One Simulator runs one trial
// sequentially and owns every piece of its state: the *rand.Rand handed to
// it, the population slice, its Adversary and its Statistics aggregator.
// Nothing in this package is shared between trials.
//
// Sub-packages:
//   - sim/output/: snapshot persistence (delimited text, optional zstd)
//   - sim/index/: sqlite catalogue of trial outcomes
//   - sim/trials/: bounded worker pool fanning trials out over goroutines
//
// # Key Interfaces
//
//   - Source: fair-coin source for the Sampler (*rand.Rand in production)
//   - ResampleLogger, PopulationLog: aggregator hooks used by the Sampler and Adversary
//   - SnapshotSink: where a Simulator persists its snapshots
package sim
