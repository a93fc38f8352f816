package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey identifies a reproducible batch of trials.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical output files.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// TrialStream returns the stream name for repetition rep at population size n.
func TrialStream(n, rep int) string {
	return fmt.Sprintf("trial_n=%d_rep=%d", n, rep)
}

// === PartitionedRNG ===

// PartitionedRNG hands out one isolated *rand.Rand per trial.
//
// Derivation formula: masterSeed XOR fnv1a64(streamName).
//
// Each trial owns its generator exclusively; the generator is never shared
// between goroutines. The PartitionedRNG itself is NOT thread-safe and must
// be used from the dispatching goroutine only.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// ForStream returns a deterministically-seeded RNG for the named stream.
// The same name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForStream(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.SeedFor(name)))
	p.streams[name] = rng
	return rng
}

// ForTrial returns the RNG for repetition rep at population size n.
func (p *PartitionedRNG) ForTrial(n, rep int) *rand.Rand {
	return p.ForStream(TrialStream(n, rep))
}

// SeedFor returns the derived seed of the named stream without creating it.
func (p *PartitionedRNG) SeedFor(name string) int64 {
	return int64(p.key) ^ fnv1a64(name)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
