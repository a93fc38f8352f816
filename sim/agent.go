package sim

import (
	"fmt"
	"math/rand"
)

// Histogram bounds. A field value v is counted iff v <= its bound.
const (
	MaxSize     = 60 * Overestimate // bound for Max and LastMax
	MaxTimeSize = 25 * MaxSize      // bound for Timer and Interactions
)

// Agent is the local state of one anonymous population member.
// Agents have no identity beyond their index in the population;
// two agents are equal iff all four fields are equal.
type Agent struct {
	Timer        uint32 // phase clock, counts down toward a restart
	Max          uint32 // current size estimate
	LastMax      uint32 // previous or propagated estimate
	Interactions uint32 // interactions since the last restart
}

// DefaultAgent returns the fixed starting state used for fresh agents,
// both at trial start (when randomMax <= 1) and for adversarial growth.
func DefaultAgent() Agent {
	return Agent{Timer: T3, Max: 1, LastMax: 1, Interactions: T3}
}

// RandomAgent draws an agent with Timer and Interactions uniform in
// [0, T3*randomMax] and Max, LastMax independently uniform in [1, randomMax].
// Fields are drawn in declaration order.
func RandomAgent(rng *rand.Rand, randomMax int) Agent {
	timeHi := T3 * randomMax
	return Agent{
		Timer:        uint32(uniformInt(rng, 0, timeHi)),
		Max:          uint32(uniformInt(rng, 1, randomMax)),
		LastMax:      uint32(uniformInt(rng, 1, randomMax)),
		Interactions: uint32(uniformInt(rng, 0, timeHi)),
	}
}

// uniformInt returns an integer uniform in the closed range [lo, hi].
func uniformInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

func (a Agent) String() string {
	return fmt.Sprintf("timer: %d, max: %d, estimate: %d, interactions: %d",
		a.Timer, a.Max, a.LastMax, a.Interactions)
}
