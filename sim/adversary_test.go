package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popsim/popsim/sim/internal/testutil"
)

// recordingLog captures the order of adds and removes.
type recordingLog struct {
	added   []Agent
	removed []Agent
}

func (r *recordingLog) LogAdd(a Agent)    { r.added = append(r.added, a) }
func (r *recordingLog) LogRemove(a Agent) { r.removed = append(r.removed, a) }

func distinctAgents(n int) []Agent {
	pop := make([]Agent, n)
	for i := range pop {
		pop[i] = Agent{Timer: uint32(i), Max: 1, LastMax: 1, Interactions: uint32(i)}
	}
	return pop
}

func TestAdversary_GrowthAppendsDefaultAgents(t *testing.T) {
	// GIVEN a population of 3 random agents and a resize to 6 at time 10
	rng := rand.New(rand.NewSource(1))
	pop := []Agent{RandomAgent(rng, 10), RandomAgent(rng, 10), RandomAgent(rng, 10)}
	before := append([]Agent(nil), pop...)
	log := &recordingLog{}
	adv := NewAdversary(AdversaryEvent{Time: 10, Target: 6})

	// WHEN time 10 is reached
	adv.Enact(10, &pop, log)

	// THEN three default agents are appended after the untouched originals
	require.Len(t, pop, 6)
	assert.Equal(t, before, pop[:3])
	for _, a := range pop[3:] {
		assert.Equal(t, DefaultAgent(), a)
	}
	assert.Len(t, log.added, 3)
	assert.Empty(t, log.removed)
}

func TestAdversary_ShrinkRemovesTailInOrder(t *testing.T) {
	// GIVEN five distinct agents and a resize to 2
	pop := distinctAgents(5)
	log := &recordingLog{}
	adv := NewAdversary(AdversaryEvent{Time: 5, Target: 2})

	// WHEN enacted
	adv.Enact(5, &pop, log)

	// THEN the head is preserved and the tail was logged in index order
	assert.Equal(t, distinctAgents(5)[:2], pop)
	assert.Equal(t, distinctAgents(5)[2:], log.removed)
}

func TestAdversary_NotYetDue(t *testing.T) {
	pop := distinctAgents(4)
	adv := NewAdversary(AdversaryEvent{Time: 5, Target: 1})

	adv.Enact(4, &pop, &recordingLog{})

	assert.Len(t, pop, 4)
	assert.Len(t, adv.Pending(), 1)
	assert.Equal(t, 0, adv.Applied())
}

func TestAdversary_AppliesAllDueEventsOnce(t *testing.T) {
	// GIVEN a schedule where two events become due together
	pop := distinctAgents(4)
	stats := NewStatistics()
	stats.ResetAndRebuild(pop)
	adv := NewAdversary()
	adv.Change(1, 10)
	adv.Change(2, 3)
	adv.Change(50, 7)

	// WHEN time 2 is reached, size follows the latest due event
	adv.Enact(2, &pop, stats)
	assert.Len(t, pop, 3)
	assert.Equal(t, 2, adv.Applied())

	// AND enacting the same time again changes nothing
	adv.Enact(2, &pop, stats)
	assert.Len(t, pop, 3)
	assert.Equal(t, 2, adv.Applied())

	// AND the last event applies once its time passes
	adv.Enact(100, &pop, stats)
	assert.Len(t, pop, 7)
	assert.Empty(t, adv.Pending())

	// THEN the aggregator tracked every add and remove
	assert.Equal(t, int64(7), stats.N())
	for _, f := range Fields() {
		testutil.AssertHistogramSum(t, f.String(), stats.Histogram(f).Buckets(), 7)
	}
}

func TestAdversary_EqualTargetAdvancesCursor(t *testing.T) {
	pop := distinctAgents(3)
	log := &recordingLog{}
	adv := NewAdversary(AdversaryEvent{Time: 1, Target: 3})

	adv.Enact(1, &pop, log)

	assert.Equal(t, distinctAgents(3), pop)
	assert.Equal(t, 1, adv.Applied())
	assert.Empty(t, log.added)
	assert.Empty(t, log.removed)
}

func TestAdversary_NegativeTargetEmptiesPopulation(t *testing.T) {
	pop := distinctAgents(3)
	log := &recordingLog{}
	adv := NewAdversary(AdversaryEvent{Time: 0, Target: -4})

	adv.Enact(0, &pop, log)

	assert.Empty(t, pop)
	assert.Len(t, log.removed, 3)
}
