package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/popsim/popsim/sim/internal/testutil"
)

func assertSumsToN(t *testing.T, s *Statistics) {
	t.Helper()
	for _, f := range Fields() {
		testutil.AssertHistogramSum(t, f.String(), s.Histogram(f).Buckets(), s.N())
	}
}

func TestStatistics_Bounds(t *testing.T) {
	s := NewStatistics()
	assert.Equal(t, MaxTimeSize, s.Histogram(FieldTimer).Bound())
	assert.Equal(t, MaxSize, s.Histogram(FieldMax).Bound())
	assert.Equal(t, MaxSize, s.Histogram(FieldLastMax).Bound())
	assert.Equal(t, MaxTimeSize, s.Histogram(FieldInteractions).Bound())
}

func TestStatistics_AddThenRemoveRestoresState(t *testing.T) {
	// GIVEN an aggregator over a random population
	rng := rand.New(rand.NewSource(3))
	s := NewStatistics()
	for i := 0; i < 50; i++ {
		s.LogAdd(RandomAgent(rng, 10))
	}
	before := s.Snapshot(0)

	// WHEN an agent is added and immediately removed
	a := Agent{Timer: 7, Max: 3, LastMax: 2, Interactions: 11}
	s.LogAdd(a)
	s.LogRemove(a)

	// THEN histograms and N are unchanged
	after := s.Snapshot(0)
	assert.Equal(t, before, after)
	assertSumsToN(t, s)
}

func TestStatistics_OutOfRangeAddIsDroppedAndCounted(t *testing.T) {
	s := NewStatistics()
	a := Agent{Timer: MaxTimeSize + 1, Max: 2, LastMax: MaxSize + 5, Interactions: 0}

	s.LogAdd(a)

	assert.Equal(t, int64(1), s.N())
	assert.Equal(t, int64(1), s.Dropped(FieldTimer))
	assert.Equal(t, int64(1), s.Dropped(FieldLastMax))
	assert.Equal(t, int64(0), s.Dropped(FieldMax))
	assert.Equal(t, int64(0), s.Histogram(FieldTimer).Sum())
	assert.Equal(t, int64(1), s.Histogram(FieldMax).Sum())

	// the uncounted values are skipped on removal rather than indexed
	s.LogRemove(a)
	assert.Equal(t, int64(0), s.N())
	assert.Equal(t, int64(1), s.DroppedRemovals(FieldTimer))
	assert.Equal(t, int64(1), s.DroppedRemovals(FieldLastMax))
	assert.Equal(t, int64(0), s.Histogram(FieldMax).Sum())
}

func TestStatistics_UnmatchedRemoveGoesNegative(t *testing.T) {
	s := NewStatistics()
	s.LogRemove(DefaultAgent())
	assert.Equal(t, int64(-1), s.Histogram(FieldTimer).Buckets()[T3])
	assert.Equal(t, int64(-1), s.N())
}

func TestStatistics_ResetAndRebuildKeepsResamples(t *testing.T) {
	// GIVEN stale counts and a pending resample tally
	s := NewStatistics()
	s.LogAdd(Agent{Timer: 9, Max: 9, LastMax: 9, Interactions: 9})
	s.LogResample()
	s.LogResample()

	// WHEN rebuilt from a new population
	pop := []Agent{DefaultAgent(), DefaultAgent(), {Timer: 4, Max: 2, LastMax: 1, Interactions: 0}}
	s.ResetAndRebuild(pop)

	// THEN counts reflect only pop and resamples survive
	assert.Equal(t, int64(3), s.N())
	assert.Equal(t, int64(0), s.Histogram(FieldTimer).Buckets()[9])
	assert.Equal(t, int64(2), s.Histogram(FieldTimer).Buckets()[T3])
	assert.Equal(t, int64(2), s.Resamples())
	assertSumsToN(t, s)
}

func TestStatistics_SnapshotZerosResamplesOnly(t *testing.T) {
	s := NewStatistics()
	s.LogAdd(DefaultAgent())
	s.LogResample()

	first := s.Snapshot(10)
	second := s.Snapshot(20)

	assert.Equal(t, int64(10), first.Time)
	assert.Equal(t, int64(1), first.Resamples)
	assert.Equal(t, int64(0), second.Resamples)
	assert.Equal(t, first.Max, second.Max)
	assert.Equal(t, int64(1), second.N)
	assert.Len(t, first.Timer, MaxTimeSize+1)
	assert.Len(t, first.Max, MaxSize+1)
}

func TestStatistics_SnapshotIsACopy(t *testing.T) {
	s := NewStatistics()
	s.LogAdd(DefaultAgent())
	snap := s.Snapshot(0)

	snap.Max[1] = 99

	assert.Equal(t, int64(1), s.Histogram(FieldMax).Buckets()[1])
}

func TestField_String(t *testing.T) {
	assert.Equal(t, "timer", FieldTimer.String())
	assert.Equal(t, "lastMax", FieldLastMax.String())
	assert.Equal(t, "unknown", Field(17).String())
}
