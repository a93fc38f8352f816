// Tracks population-wide histograms of agent fields, maintained
// incrementally as agents are added and removed.

package sim

import "github.com/sirupsen/logrus"

// Field names one of the four histogrammed Agent fields.
type Field int

const (
	FieldTimer Field = iota
	FieldMax
	FieldLastMax
	FieldInteractions
	numFields
)

var fieldNames = [numFields]string{"timer", "max", "lastMax", "interactions"}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Fields lists every histogrammed field in output order.
func Fields() []Field {
	return []Field{FieldTimer, FieldMax, FieldLastMax, FieldInteractions}
}

// fieldBound returns the largest value counted for field f.
func fieldBound(f Field) int {
	if f == FieldMax || f == FieldLastMax {
		return MaxSize
	}
	return MaxTimeSize
}

func fieldValues(a Agent) [numFields]uint32 {
	return [numFields]uint32{a.Timer, a.Max, a.LastMax, a.Interactions}
}

// Histogram is a fixed-length counter array indexed by value.
// Values above the bound have no bucket: Add and Remove report false and
// leave the counters untouched.
type Histogram struct {
	buckets []int64
}

// NewHistogram creates a histogram counting values in [0, bound].
func NewHistogram(bound int) *Histogram {
	return &Histogram{buckets: make([]int64, bound+1)}
}

// Bound returns the largest countable value.
func (h *Histogram) Bound() int {
	return len(h.buckets) - 1
}

// Add increments the bucket of v. Returns false if v is out of range.
func (h *Histogram) Add(v uint32) bool {
	if int64(v) >= int64(len(h.buckets)) {
		return false
	}
	h.buckets[v]++
	return true
}

// Remove decrements the bucket of v without checking it was counted.
// Returns false if v is out of range.
func (h *Histogram) Remove(v uint32) bool {
	if int64(v) >= int64(len(h.buckets)) {
		return false
	}
	h.buckets[v]--
	return true
}

// Sum returns the total over all buckets.
func (h *Histogram) Sum() int64 {
	var s int64
	for _, c := range h.buckets {
		s += c
	}
	return s
}

// Buckets returns a copy of the counters.
func (h *Histogram) Buckets() []int64 {
	out := make([]int64, len(h.buckets))
	copy(out, h.buckets)
	return out
}

func (h *Histogram) reset() {
	clear(h.buckets)
}

// Snapshot is one persisted record of the aggregator state.
type Snapshot struct {
	Time         int64
	Timer        []int64
	Max          []int64
	LastMax      []int64
	Interactions []int64
	Resamples    int64
	N            int64
}

// Histogram returns the buckets of field f.
func (s Snapshot) Histogram(f Field) []int64 {
	switch f {
	case FieldTimer:
		return s.Timer
	case FieldMax:
		return s.Max
	case FieldLastMax:
		return s.LastMax
	case FieldInteractions:
		return s.Interactions
	}
	return nil
}

// Statistics aggregates histograms over the live population.
//
// Invariant: as long as every LogRemove pairs with an earlier LogAdd of the
// same agent, each field's histogram sums to
// N() - Dropped(f) + DroppedRemovals(f), which is N() when every value
// stays within bounds.
type Statistics struct {
	hist      [numFields]*Histogram
	resamples int64
	n         int64

	dropped         [numFields]int64
	droppedRemovals [numFields]int64
}

// NewStatistics creates an empty aggregator with the standard bounds.
func NewStatistics() *Statistics {
	s := &Statistics{}
	for _, f := range Fields() {
		s.hist[f] = NewHistogram(fieldBound(f))
	}
	return s
}

// LogAdd counts a into every histogram whose bound admits it.
// Out-of-range values are dropped with a warning; N always increments.
func (s *Statistics) LogAdd(a Agent) {
	for f, v := range fieldValues(a) {
		if !s.hist[f].Add(v) {
			s.dropped[f]++
			logrus.Warnf("%s %d exceeds histogram bound %d; dropped", Field(f), v, s.hist[f].Bound())
		}
	}
	s.n++
}

// LogRemove uncounts a. In-range buckets are decremented unchecked, so a
// removal without a matching LogAdd drives the bucket negative. Values
// above the bound were never counted and are tallied in DroppedRemovals.
func (s *Statistics) LogRemove(a Agent) {
	for f, v := range fieldValues(a) {
		if !s.hist[f].Remove(v) {
			s.droppedRemovals[f]++
		}
	}
	s.n--
}

// LogResample counts one geometric sub-trial.
func (s *Statistics) LogResample() {
	s.resamples++
}

// ResetAndRebuild recounts the histograms and N from pop.
// The resample counter is left untouched.
func (s *Statistics) ResetAndRebuild(pop []Agent) {
	for _, h := range s.hist {
		h.reset()
	}
	s.dropped = [numFields]int64{}
	s.droppedRemovals = [numFields]int64{}
	s.n = 0
	for _, a := range pop {
		s.LogAdd(a)
	}
}

// Snapshot copies the current counters into a record labelled time and
// zeros the resample counter, which tallies one snapshot interval only.
func (s *Statistics) Snapshot(time int64) Snapshot {
	snap := Snapshot{
		Time:         time,
		Timer:        s.hist[FieldTimer].Buckets(),
		Max:          s.hist[FieldMax].Buckets(),
		LastMax:      s.hist[FieldLastMax].Buckets(),
		Interactions: s.hist[FieldInteractions].Buckets(),
		Resamples:    s.resamples,
		N:            s.n,
	}
	s.resamples = 0
	return snap
}

// N returns the population size as seen by the aggregator.
func (s *Statistics) N() int64 { return s.n }

// Resamples returns the resample count since the last snapshot.
func (s *Statistics) Resamples() int64 { return s.resamples }

// Histogram returns the counters of field f.
func (s *Statistics) Histogram(f Field) *Histogram { return s.hist[f] }

// Dropped returns how many LogAdd values of field f were out of range
// since the last ResetAndRebuild.
func (s *Statistics) Dropped(f Field) int64 { return s.dropped[f] }

// DroppedRemovals returns how many LogRemove values of field f were out of
// range since the last ResetAndRebuild.
func (s *Statistics) DroppedRemovals(f Field) int64 { return s.droppedRemovals[f] }
