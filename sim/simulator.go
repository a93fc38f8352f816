// sim/simulator.go
package sim

import (
	"fmt"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// OutputRateLimit is the logical-time spacing of progress log lines.
const OutputRateLimit = 500

// SnapshotSink persists aggregator snapshots of one trial.
type SnapshotSink interface {
	WriteHeader() error
	WriteSnapshot(s Snapshot) error
}

type discardSink struct{}

func (discardSink) WriteHeader() error           { return nil }
func (discardSink) WriteSnapshot(Snapshot) error { return nil }

// Simulator drives a single trial: it owns the population, the random
// source, the adversary and the aggregator, and advances logical time
// round by round. All state is confined to one goroutine.
type Simulator struct {
	Config TrialConfig
	// Agents is the live population; the adversary only appends or truncates.
	Agents    []Agent
	Stats     *Statistics
	Adversary *Adversary
	Protocol  *Protocol
	// Clock is the logical time of the current or last round.
	Clock int64
	// Interactions counts every transition applied so far.
	Interactions int64
	Snapshots    int

	rng  *rand.Rand
	sink SnapshotSink
}

// NewSimulator builds the starting population from cfg and logs every agent
// into a fresh aggregator. rng is consumed exclusively by this simulator.
// A nil adversary never resizes; a nil sink discards snapshots.
func NewSimulator(cfg TrialConfig, rng *rand.Rand, adversary *Adversary, sink SnapshotSink) *Simulator {
	if adversary == nil {
		adversary = NewAdversary()
	}
	if sink == nil {
		sink = discardSink{}
	}
	stats := NewStatistics()
	s := &Simulator{
		Config:    cfg,
		Agents:    make([]Agent, cfg.Population.Size),
		Stats:     stats,
		Adversary: adversary,
		Protocol:  NewProtocol(NewSampler(rng, stats)),
		rng:       rng,
		sink:      sink,
	}
	for i := range s.Agents {
		if cfg.Population.RandomMax > 1 {
			s.Agents[i] = RandomAgent(rng, cfg.Population.RandomMax)
		} else {
			s.Agents[i] = DefaultAgent()
		}
		stats.LogAdd(s.Agents[i])
	}
	return s
}

// Run writes the header and the iteration-0 snapshot, then executes every
// round of the configured schedule.
func (sim *Simulator) Run() error {
	if err := sim.sink.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := sim.snapshot(0); err != nil {
		return err
	}
	resolution := sim.Config.Schedule.Resolution
	progressEvery := max(OutputRateLimit/resolution, 1)
	for i := int64(1); i <= sim.Config.Schedule.Rounds(); i++ {
		if err := sim.Step(i); err != nil {
			return err
		}
		if i%progressEvery == 0 {
			logrus.Infof("[time %07d] n=%s, %s interactions", sim.Clock,
				humanize.Comma(int64(len(sim.Agents))), humanize.Comma(sim.Interactions))
		}
	}
	logrus.Debugf("[time %07d] trial ended after %d snapshots", sim.Clock, sim.Snapshots)
	return nil
}

// Step runs round i: enact the adversary at i*resolution, apply
// resolution*len(Agents) random interactions, rebuild the aggregator and
// persist a snapshot.
func (sim *Simulator) Step(i int64) error {
	now := i * sim.Config.Schedule.Resolution
	sim.Clock = now
	sim.Adversary.Enact(now, &sim.Agents, sim.Stats)
	sim.interact(sim.Config.Schedule.Resolution * int64(len(sim.Agents)))
	sim.Stats.ResetAndRebuild(sim.Agents)
	return sim.snapshot(now)
}

// interact draws count independent ordered pairs (a, b) with a != b,
// uniform over the population, and applies the transition to each in
// draw order.
func (sim *Simulator) interact(count int64) {
	n := len(sim.Agents)
	if n < 2 {
		if count > 0 {
			logrus.Warnf("[time %07d] population of %d cannot interact; skipping round", sim.Clock, n)
		}
		return
	}
	for j := int64(0); j < count; j++ {
		a := sim.rng.Intn(n)
		b := sim.rng.Intn(n)
		for a == b {
			b = sim.rng.Intn(n)
		}
		sim.Protocol.Transition(&sim.Agents[a], sim.Agents[b])
		sim.Interactions++
	}
}

func (sim *Simulator) snapshot(now int64) error {
	if err := sim.sink.WriteSnapshot(sim.Stats.Snapshot(now)); err != nil {
		return fmt.Errorf("writing snapshot at time %d: %w", now, err)
	}
	sim.Snapshots++
	return nil
}
