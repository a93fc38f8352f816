// Package trials fans independent simulation trials out over a bounded
// pool of goroutines. Trials share no mutable state: each one owns its
// random stream, population, adversary, aggregator and output file.
package trials

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/index"
	"github.com/popsim/popsim/sim/output"
)

// Recorder stores the outcome of each trial. *index.SQLiteIndex satisfies it.
type Recorder interface {
	RecordTrial(ctx context.Context, r index.TrialRecord) error
}

// Plan describes every trial of one run.
type Plan struct {
	Sizes       []int // population sizes, dispatched in order, one batch each
	Repetitions int   // trials per size
	Workers     int   // pool width
	Trial       sim.TrialConfig
	Dir         string
	Compress    bool
}

// SizesFromExponents returns 10^exp for every exp in [from, to].
func SizesFromExponents(from, to int) []int {
	var sizes []int
	for e := from; e <= to; e++ {
		sizes = append(sizes, int(math.Pow(10, float64(e))))
	}
	return sizes
}

// Validate checks that all fields in the plan are valid.
func (p Plan) Validate() error {
	if len(p.Sizes) == 0 {
		return fmt.Errorf("plan has no population sizes")
	}
	for _, n := range p.Sizes {
		if n < 0 {
			return fmt.Errorf("population size must be non-negative, got %d", n)
		}
	}
	if p.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", p.Repetitions)
	}
	if p.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", p.Workers)
	}
	return p.Trial.Validate()
}

// Result is the outcome of one trial.
type Result struct {
	Trial      string
	N          int
	Repetition int
	Seed       int64
	OutputPath string
	FinalN     int
	Snapshots  int
	Err        error
}

// Runner executes Plans. A Runner is used from one goroutine; the trials
// it dispatches run concurrently.
type Runner struct {
	RunID string
	key   sim.SimulationKey
	rec   Recorder
}

// NewRunner creates a Runner whose trial streams derive from seed.
// rec may be nil.
func NewRunner(seed int64, rec Recorder) *Runner {
	return &Runner{
		RunID: uuid.NewString(),
		key:   sim.NewSimulationKey(seed),
		rec:   rec,
	}
}

// Run executes every trial of plan. Sizes are processed one batch at a
// time: all repetitions of a size run on at most plan.Workers goroutines
// and the batch completes before the next size is dispatched. A failing
// trial does not stop its siblings; every failure is returned joined.
// Cancelling ctx stops dispatch of further batches.
func (r *Runner) Run(ctx context.Context, plan Plan) ([]Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Trial.Population.Undercounts() {
		logrus.Warnf("random max %d exceeds histogram bound %d; out-of-range estimates will be dropped",
			plan.Trial.Population.RandomMax, sim.MaxSize)
	}
	rngs := sim.NewPartitionedRNG(r.key)
	var results []Result
	var errs []error
	for _, n := range plan.Sizes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		batch := make([]Result, plan.Repetitions)
		var g errgroup.Group
		g.SetLimit(plan.Workers)
		for rep := 0; rep < plan.Repetitions; rep++ {
			rep := rep
			stream := sim.TrialStream(n, rep)
			rng := rngs.ForStream(stream)
			seed := rngs.SeedFor(stream)
			g.Go(func() error {
				batch[rep] = r.runTrial(ctx, plan, n, rep, seed, rng)
				return nil
			})
		}
		_ = g.Wait()
		for _, res := range batch {
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("trial %s: %w", res.Trial, res.Err))
			}
		}
		results = append(results, batch...)
		logrus.Infof("batch n=%d finished: %d trials", n, len(batch))
	}
	return results, errors.Join(errs...)
}

// simulate runs one trial to completion. Tests replace it to inject failures.
var simulate = func(s *sim.Simulator) error { return s.Run() }

func (r *Runner) runTrial(ctx context.Context, plan Plan, n, rep int, seed int64, rng *rand.Rand) (res Result) {
	cfg := plan.Trial
	cfg.Population.Size = n
	name := output.TrialName(cfg.Population.RandomMax, n, rep, cfg.Adversary.Enabled)
	res = Result{
		Trial:      name,
		N:          n,
		Repetition: rep,
		Seed:       seed,
		OutputPath: filepath.Join(plan.Dir, name+output.Extension(plan.Compress)),
	}
	started := time.Now()
	logrus.Infof("-------- trial %s: n=%d, random_max=%d, adversary=%v --------",
		name, n, cfg.Population.RandomMax, cfg.Adversary.Enabled)

	var w *output.Writer
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
		if w != nil {
			res.Err = errors.Join(res.Err, w.Close())
		}
		if res.Err != nil {
			logrus.Errorf("trial %s failed: %v", name, res.Err)
		}
		r.record(ctx, plan, cfg, res, started)
	}()

	out, err := output.Create(res.OutputPath, plan.Compress)
	if err != nil {
		res.Err = fmt.Errorf("creating output: %w", err)
		return res
	}
	w = out
	s := sim.NewSimulator(cfg, rng, cfg.Adversary.NewAdversary(), w)
	res.Err = simulate(s)
	res.FinalN = len(s.Agents)
	res.Snapshots = s.Snapshots
	return res
}

func (r *Runner) record(ctx context.Context, plan Plan, cfg sim.TrialConfig, res Result, started time.Time) {
	if r.rec == nil {
		return
	}
	rec := index.TrialRecord{
		RunID:      r.RunID,
		Trial:      res.Trial,
		N:          res.N,
		Repetition: res.Repetition,
		Seed:       res.Seed,
		RandomMax:  cfg.Population.RandomMax,
		Adversary:  cfg.Adversary.Enabled,
		Iterations: cfg.Schedule.Iterations,
		Resolution: cfg.Schedule.Resolution,
		Status:     index.StatusOK,
		FinalN:     res.FinalN,
		Snapshots:  res.Snapshots,
		OutputPath: res.OutputPath,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if res.Err != nil {
		rec.Status = index.StatusFailed
		rec.Error = res.Err.Error()
	}
	// the row is written even when the run is being cancelled
	if err := r.rec.RecordTrial(context.WithoutCancel(ctx), rec); err != nil {
		logrus.Warnf("trial %s: %v", res.Trial, err)
	}
}
