package sim

// Source is the fair-coin source consumed by the Sampler.
// *rand.Rand satisfies it; tests inject scripted sources.
type Source interface {
	Intn(n int) int
}

// ResampleLogger receives one event per geometric sub-trial.
type ResampleLogger interface {
	LogResample()
}

// Sampler produces amplified geometric draws for the restart logic.
type Sampler struct {
	src Source
	log ResampleLogger
	k   int
}

// NewSampler creates a Sampler drawing K sub-trials from src.
// log may be nil when resample events are not tracked.
func NewSampler(src Source, log ResampleLogger) *Sampler {
	return &Sampler{src: src, log: log, k: K}
}

// GeometricMaxOfK returns the maximum of K independent geometric trials.
// One trial starts at 1 and increments while the coin lands 0; the result
// is the number of flips until the first 1. Each sub-trial reports exactly
// one resample event, so every call yields K events.
func (s *Sampler) GeometricMaxOfK() uint32 {
	var best uint32
	for i := 0; i < s.k; i++ {
		if s.log != nil {
			s.log.LogResample()
		}
		x := uint32(1)
		for s.src.Intn(2) == 0 {
			x++
		}
		if x > best {
			best = x
		}
	}
	return best
}

// LogRestart reports the resample event a restart or staleness draw adds on
// top of the K sub-trials of GeometricMaxOfK.
func (s *Sampler) LogRestart() {
	if s.log != nil {
		s.log.LogResample()
	}
}
