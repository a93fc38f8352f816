package sim

// Fixed protocol parameters.
const (
	T1           = 6  // restart clock multiplier
	T2           = 4  // settled threshold multiplier
	T3           = 2  // low-clock threshold multiplier
	TDash        = 20 // staleness multiplier for Interactions
	K            = 16 // geometric sub-trials per amplified draw
	Overestimate = 1  // multiplier applied to every freshly drawn Max
)

// Protocol is the pairwise transition rule of the size-estimation protocol.
type Protocol struct {
	sampler *Sampler
}

// NewProtocol creates a Protocol drawing restarts from sampler.
func NewProtocol(sampler *Sampler) *Protocol {
	return &Protocol{sampler: sampler}
}

// draw returns a max-of-K geometric value before Overestimate is applied.
// Each draw reports K+1 resample events: one per sub-trial and one for the
// draw itself.
func (p *Protocol) draw() uint32 {
	g := p.sampler.GeometricMaxOfK()
	p.sampler.LogRestart()
	return g
}

// settled reports whether a's clock is past T2 times its estimate.
func settled(a *Agent) bool {
	return a.Timer > T2*a.Max
}

// Transition applies one interaction with initiator u and responder v.
// Only u is updated. Rules are evaluated in order and each rule sees the
// values left by the rules before it.
func (p *Protocol) Transition(u *Agent, v Agent) {
	// restart: expired clock, a settled peer while we are low, or a mismatch
	// before we settle
	if u.Timer == 0 ||
		(u.Timer <= T3*u.Max && settled(&v)) ||
		(u.Timer < T2*u.Max && u.Max != v.Max) {
		u.Interactions = 0
		u.LastMax = u.Max
		u.Max = p.draw() * Overestimate
		u.Timer = T1 * max(u.LastMax, u.Max)
	}

	// staleness: too many interactions without growing the estimate
	if u.Interactions > TDash*max(u.Max, u.LastMax) {
		u.Interactions = 0
		if g := p.draw(); g > u.Max {
			u.Max = g * Overestimate
			u.Timer = T1 * u.Max
		}
	}

	// a larger settled estimate dominates a smaller settled one
	if settled(u) && settled(&v) && u.Max < v.Max {
		u.Timer = T3 * v.Max
		u.Max = v.Max
	}

	if u.Max == v.Max && !(settled(u) && v.Timer < T3*v.Max) {
		u.LastMax = max(u.LastMax, v.LastMax)
	}

	u.Timer = max(u.Timer, v.Timer) - 1
	u.Interactions++
}
