package sim

import "github.com/sirupsen/logrus"

// PopulationLog is notified of every agent the adversary adds or removes.
type PopulationLog interface {
	LogAdd(a Agent)
	LogRemove(a Agent)
}

// AdversaryEvent resizes the population to Target once logical time
// reaches Time.
type AdversaryEvent struct {
	Time   int64 `yaml:"time" json:"time"`
	Target int   `yaml:"target" json:"target"`
}

// DefaultAdversarySchedule is used when the adversary is enabled without
// an explicit schedule.
func DefaultAdversarySchedule() []AdversaryEvent {
	return []AdversaryEvent{{Time: 1350, Target: 500}}
}

// Adversary applies an ordered schedule of population resizes.
// Callers keep the schedule sorted ascending by Time; Change does not sort.
// Each event is applied at most once.
type Adversary struct {
	events []AdversaryEvent
	cursor int
}

// NewAdversary creates an Adversary with the given schedule.
func NewAdversary(events ...AdversaryEvent) *Adversary {
	a := &Adversary{}
	for _, ev := range events {
		a.Change(ev.Time, ev.Target)
	}
	return a
}

// Change appends a resize to target at the given time.
func (a *Adversary) Change(time int64, target int) {
	a.events = append(a.events, AdversaryEvent{Time: time, Target: target})
}

// Applied returns the number of events already enacted.
func (a *Adversary) Applied() int {
	return a.cursor
}

// Pending returns the events not yet enacted.
func (a *Adversary) Pending() []AdversaryEvent {
	return a.events[a.cursor:]
}

// Enact applies every pending event with Time <= now, in schedule order.
// Growth appends default agents at the tail; shrink logs the tail agents
// in index order before truncating. Interior agents are never touched.
func (a *Adversary) Enact(now int64, pop *[]Agent, log PopulationLog) {
	for a.cursor < len(a.events) && a.events[a.cursor].Time <= now {
		target := max(a.events[a.cursor].Target, 0)
		size := len(*pop)
		switch {
		case target > size:
			logrus.Infof("[time %07d] adversary increasing population %d -> %d", now, size, target)
			for i := size; i < target; i++ {
				agent := DefaultAgent()
				*pop = append(*pop, agent)
				log.LogAdd(agent)
			}
		case target < size:
			logrus.Infof("[time %07d] adversary decreasing population %d -> %d", now, size, target)
			for _, agent := range (*pop)[target:] {
				log.LogRemove(agent)
			}
			*pop = (*pop)[:target]
		}
		a.cursor++
	}
}
