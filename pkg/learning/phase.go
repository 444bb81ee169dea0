package learning

import "math"

// Phase is a step in the user's learning progression.
type Phase string

const (
	PhaseInitial   Phase = "initial"
	PhaseLearning  Phase = "learning"
	PhaseOptimized Phase = "optimized"
	PhaseMaster    Phase = "master"
)

// Interaction counts at which each phase begins.
const (
	learningAt  = 4
	optimizedAt = 8
	masterAt    = 12
	masterSpan  = 8 // interactions past masterAt to reach 100%
)

// Rank orders phases: initial < learning < optimized < master.
func (p Phase) Rank() int {
	switch p {
	case PhaseLearning:
		return 1
	case PhaseOptimized:
		return 2
	case PhaseMaster:
		return 3
	default:
		return 0
	}
}

// PhaseFor returns the phase reached after n interactions.
func PhaseFor(n int) Phase {
	switch {
	case n >= masterAt:
		return PhaseMaster
	case n >= optimizedAt:
		return PhaseOptimized
	case n >= learningAt:
		return PhaseLearning
	default:
		return PhaseInitial
	}
}

// Progress returns the continuous progress percentage in [0, 100] after n
// interactions. Each of the first three phases spans 25 points over four
// interactions; master climbs from 75 to 100 over eight more.
func Progress(n int) float64 {
	if n <= 0 {
		return 0
	}
	switch PhaseFor(n) {
	case PhaseInitial:
		return float64(n) / 4 * 25
	case PhaseLearning:
		return 25 + float64(n-learningAt)/4*25
	case PhaseOptimized:
		return 50 + float64(n-optimizedAt)/4*25
	default:
		return math.Min(100, 75+float64(n-masterAt)/masterSpan*25)
	}
}

// CounterState is the per-user interaction counter. It only grows.
type CounterState struct {
	TotalInteractions int `json:"total_interactions"`
	RAGHitCount       int `json:"rag_hit_count"`
}

// Record returns the state after one more interaction.
func (c CounterState) Record(ragHit bool) CounterState {
	c = c.clamped()
	c.TotalInteractions++
	if ragHit {
		c.RAGHitCount++
	}
	return c
}

func (c CounterState) clamped() CounterState {
	if c.TotalInteractions < 0 {
		c.TotalInteractions = 0
	}
	if c.RAGHitCount < 0 {
		c.RAGHitCount = 0
	}
	if c.RAGHitCount > c.TotalInteractions {
		c.RAGHitCount = c.TotalInteractions
	}
	return c
}

// State is the learning view reported on the dashboard.
type State struct {
	Phase             Phase   `json:"phase"`
	ProgressPercent   float64 `json:"progress_percent"`
	TotalInteractions int     `json:"total_interactions"`
	RAGHitCount       int     `json:"rag_hit_count"`
	RAGHitRate        float64 `json:"rag_hit_rate"`
}

// Evaluate derives the learning state. The RAG hit rate is reported but
// does not gate phase transitions.
func Evaluate(c CounterState) State {
	c = c.clamped()
	s := State{
		Phase:             PhaseFor(c.TotalInteractions),
		ProgressPercent:   Progress(c.TotalInteractions),
		TotalInteractions: c.TotalInteractions,
		RAGHitCount:       c.RAGHitCount,
	}
	if c.TotalInteractions > 0 {
		s.RAGHitRate = float64(c.RAGHitCount) / float64(c.TotalInteractions)
	}
	return s
}
