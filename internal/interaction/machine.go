package interaction

import (
	"fmt"
	"time"
)

// Phase is the coarse interaction state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseBuilding Phase = "building"
	PhaseSelected Phase = "selected"
	PhaseDragging Phase = "dragging"
)

// Transition records one phase change.
type Transition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Condition string    `json:"condition"`
	DrawingID string    `json:"drawingId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// phaseMachine tracks the current phase and a bounded transition history.
type phaseMachine struct {
	current        Phase
	history        []Transition
	total          int
	counts         map[Phase]int
	lastTransition time.Time
	maxHistorySize int
}

func newPhaseMachine(maxHistory int) *phaseMachine {
	if maxHistory <= 0 {
		maxHistory = 256
	}
	return &phaseMachine{
		current:        PhaseIdle,
		counts:         make(map[Phase]int),
		maxHistorySize: maxHistory,
	}
}

// transitionTo moves to phase and reports whether it changed.
func (m *phaseMachine) transitionTo(to Phase, condition, drawingID string) (Transition, bool) {
	if to == m.current {
		return Transition{}, false
	}
	now := time.Now()
	tr := Transition{
		From:      m.current,
		To:        to,
		Condition: condition,
		DrawingID: drawingID,
		Timestamp: now,
	}

	m.history = append(m.history, tr)
	if len(m.history) > m.maxHistorySize {
		m.history = m.history[1:]
	}
	m.total++
	m.counts[to]++
	m.current = to
	m.lastTransition = now
	return tr, true
}

func (m *phaseMachine) snapshot() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Metrics summarizes the transition history.
type Metrics struct {
	Current     Phase         `json:"current"`
	Total       int           `json:"total"`
	HistorySize int           `json:"historySize"`
	Counts      map[Phase]int `json:"counts"`
	InPhase     time.Duration `json:"inPhase"`
}

func (m *phaseMachine) metrics() Metrics {
	counts := make(map[Phase]int, len(m.counts))
	for k, v := range m.counts {
		counts[k] = v
	}
	var in time.Duration
	if !m.lastTransition.IsZero() {
		in = time.Since(m.lastTransition)
	}
	return Metrics{
		Current:     m.current,
		Total:       m.total,
		HistorySize: len(m.history),
		Counts:      counts,
		InPhase:     in,
	}
}

// String summarizes the machine for debug logs.
func (m *phaseMachine) String() string {
	return fmt.Sprintf("phaseMachine{current: %s, transitions: %d}", m.current, m.total)
}
