package layout

import "github.com/aristath/runconsole/internal/model"

// EdgeState is the derived activity of an edge for one snapshot.
type EdgeState int

const (
	EdgeDormant  EdgeState = iota // Neither endpoint active
	EdgeActive                    // Source completed or target running
	EdgeResolved                  // Both endpoints completed
)

func (s EdgeState) String() string {
	switch s {
	case EdgeActive:
		return "active"
	case EdgeResolved:
		return "resolved"
	default:
		return "dormant"
	}
}

// Classify derives the state of e from endpoint statuses. Unknown endpoints
// read as pending.
func Classify(e Edge, statuses map[string]model.StepStatus) EdgeState {
	from := statuses[e.From]
	to := statuses[e.To]

	switch {
	case from == model.StepCompleted && to == model.StepCompleted:
		return EdgeResolved
	case from == model.StepCompleted || to == model.StepRunning:
		return EdgeActive
	default:
		return EdgeDormant
	}
}

// EdgeStates classifies every edge against a step snapshot. The result is
// recomputed on each call and indexed like d.Edges.
func (d Diagram) EdgeStates(steps []model.Step) []EdgeState {
	statuses := model.StatusIndex(steps)
	out := make([]EdgeState, len(d.Edges))
	for i, e := range d.Edges {
		out[i] = Classify(e, statuses)
	}
	return out
}
