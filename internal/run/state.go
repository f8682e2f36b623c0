package run

import (
	"github.com/aristath/runconsole/internal/model"
)

// ConnState is the connection state of a run.
type ConnState string

const (
	StateIdle       ConnState = "idle"       // No run submitted
	StateConnecting ConnState = "connecting" // Channel being opened
	StateRunning    ConnState = "running"    // Channel open, command sent
	StateDone       ConnState = "done"       // Terminal result received
	StateError      ConnState = "error"      // Transport or server failure
)

// Phase labels reported by planning events.
const (
	PhasePlanning   = "planning"
	PhaseExecuting  = "executing"
	PhaseReplanning = "replanning"
	PhaseDone       = "done"
)

// RunState is the canonical view of one run, rebuilt purely from channel events.
type RunState struct {
	Conn         ConnState
	TaskID       string
	Command      string
	Format       model.OutputFormat
	Phase        string
	Steps        []model.Step
	Reasoning    string // Latest planning_reasoning text
	ReplanReason string
	PlanningMS   int64
	Completed    int // Steps that reached completed or failed
	Trace        *model.Trace
	Result       *model.TaskResult
	DurationMS   int64
	CostUSD      float64
	Error        string
}

// Clone returns a deep copy so snapshots can be handed across goroutines.
func (s RunState) Clone() RunState {
	cp := s
	cp.Steps = model.CloneSteps(s.Steps)
	cp.Trace = s.Trace.Clone()
	if s.Result != nil {
		res := *s.Result
		cp.Result = &res
	}
	return cp
}

// Terminal reports whether the run has ended, successfully or not.
func (s RunState) Terminal() bool {
	return s.Conn == StateDone || s.Conn == StateError
}

// Counts tallies steps by status.
func (s RunState) Counts() map[model.StepStatus]int {
	counts := make(map[model.StepStatus]int, 5)
	for _, step := range s.Steps {
		counts[step.Status]++
	}
	return counts
}

func (s RunState) stepIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return i
		}
	}
	return -1
}
