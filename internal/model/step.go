package model

import "encoding/json"

// StepStatus represents the lifecycle state of a plan step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"   // Planned, not yet started
	StepRunning   StepStatus = "running"   // Dispatched to a worker
	StepCompleted StepStatus = "completed" // Finished successfully
	StepFailed    StepStatus = "failed"    // Finished with error
	StepSkipped   StepStatus = "skipped"   // Never run
)

// IsTerminal reports whether no further transitions can occur.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// Valid reports whether s is one of the known statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepRunning, StepCompleted, StepFailed, StepSkipped:
		return true
	}
	return false
}

// Executor kinds reported by the server.
const (
	ExecutorBrowser = "browser"
	ExecutorLLM     = "llm"
)

// Step represents one unit of work in a plan.
type Step struct {
	ID          string          `json:"id"`                  // Unique within a plan
	Action      string          `json:"action"`              // Free-form action kind (e.g., "navigate", "compare")
	Target      string          `json:"target,omitempty"`    // Target descriptor (site, URL, ...)
	Description string          `json:"description,omitempty"`
	Status      StepStatus      `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`    // Opaque result payload
	Error       string          `json:"error,omitempty"`
	Executor    string          `json:"executor,omitempty"`  // "browser" or "llm"
	Group       string          `json:"group,omitempty"`     // Branch label; empty means aggregation
	DependsOn   []string        `json:"depends_on,omitempty"`
}

// Plan is the decomposed form of a command.
type Plan struct {
	Command string `json:"original_command"`
	Steps   []Step `json:"steps"`
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	cp := s
	if s.DependsOn != nil {
		cp.DependsOn = append([]string(nil), s.DependsOn...)
	}
	if s.Result != nil {
		cp.Result = append(json.RawMessage(nil), s.Result...)
	}
	return cp
}

// CloneSteps returns a deep copy of a step slice, preserving nil.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s.Clone()
	}
	return out
}

// StatusIndex maps step IDs to their status. Later duplicates do not override earlier ones.
func StatusIndex(steps []Step) map[string]StepStatus {
	idx := make(map[string]StepStatus, len(steps))
	for _, s := range steps {
		if _, seen := idx[s.ID]; !seen {
			idx[s.ID] = s.Status
		}
	}
	return idx
}
