package model

import "time"

// TraceStep is the finalized timing and cost record of one step.
type TraceStep struct {
	ID         string     `json:"id"`
	Action     string     `json:"action,omitempty"`
	Group      string     `json:"group,omitempty"`
	Executor   string     `json:"executor,omitempty"`
	Status     StepStatus `json:"status"`
	CostUSD    float64    `json:"cost_usd"`
	Retries    int        `json:"retries"`
	DurationMS *int64     `json:"duration_ms,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Timed reports whether the step carries both a start timestamp and a duration.
func (s TraceStep) Timed() bool {
	return s.StartedAt != nil && s.DurationMS != nil
}

// Duration returns the step duration in milliseconds, zero when missing.
func (s TraceStep) Duration() int64 {
	if s.DurationMS == nil || *s.DurationMS < 0 {
		return 0
	}
	return *s.DurationMS
}

// Trace is the read-only execution record received after a run completes.
type Trace struct {
	PlanningMS   int64       `json:"planning_ms"`
	ExecutionMS  int64       `json:"execution_ms"`
	TotalCostUSD float64     `json:"total_cost_usd"`
	Steps        []TraceStep `json:"steps"`
}

// Clone returns a deep copy of the trace.
func (t *Trace) Clone() *Trace {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Steps != nil {
		cp.Steps = append([]TraceStep(nil), t.Steps...)
	}
	return &cp
}
