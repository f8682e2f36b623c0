package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event name constants pushed on the task channel.
const (
	EventPlanningStarted   = "planning_started"
	EventPlanningReasoning = "planning_reasoning"
	EventPlanReady         = "plan_ready"
	EventStepStarted       = "step_started"
	EventStepCompleted     = "step_completed"
	EventStepFailed        = "step_failed"
	EventReplanning        = "replanning"
	EventTaskDone          = "task_done"
)

// OutputFormat selects how the server formats the final output.
type OutputFormat string

const (
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatSummary OutputFormat = "summary"
)

// ParseOutputFormat validates a format name. Empty means JSON.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatSummary:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// CommandMessage is the single client-to-server message on the task channel.
type CommandMessage struct {
	Command      string       `json:"command"`
	OutputFormat OutputFormat `json:"output_format"`
}

// Event is a typed server push carrying a free-form payload.
type Event struct {
	TaskID string          `json:"task_id"`
	Name   string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ReasoningData is the payload of planning_reasoning.
type ReasoningData struct {
	Text string `json:"text"`
}

// PlanReadyData is the payload of plan_ready.
type PlanReadyData struct {
	Steps      []Step `json:"steps"`
	PlanningMS int64  `json:"planning_ms"`
	IsReplan   bool   `json:"is_replan"`
}

// StepData is the payload of step_started, step_completed and step_failed.
type StepData struct {
	StepID string          `json:"step_id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ReplanningData is the payload of replanning.
type ReplanningData struct {
	Reason    string   `json:"reason"`
	FailedIDs []string `json:"failed_ids"`
}

// TaskDoneData is the payload of task_done. Trace stays raw so a malformed
// trace does not discard the rest of the payload.
type TaskDoneData struct {
	Status         string          `json:"status"`
	CostUSD        float64         `json:"cost_usd"`
	DurationMS     int64           `json:"duration_ms"`
	StepsCompleted int             `json:"steps_completed"`
	StepsFailed    int             `json:"steps_failed"`
	Trace          json.RawMessage `json:"trace,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// TaskResult is the final message on the task channel.
type TaskResult struct {
	TaskID       string          `json:"task_id"`
	Status       string          `json:"status"`
	Command      string          `json:"command,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	OutputFormat OutputFormat    `json:"output_format,omitempty"`
	Error        string          `json:"error,omitempty"`
	DurationMS   *int64          `json:"duration_ms,omitempty"`
	CostUSD      *float64        `json:"cost_usd,omitempty"`
	Trace        json.RawMessage `json:"trace,omitempty"`
}

// InboundKind classifies a decoded task-channel message.
type InboundKind int

const (
	InboundUnknown InboundKind = iota // Decodable but unrecognized shape
	InboundEvent                      // Tagged event
	InboundResult                     // Terminal task result
	InboundError                      // Server-side error report
)

// Inbound is one decoded task-channel message.
type Inbound struct {
	Kind   InboundKind
	Event  Event
	Result TaskResult
	Error  string
}

// ErrMalformed is returned when a message is not a JSON object.
var ErrMalformed = errors.New("malformed message")

type probe struct {
	TaskID string  `json:"task_id"`
	Event  string  `json:"event"`
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

// DecodeInbound classifies a raw task-channel message. Tagged events win over
// the task result shape; a bare error field is a server error report.
func DecodeInbound(raw []byte) (Inbound, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case p.Event != "":
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			// data was not an object; keep the tag so unknown-payload handling stays a no-op
			ev = Event{TaskID: p.TaskID, Name: p.Event}
		}
		return Inbound{Kind: InboundEvent, Event: ev}, nil

	case p.TaskID != "" && p.Status != "":
		var res TaskResult
		if err := json.Unmarshal(raw, &res); err != nil {
			res = TaskResult{TaskID: p.TaskID, Status: p.Status}
		}
		return Inbound{Kind: InboundResult, Result: res}, nil

	case p.Error != nil && *p.Error != "":
		return Inbound{Kind: InboundError, Error: *p.Error}, nil
	}

	return Inbound{Kind: InboundUnknown}, nil
}

// DecodeData unmarshals an event payload into v. A missing payload is not an error.
func DecodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// DecodeTrace decodes a raw trace. It returns nil for an absent or malformed trace.
func DecodeTrace(raw json.RawMessage) *Trace {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var t Trace
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}
	return &t
}
