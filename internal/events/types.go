package events

// Event is the base interface for everything carried on the bus.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicRun    = "run"
	TopicLogs   = "logs"
	TopicHealth = "health"
)

// Event type constants
const (
	EventTypeRunUpdated   = "run.updated"
	EventTypeLogAppended  = "logs.appended"
	EventTypeLogStatus    = "logs.status"
	EventTypeHealthProbed = "health.probed"
)
