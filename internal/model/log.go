package model

import (
	"encoding/json"
	"errors"
	"time"
)

// LogEntry is one server-emitted log line.
type LogEntry struct {
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`
	Source    string    `json:"logger"`
	Message   string    `json:"message"`
	Traceback string    `json:"traceback,omitempty"`
}

var errEmptyLogEntry = errors.New("log entry has no message")

// DecodeLogEntry decodes a single streamed log entry. Entries without a
// message are rejected so the caller can drop them.
func DecodeLogEntry(raw []byte) (LogEntry, error) {
	var e LogEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return LogEntry{}, err
	}
	if e.Message == "" && e.Traceback == "" {
		return LogEntry{}, errEmptyLogEntry
	}
	return e, nil
}
