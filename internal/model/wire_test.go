package model

import (
	"errors"
	"testing"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind InboundKind
		wantErr  bool
	}{
		{
			name:     "tagged event",
			raw:      `{"task_id":"t1","event":"step_started","data":{"step_id":"s1"}}`,
			wantKind: InboundEvent,
		},
		{
			name:     "event without data",
			raw:      `{"task_id":"t1","event":"planning_started"}`,
			wantKind: InboundEvent,
		},
		{
			name:     "terminal result",
			raw:      `{"task_id":"t1","status":"completed","duration_ms":1200,"cost_usd":0.01,"error":null}`,
			wantKind: InboundResult,
		},
		{
			name:     "server error",
			raw:      `{"error":"command is required"}`,
			wantKind: InboundError,
		},
		{
			name:     "unrecognized object",
			raw:      `{"hello":"world"}`,
			wantKind: InboundUnknown,
		},
		{
			name:    "not json",
			raw:     `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInbound([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.Kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", in.Kind, tt.wantKind)
			}
		})
	}
}

func TestDecodeInbound_ResultFields(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"task_id":"t9","status":"partial","duration_ms":4200,"cost_usd":0.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Result.TaskID != "t9" || in.Result.Status != "partial" {
		t.Errorf("unexpected result identity: %+v", in.Result)
	}
	if in.Result.DurationMS == nil || *in.Result.DurationMS != 4200 {
		t.Errorf("duration not decoded: %v", in.Result.DurationMS)
	}
	if in.Result.CostUSD == nil || *in.Result.CostUSD != 0.5 {
		t.Errorf("cost not decoded: %v", in.Result.CostUSD)
	}
}

func TestDecodeTrace(t *testing.T) {
	raw := []byte(`{"planning_ms":200,"execution_ms":800,"total_cost_usd":0.02,"steps":[
		{"id":"a","status":"completed","duration_ms":300,"started_at":"2025-01-01T10:00:00.250000+00:00"},
		{"id":"b","status":"failed","error":"timeout"}]}`)

	tr := DecodeTrace(raw)
	if tr == nil {
		t.Fatal("expected trace, got nil")
	}
	if len(tr.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(tr.Steps))
	}
	if !tr.Steps[0].Timed() {
		t.Error("step a should be timed")
	}
	if tr.Steps[1].Timed() {
		t.Error("step b should not be timed")
	}
	if tr.Steps[1].Duration() != 0 {
		t.Errorf("missing duration should read as 0, got %d", tr.Steps[1].Duration())
	}

	if DecodeTrace([]byte(`{"steps":"nope"}`)) != nil {
		t.Error("malformed trace should decode to nil")
	}
	if DecodeTrace(nil) != nil {
		t.Error("absent trace should decode to nil")
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"", "json", "CSV", " summary "} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDecodeLogEntry(t *testing.T) {
	e, err := DecodeLogEntry([]byte(`{"ts":"2025-01-01T10:00:00+00:00","level":"INFO","logger":"evoco","message":"ready"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Source != "evoco" || e.Message != "ready" || e.Level != "INFO" {
		t.Errorf("unexpected entry: %+v", e)
	}

	if _, err := DecodeLogEntry([]byte(`{"level":"INFO"}`)); err == nil {
		t.Error("expected error for entry without message")
	}
	if _, err := DecodeLogEntry([]byte(`[1,2`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
