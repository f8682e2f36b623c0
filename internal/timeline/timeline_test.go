package timeline

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/runconsole/internal/model"
)

const eps = 1e-3

func ms(v int64) *int64 { return &v }

func at(base time.Time, offsetMS int64) *time.Time {
	t := base.Add(time.Duration(offsetMS) * time.Millisecond)
	return &t
}

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestBuild_Absolute(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trace := &model.Trace{
		PlanningMS:  900,
		ExecutionMS: 1500,
		Steps: []model.TraceStep{
			{ID: "a", Status: model.StepCompleted, StartedAt: at(base, 0), DurationMS: ms(1000)},
			{ID: "skip", Status: model.StepSkipped},
			{ID: "b", Status: model.StepCompleted, StartedAt: at(base, 500), DurationMS: ms(1000)},
		},
	}

	tl := Build(trace, DefaultOptions())

	if tl.Mode != ModeAbsolute {
		t.Fatalf("mode = %s, want absolute", tl.Mode)
	}
	if tl.TotalMS != 1500 {
		t.Errorf("total = %d, want 1500", tl.TotalMS)
	}
	if tl.Planning != nil {
		t.Error("absolute mode has no planning bar")
	}
	if len(tl.Bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(tl.Bars))
	}

	tests := []struct {
		idx          int
		id           string
		start, width float64
		placeholder  bool
	}{
		{0, "a", 0, 0.667, false},
		{1, "skip", 0, 0, true},
		{2, "b", 0.333, 0.667, false},
	}
	for _, tt := range tests {
		b := tl.Bars[tt.idx]
		if b.StepID != tt.id {
			t.Errorf("bar %d id = %s, want %s", tt.idx, b.StepID, tt.id)
		}
		if !near(b.Start, tt.start) || !near(b.Width, tt.width) {
			t.Errorf("bar %s = (%.3f, %.3f), want (%.3f, %.3f)", tt.id, b.Start, b.Width, tt.start, tt.width)
		}
		if b.Placeholder != tt.placeholder {
			t.Errorf("bar %s placeholder = %v", tt.id, b.Placeholder)
		}
	}
}

func TestBuild_Relative(t *testing.T) {
	trace := &model.Trace{
		PlanningMS:  200,
		ExecutionMS: 800,
		Steps: []model.TraceStep{
			{ID: "s1", DurationMS: ms(300)},
			{ID: "s2", DurationMS: ms(500)},
		},
	}

	tl := Build(trace, DefaultOptions())

	if tl.Mode != ModeRelative {
		t.Fatalf("mode = %s, want relative", tl.Mode)
	}
	if tl.TotalMS != 1000 {
		t.Errorf("total = %d, want 1000", tl.TotalMS)
	}
	if tl.Planning == nil || !near(tl.Planning.Width, 0.2) {
		t.Fatalf("planning bar = %+v, want width 0.2", tl.Planning)
	}

	want := []struct{ start, width float64 }{{0.2, 0.3}, {0.5, 0.5}}
	for i, w := range want {
		b := tl.Bars[i]
		if !near(b.Start, w.start) || !near(b.Width, w.width) {
			t.Errorf("bar %d = (%.3f, %.3f), want (%.3f, %.3f)", i, b.Start, b.Width, w.start, w.width)
		}
	}
}

func TestBuild_MissingDurationAdvancesByZero(t *testing.T) {
	trace := &model.Trace{
		PlanningMS:  100,
		ExecutionMS: 300,
		Steps: []model.TraceStep{
			{ID: "s1", DurationMS: ms(100)},
			{ID: "s2"},
			{ID: "s3", DurationMS: ms(200)},
		},
	}

	tl := Build(trace, DefaultOptions())

	if tl.Bars[1].Width != 0 || tl.Bars[1].DisplayWidth != 0 {
		t.Errorf("zero-duration bar got width %v/%v", tl.Bars[1].Width, tl.Bars[1].DisplayWidth)
	}
	if !near(tl.Bars[1].Start, 0.5) || !near(tl.Bars[2].Start, 0.5) {
		t.Errorf("starts = %.3f, %.3f, want 0.5 for both", tl.Bars[1].Start, tl.Bars[2].Start)
	}
}

func TestBuild_PresentationFloors(t *testing.T) {
	trace := &model.Trace{
		PlanningMS:  1,
		ExecutionMS: 9999,
		Steps: []model.TraceStep{
			{ID: "tiny", DurationMS: ms(1)},
			{ID: "big", DurationMS: ms(9998)},
		},
	}
	opts := DefaultOptions()

	tl := Build(trace, opts)

	tiny := tl.Bars[0]
	if tiny.Width >= opts.MinWidth {
		t.Fatalf("raw width %.5f should be below the floor", tiny.Width)
	}
	if tiny.DisplayWidth != opts.MinWidth {
		t.Errorf("display width = %.5f, want %.5f", tiny.DisplayWidth, opts.MinWidth)
	}
	if tl.Planning.DisplayWidth != opts.MinPlanningWidth {
		t.Errorf("planning display width = %.5f, want %.5f", tl.Planning.DisplayWidth, opts.MinPlanningWidth)
	}
	if big := tl.Bars[1]; big.DisplayWidth != big.Width {
		t.Errorf("wide bar should not be floored: %v != %v", big.DisplayWidth, big.Width)
	}
}

func TestBuild_Degenerate(t *testing.T) {
	if tl := Build(nil, DefaultOptions()); len(tl.Bars) != 0 || tl.TotalMS != 0 {
		t.Errorf("nil trace = %+v, want empty", tl)
	}

	tl := Build(&model.Trace{Steps: []model.TraceStep{{ID: "x", DurationMS: ms(50)}}}, DefaultOptions())
	if tl.TotalMS != 0 || tl.Bars[0].Start != 0 || tl.Bars[0].Width != 0 {
		t.Errorf("zero total should yield zero fractions: %+v", tl.Bars[0])
	}
}
