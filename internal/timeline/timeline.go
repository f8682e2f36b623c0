package timeline

import (
	"time"

	"github.com/aristath/runconsole/internal/model"
)

// Mode identifies how bar positions were derived.
type Mode int

const (
	ModeRelative Mode = iota // Sequential durations after the planning phase
	ModeAbsolute             // Wall-clock start timestamps
)

func (m Mode) String() string {
	if m == ModeAbsolute {
		return "absolute"
	}
	return "relative"
}

// Options controls the presentation floors applied to DisplayWidth.
type Options struct {
	MinWidth         float64 // Floor for any nonzero-duration step bar
	MinPlanningWidth float64 // Floor for the planning bar
}

// DefaultOptions returns the standard legibility floors.
func DefaultOptions() Options {
	return Options{MinWidth: 0.005, MinPlanningWidth: 0.02}
}

// Bar is one step's position on the timeline as fractions of TotalMS.
type Bar struct {
	StepID       string
	Status       model.StepStatus
	Start        float64
	Width        float64
	DisplayWidth float64 // Width after the presentation floor
	DurationMS   int64
	Placeholder  bool // Step had no timing data in absolute mode
}

// Timeline is the bar chart description of one trace.
type Timeline struct {
	Mode     Mode
	TotalMS  int64
	Planning *Bar // Relative mode only
	Bars     []Bar
}

// Build converts a trace into proportional bars. Bars follow the trace's
// step order. A nil trace yields an empty timeline.
func Build(trace *model.Trace, opts Options) Timeline {
	if trace == nil {
		return Timeline{}
	}
	for _, s := range trace.Steps {
		if s.Timed() {
			return absolute(trace, opts)
		}
	}
	return relative(trace, opts)
}

func absolute(trace *model.Trace, opts Options) Timeline {
	var first, last time.Time
	for _, s := range trace.Steps {
		if !s.Timed() {
			continue
		}
		start := *s.StartedAt
		end := start.Add(time.Duration(s.Duration()) * time.Millisecond)
		if first.IsZero() || start.Before(first) {
			first = start
		}
		if last.IsZero() || end.After(last) {
			last = end
		}
	}

	tl := Timeline{Mode: ModeAbsolute, TotalMS: last.Sub(first).Milliseconds()}
	tl.Bars = make([]Bar, 0, len(trace.Steps))
	for _, s := range trace.Steps {
		bar := Bar{StepID: s.ID, Status: s.Status, DurationMS: s.Duration()}
		if !s.Timed() {
			bar.Placeholder = true
			tl.Bars = append(tl.Bars, bar)
			continue
		}
		offset := s.StartedAt.Sub(first).Milliseconds()
		bar.Start = fraction(offset, tl.TotalMS)
		bar.Width = fraction(bar.DurationMS, tl.TotalMS)
		bar.DisplayWidth = floor(bar.Width, bar.DurationMS, opts.MinWidth)
		tl.Bars = append(tl.Bars, bar)
	}
	return tl
}

func relative(trace *model.Trace, opts Options) Timeline {
	planning := max(trace.PlanningMS, 0)
	tl := Timeline{Mode: ModeRelative, TotalMS: planning + max(trace.ExecutionMS, 0)}

	tl.Planning = &Bar{
		StepID:     "planning",
		Status:     model.StepCompleted,
		Width:      fraction(planning, tl.TotalMS),
		DurationMS: planning,
	}
	tl.Planning.DisplayWidth = floor(tl.Planning.Width, planning, opts.MinPlanningWidth)

	offset := planning
	tl.Bars = make([]Bar, 0, len(trace.Steps))
	for _, s := range trace.Steps {
		d := s.Duration()
		bar := Bar{
			StepID:     s.ID,
			Status:     s.Status,
			Start:      fraction(offset, tl.TotalMS),
			Width:      fraction(d, tl.TotalMS),
			DurationMS: d,
		}
		bar.DisplayWidth = floor(bar.Width, d, opts.MinWidth)
		tl.Bars = append(tl.Bars, bar)
		offset += d
	}
	return tl
}

func fraction(ms, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(ms) / float64(total)
}

// floor widens a nonzero-duration bar to at least least. Zero-duration bars
// stay zero.
func floor(width float64, durationMS int64, least float64) float64 {
	if durationMS > 0 && width < least {
		return least
	}
	return width
}
