package layout

import (
	"strings"

	"github.com/aristath/runconsole/internal/model"
)

// DefaultAggregationGroup is the group label reserved for the aggregation stage.
// Steps with an empty group label also land there.
const DefaultAggregationGroup = "analysis"

// Region identifies which part of the diagram a node belongs to.
type Region int

const (
	RegionBranch      Region = iota // A branch column
	RegionAggregation               // Below all branch columns, centered
	RegionOverflow                  // Defensive fallback below the aggregation stage
)

func (r Region) String() string {
	switch r {
	case RegionBranch:
		return "branch"
	case RegionAggregation:
		return "aggregation"
	default:
		return "overflow"
	}
}

// Options controls diagram geometry.
type Options struct {
	ColumnSpacing    float64 // Horizontal distance between branch columns
	RowSpacing       float64 // Vertical distance between stacked steps
	OriginX          float64 // Horizontal center of the diagram
	OriginY          float64 // Top of the branch region
	AggregationGroup string  // Reserved group name; empty uses DefaultAggregationGroup
	MaxColumns       int     // Branch columns beyond this overflow; 0 means unlimited
}

// DefaultOptions returns the standard diagram geometry.
func DefaultOptions() Options {
	return Options{
		ColumnSpacing:    260,
		RowSpacing:       110,
		AggregationGroup: DefaultAggregationGroup,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ColumnSpacing <= 0 {
		o.ColumnSpacing = d.ColumnSpacing
	}
	if o.RowSpacing <= 0 {
		o.RowSpacing = d.RowSpacing
	}
	if strings.TrimSpace(o.AggregationGroup) == "" {
		o.AggregationGroup = d.AggregationGroup
	}
	return o
}

// Node is a positioned step.
type Node struct {
	ID     string
	Index  int // Position in the input step slice
	X, Y   float64
	Region Region
	Column int // Branch column index, -1 outside the branch region
	Row    int // Row within the node's region
}

// Edge is a directed dependency from one step to another.
type Edge struct {
	From     string
	To       string
	Fallback bool // Synthesized sequential edge, not from dependency metadata
}

// Diagram is the derived layout of a step snapshot.
type Diagram struct {
	Nodes    []Node   // One per distinct step ID, in input order
	Edges    []Edge
	Columns  []string // Branch group labels, left to right
	MaxRows  int      // Height of the tallest branch column
	Fallback bool     // Edges are the sequential fallback chain
	Cyclic   bool     // Dependency edges contain a cycle
}

// Node returns the node for id.
func (d Diagram) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Compute lays out steps as parallel branch columns converging into an
// aggregation stage. It is a pure function of its inputs. The first
// occurrence of a duplicated step ID wins.
func Compute(steps []model.Step, opts Options) Diagram {
	opts = opts.withDefaults()
	unique := dedupe(steps)

	var d Diagram
	buckets, order := partition(unique, opts.AggregationGroup)

	placed := make(map[string]bool, len(unique))
	nodes := make(map[string]Node, len(unique))

	columns := order
	if opts.MaxColumns > 0 && len(columns) > opts.MaxColumns {
		columns = columns[:opts.MaxColumns]
	}
	d.Columns = append([]string(nil), columns...)

	for _, group := range columns {
		if n := len(buckets[group]); n > d.MaxRows {
			d.MaxRows = n
		}
	}

	// Branch columns, centered on the origin.
	center := float64(len(columns)-1) / 2
	for col, group := range columns {
		x := opts.OriginX + (float64(col)-center)*opts.ColumnSpacing
		for row, idx := range buckets[group] {
			s := unique[idx]
			nodes[s.ID] = Node{
				ID:     s.ID,
				X:      x,
				Y:      opts.OriginY + float64(row)*opts.RowSpacing,
				Region: RegionBranch,
				Column: col,
				Row:    row,
			}
			placed[s.ID] = true
		}
	}

	// Aggregation stage directly beneath the tallest column.
	aggTop := opts.OriginY + float64(d.MaxRows)*opts.RowSpacing
	aggRows := 0
	for _, idx := range buckets[aggregationKey] {
		s := unique[idx]
		nodes[s.ID] = Node{
			ID:     s.ID,
			X:      opts.OriginX,
			Y:      aggTop + float64(aggRows)*opts.RowSpacing,
			Region: RegionAggregation,
			Column: -1,
			Row:    aggRows,
		}
		placed[s.ID] = true
		aggRows++
	}

	// Everything else goes below, so every step gets a position.
	overflowTop := aggTop + float64(aggRows)*opts.RowSpacing
	overflowRows := 0
	for _, s := range unique {
		if placed[s.ID] {
			continue
		}
		nodes[s.ID] = Node{
			ID:     s.ID,
			X:      opts.OriginX,
			Y:      overflowTop + float64(overflowRows)*opts.RowSpacing,
			Region: RegionOverflow,
			Column: -1,
			Row:    overflowRows,
		}
		placed[s.ID] = true
		overflowRows++
	}

	d.Nodes = make([]Node, 0, len(unique))
	for i, s := range unique {
		n := nodes[s.ID]
		n.Index = i
		d.Nodes = append(d.Nodes, n)
	}

	d.Edges, d.Fallback = buildEdges(unique)
	if !d.Fallback {
		d.Cyclic = hasCycle(unique, d.Edges)
	}
	return d
}

// aggregationKey is the bucket key used for the aggregation stage.
const aggregationKey = "\x00aggregation"

// partition groups step indexes by label, keeping first-seen bucket order.
// The returned order lists branch buckets only.
func partition(steps []model.Step, aggregation string) (map[string][]int, []string) {
	buckets := make(map[string][]int)
	var order []string
	for i, s := range steps {
		key := strings.TrimSpace(s.Group)
		if key == "" || strings.EqualFold(key, aggregation) {
			key = aggregationKey
		} else if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}
	return buckets, order
}

func dedupe(steps []model.Step) []model.Step {
	seen := make(map[string]bool, len(steps))
	out := make([]model.Step, 0, len(steps))
	for _, s := range steps {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// buildEdges emits dependency edges for every resolvable dependency. With no
// resolvable dependency at all and more than one step, it chains steps in order.
func buildEdges(steps []model.Step) ([]Edge, bool) {
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	var edges []Edge
	for _, s := range steps {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if !known[dep] || seen[dep] {
				continue
			}
			seen[dep] = true
			edges = append(edges, Edge{From: dep, To: s.ID})
		}
	}

	if len(edges) > 0 || len(steps) < 2 {
		return edges, false
	}

	edges = make([]Edge, 0, len(steps)-1)
	for i := 1; i < len(steps); i++ {
		edges = append(edges, Edge{From: steps[i-1].ID, To: steps[i].ID, Fallback: true})
	}
	return edges, true
}
