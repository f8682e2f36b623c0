package layout

import (
	"github.com/gammazero/toposort"

	"github.com/aristath/runconsole/internal/model"
)

// hasCycle reports whether the dependency edges contain a cycle. Layout does
// not depend on acyclicity; the flag lets the console warn about it.
func hasCycle(steps []model.Step, edges []Edge) bool {
	if len(edges) == 0 {
		return false
	}

	withIncoming := make(map[string]bool, len(edges))
	sorted := make([]toposort.Edge, 0, len(edges)+len(steps))
	for _, e := range edges {
		if e.From == e.To {
			return true
		}
		sorted = append(sorted, toposort.Edge{e.From, e.To})
		withIncoming[e.To] = true
	}
	for _, s := range steps {
		if !withIncoming[s.ID] {
			sorted = append(sorted, toposort.Edge{nil, s.ID})
		}
	}

	_, err := toposort.Toposort(sorted)
	return err != nil
}
