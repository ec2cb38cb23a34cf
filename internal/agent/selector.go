package agent

import (
	"slices"
	"strings"
)

// ParseToolSelection turns a model's free-text answer into an ordered,
// duplicate-free list of known tool names. Each non-empty line is searched
// case-insensitively for every known name; names found on the same line are
// ordered by position. A name mentioned inside prose still counts.
func ParseToolSelection(text string, known []string) []string {
	type hit struct {
		pos  int
		name string
	}

	var selected []string
	seen := make(map[string]bool, len(known))
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		var hits []hit
		for _, name := range known {
			if i := strings.Index(line, strings.ToLower(name)); i >= 0 {
				hits = append(hits, hit{pos: i, name: name})
			}
		}
		slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })
		for _, h := range hits {
			if !seen[h.name] {
				seen[h.name] = true
				selected = append(selected, h.name)
			}
		}
	}
	return selected
}
