package scene

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/gobwas/glob"
)

// Find returns the ids of elements whose id or name matches the glob
// pattern, parents before children.
func (s *Scene) Find(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	s.walkLocked(s.root, func(el *Element) {
		if g.Match(el.ID) || (el.Name != "" && g.Match(el.Name)) {
			out = append(out, el.ID)
		}
	})
	return out, nil
}

// Suggest returns up to n ids whose id or name is closest to query by edit
// distance, for "did you mean" messages. Candidates further than half the
// query length are dropped.
func (s *Scene) Suggest(query string, n int) []string {
	type scored struct {
		id   string
		dist int
	}

	limit := max(len(query)/2, 1)

	s.mu.RLock()
	var cands []scored
	s.walkLocked(s.root, func(el *Element) {
		d := levenshtein.ComputeDistance(query, el.ID)
		if el.Name != "" {
			d = min(d, levenshtein.ComputeDistance(query, el.Name))
		}
		if d <= limit {
			cands = append(cands, scored{el.ID, d})
		}
	})
	s.mu.RUnlock()

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > n {
		cands = cands[:n]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}
