package board

import "github.com/flowdeck-dev/flowdeck/pkg/schema"

// Pick selects the least-loaded candidate: the one with the fewest
// active tasks assigned. Ties go to whichever candidate appears first in
// the slice, so the choice is deterministic for a given enumeration
// order. Returns ErrNoCandidates when the candidate set is empty.
func Pick(candidates []*schema.User, activeTasks []*schema.Task) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}

	counts := make(map[string]int, len(candidates))
	for _, t := range activeTasks {
		if t.AssigneeID != "" {
			counts[t.AssigneeID]++
		}
	}

	best := candidates[0]
	for _, u := range candidates[1:] {
		if counts[u.ID] < counts[best.ID] {
			best = u
		}
	}
	return best.ID, nil
}
