package schema

// ---------------------------------------------------------------------
// Creation Order (Topological / Greedy)
// ---------------------------------------------------------------------

// SortByDependencies orders tables so that referenced tables come before the
// tables referencing them. Tables with no ordering constraint keep their input
// order. Cycles are broken with a scoring heuristic; the tables chosen to break
// a cycle are returned in broken.
func SortByDependencies(tables []string, deps map[string][]string) (sorted []string, broken []string) {
	processed := make(map[string]bool, len(tables))
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	unsatisfied := func(t string) int {
		n := 0
		for _, dep := range deps[t] {
			if inSet[dep] && !processed[dep] {
				n++
			}
		}
		return n
	}

	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t] || unsatisfied(t) > 0 {
				continue
			}
			sorted = append(sorted, t)
			processed[t] = true
			added = true
		}
		if added {
			continue
		}

		// Pass 2: No table added, we have a cycle. Break it using heuristic score.
		// Fewer unsatisfied dependencies is better; being part of a two-table
		// cycle earns a bonus. Ties keep input order.
		best := ""
		bestScore := 0
		for _, t := range tables {
			if processed[t] {
				continue
			}
			score := -unsatisfied(t) * 100
			if inMutualCycle(t, deps, processed) {
				score += 500
			}
			if best == "" || score > bestScore {
				best, bestScore = t, score
			}
		}

		sorted = append(sorted, best)
		processed[best] = true
		broken = append(broken, best)
	}

	return sorted, broken
}

// inMutualCycle reports whether t depends on an unprocessed table that
// depends back on t.
func inMutualCycle(t string, deps map[string][]string, processed map[string]bool) bool {
	for _, dep := range deps[t] {
		if processed[dep] {
			continue
		}
		for _, back := range deps[dep] {
			if back == t {
				return true
			}
		}
	}
	return false
}
