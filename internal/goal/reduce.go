package goal

// Reduce merges raw, potentially duplicated or out-of-order goal events
// into one authoritative record per goal. Records are grouped by
// (goal_set_id, environment, unique_name) and each group collapses to a
// single event:
//
//   - A single record is returned unchanged.
//   - If any record in the group is in success state, a success record
//     wins regardless of competing timestamps: once one worker reports
//     success, later conflicting reports are ignored. Among several
//     success records the one with the lowest version (ties broken by
//     lowest ts) is chosen, so the result does not depend on input order.
//   - Otherwise the record with the maximum ts wins; ties are broken by
//     the higher version.
//
// Reduce is a pure function: it never mutates its input and is
// deterministic for any permutation of the same input set. The relative
// order of distinct goals in the result follows first appearance in the
// input.
func Reduce(events []Event) []Event {
	type groupKey struct {
		goalSetID   string
		environment string
		uniqueName  string
	}

	var order []groupKey
	groups := make(map[groupKey]Event)

	for _, e := range events {
		k := groupKey{e.GoalSetID, e.Environment, e.UniqueName}
		cur, seen := groups[k]
		if !seen {
			order = append(order, k)
			groups[k] = e
			continue
		}
		groups[k] = pickAuthoritative(cur, e)
	}

	reduced := make([]Event, 0, len(order))
	for _, k := range order {
		reduced = append(reduced, groups[k])
	}
	return reduced
}

// pickAuthoritative collapses two same-goal events into one per the
// Reduce policy. It is associative and commutative, so folding a group
// pairwise in any order yields the same record.
func pickAuthoritative(a, b Event) Event {
	aWon, bWon := a.State == Success, b.State == Success
	switch {
	case aWon && !bWon:
		return a
	case bWon && !aWon:
		return b
	case aWon && bWon:
		// Earliest success: lowest version, then lowest ts.
		if a.Version != b.Version {
			if a.Version < b.Version {
				return a
			}
			return b
		}
		if a.Ts <= b.Ts {
			return a
		}
		return b
	}
	// No success in sight: latest report wins.
	if a.Ts != b.Ts {
		if a.Ts > b.Ts {
			return a
		}
		return b
	}
	if a.Version >= b.Version {
		return a
	}
	return b
}
