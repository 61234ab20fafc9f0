package framework

// NonDominatedFront incrementally builds the set of encodings of population
// that no other member dominates over objectives. A candidate that dominates
// front members evicts them; a dominated candidate is dropped; incomparable
// candidates are kept side by side.
func NonDominatedFront(objectives []ObjectiveID, population []Encoding) ([]Encoding, error) {
	front := make([]Encoding, 0, len(population))
	for _, candidate := range population {
		dominated := false
		kept := front[:0:0]
		for _, member := range front {
			flag, err := Compare(candidate, member, objectives)
			if err != nil {
				return nil, err
			}
			switch flag {
			case -1:
				// member is evicted
			case 1:
				dominated = true
				kept = append(kept, member)
			default:
				kept = append(kept, member)
			}
			if dominated {
				break
			}
		}
		if dominated {
			continue
		}
		front = append(kept, candidate)
	}
	return front, nil
}

// PreferenceSort partitions population into ranked fronts for many-objective
// selection. Front 0 is the preference front: for every objective the
// encoding with the lowest distance (ties go to the shorter encoding) is
// forced into it. The rest is split into non-dominated fronts until the
// fronts hold size encodings or the candidates run out. Ranks are written
// back onto the encodings.
func PreferenceSort(population []Encoding, objectives []ObjectiveID, size int) ([][]Encoding, error) {
	fronts := [][]Encoding{{}}
	if len(objectives) == 0 || len(population) == 0 {
		return fronts, nil
	}

	preferred := make(map[EncodingID]struct{})
	for _, id := range objectives {
		var best Encoding
		bestDistance := 0.0
		for _, e := range population {
			d, err := ObjectiveDistance(e, id)
			if err != nil {
				return nil, err
			}
			if best == nil || d < bestDistance || (d == bestDistance && e.Length() < best.Length()) {
				best = e
				bestDistance = d
			}
		}
		if _, ok := preferred[best.ID()]; ok {
			continue
		}
		preferred[best.ID()] = struct{}{}
		best.SetRank(0)
		fronts[0] = append(fronts[0], best)
	}

	remaining := make([]Encoding, 0, len(population)-len(fronts[0]))
	for _, e := range population {
		if _, ok := preferred[e.ID()]; !ok {
			remaining = append(remaining, e)
		}
	}

	selected := len(fronts[0])
	rank := 1
	for selected < size && len(remaining) > 0 {
		front, err := NonDominatedFront(objectives, remaining)
		if err != nil {
			return nil, err
		}
		inFront := make(map[EncodingID]struct{}, len(front))
		for _, e := range front {
			e.SetRank(rank)
			inFront[e.ID()] = struct{}{}
		}
		fronts = append(fronts, front)
		selected += len(front)
		rank++

		next := remaining[:0:0]
		for _, e := range remaining {
			if _, ok := inFront[e.ID()]; !ok {
				next = append(next, e)
			}
		}
		remaining = next
	}
	return fronts, nil
}

// NonDominatedSort performs fast non-dominated sorting on the population and
// assigns every encoding the index of its front as rank.
func NonDominatedSort(population []Encoding, objectives []ObjectiveID) ([][]Encoding, error) {
	if len(population) == 0 {
		return [][]Encoding{{}}, nil
	}

	var fronts [][]Encoding
	dominated := make([][]int, len(population))
	domCount := make([]int, len(population))

	// Calculate domination for each encoding
	for i := 0; i < len(population); i++ {
		for j := i + 1; j < len(population); j++ {
			flag, err := Compare(population[i], population[j], objectives)
			if err != nil {
				return nil, err
			}
			switch flag {
			case -1:
				dominated[i] = append(dominated[i], j)
				domCount[j]++
			case 1:
				dominated[j] = append(dominated[j], i)
				domCount[i]++
			}
		}
	}

	// Find first front
	var current []int
	for i := range population {
		if domCount[i] == 0 {
			current = append(current, i)
		}
	}

	// Find subsequent fronts
	for rank := 0; len(current) > 0; rank++ {
		front := make([]Encoding, 0, len(current))
		var next []int
		for _, idx := range current {
			population[idx].SetRank(rank)
			front = append(front, population[idx])
			for _, d := range dominated[idx] {
				domCount[d]--
				if domCount[d] == 0 {
					next = append(next, d)
				}
			}
		}
		fronts = append(fronts, front)
		current = next
	}

	return fronts, nil
}

// FrontAt returns fronts[i], or an empty front when i is out of range.
func FrontAt(fronts [][]Encoding, i int) []Encoding {
	if i < 0 || i >= len(fronts) {
		return []Encoding{}
	}
	return fronts[i]
}
