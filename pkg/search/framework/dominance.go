package framework

import "fmt"

// ObjectiveDistance returns the distance recorded on e for objective id.
// An objective that was never evaluated for e is an implementation error:
// callers must evaluate every objective they compare on.
func ObjectiveDistance(e Encoding, id ObjectiveID) (float64, error) {
	d, ok := e.Distance(id)
	if !ok {
		return 0, NewImplementationError("distance lookup",
			fmt.Errorf("%w: objective %s, encoding %s", ErrMissingDistance, id, e.ID()))
	}
	return d, nil
}

// Compare checks Pareto dominance between a and b over objectives.
// It returns -1 if a dominates b, 1 if b dominates a and 0 if neither
// dominates the other.
func Compare(a, b Encoding, objectives []ObjectiveID) (int, error) {
	aBetter := false
	bBetter := false
	for _, id := range objectives {
		da, err := ObjectiveDistance(a, id)
		if err != nil {
			return 0, err
		}
		db, err := ObjectiveDistance(b, id)
		if err != nil {
			return 0, err
		}

		if da < db {
			aBetter = true
		} else if db < da {
			bBetter = true
		}
		if aBetter && bBetter {
			return 0, nil
		}
	}

	switch {
	case aBetter:
		return -1, nil
	case bBetter:
		return 1, nil
	default:
		return 0, nil
	}
}

// Dominates checks if a dominates b.
func Dominates(a, b Encoding, objectives []ObjectiveID) (bool, error) {
	flag, err := Compare(a, b, objectives)
	return flag == -1, err
}
