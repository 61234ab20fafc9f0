package diversity

import (
	"sort"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// BoundaryDistance is the crowding distance extremes receive per objective.
// Fronts of one or two encodings get it once, which is enough to always keep
// them over interior points of the same objective.
const BoundaryDistance = 2.0

// CrowdingDistance calculates crowding distance for the encodings of front
// over objectives and stores it on each encoding, overwriting old values.
// The order of front is not changed.
func CrowdingDistance(front []framework.Encoding, objectives []framework.ObjectiveID) error {
	n := len(front)
	if n == 0 {
		return nil
	}
	if n <= 2 {
		for _, e := range front {
			e.SetCrowdingDistance(BoundaryDistance)
		}
		return nil
	}

	distances := make([]float64, n)
	values := make([]float64, n)
	order := make([]int, n)
	for _, id := range objectives {
		for i, e := range front {
			d, err := framework.ObjectiveDistance(e, id)
			if err != nil {
				return err
			}
			values[i] = d
			order[i] = i
		}

		// Sort by objective
		sort.SliceStable(order, func(i, j int) bool {
			return values[order[i]] < values[order[j]]
		})

		lo, hi := values[order[0]], values[order[n-1]]
		if hi == lo {
			continue
		}

		distances[order[0]] += BoundaryDistance
		distances[order[n-1]] += BoundaryDistance
		for k := 1; k < n-1; k++ {
			distances[order[k]] += (values[order[k+1]] - values[order[k-1]]) / (hi - lo)
		}
	}

	for i, e := range front {
		e.SetCrowdingDistance(distances[i])
	}
	return nil
}

// SortByCrowdingDistance orders front by decreasing crowding distance.
func SortByCrowdingDistance(front []framework.Encoding) {
	sort.SliceStable(front, func(i, j int) bool {
		return front[i].CrowdingDistance() > front[j].CrowdingDistance()
	})
}
