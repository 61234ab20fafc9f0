package diversity

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// CornerSort ranks population by how close each encoding lies to a corner
// of the objective space and returns the best size encodings. For every
// objective two rankings are built, one on the objective itself and one on
// the L2 norm of all the other objectives; encodings are then taken
// round-robin from the 2m rankings. Extreme solutions come first, which a
// dominance rank alone would not guarantee. The position in the global
// ranking is written back as rank.
func CornerSort(population []framework.Encoding, objectives []framework.ObjectiveID, size int) ([]framework.Encoding, error) {
	n := len(population)
	if size > n {
		size = n
	}
	if size <= 0 {
		return []framework.Encoding{}, nil
	}
	m := len(objectives)
	if m == 0 {
		out := append([]framework.Encoding(nil), population[:size]...)
		for i, e := range out {
			e.SetRank(i)
		}
		return out, nil
	}

	values := make([][]float64, n)
	for i, e := range population {
		values[i] = make([]float64, m)
		for j, id := range objectives {
			d, err := framework.ObjectiveDistance(e, id)
			if err != nil {
				return nil, err
			}
			values[i][j] = d
		}
	}

	rankings := make([][]int, 0, 2*m)
	rest := make([]float64, 0, m)
	for j := 0; j < m; j++ {
		byObjective := identity(n)
		sort.SliceStable(byObjective, func(a, b int) bool {
			return values[byObjective[a]][j] < values[byObjective[b]][j]
		})

		norms := make([]float64, n)
		for i := range values {
			rest = rest[:0]
			rest = append(rest, values[i][:j]...)
			rest = append(rest, values[i][j+1:]...)
			if len(rest) > 0 {
				norms[i] = floats.Norm(rest, 2)
			}
		}
		byNorm := identity(n)
		sort.SliceStable(byNorm, func(a, b int) bool {
			return norms[byNorm[a]] < norms[byNorm[b]]
		})

		rankings = append(rankings, byObjective, byNorm)
	}

	ranked := make([]int, 0, n)
	used := make([]bool, n)
	next := make([]int, len(rankings))
	for len(ranked) < size {
		for l, ranking := range rankings {
			for next[l] < n && used[ranking[next[l]]] {
				next[l]++
			}
			if next[l] == n {
				continue
			}
			idx := ranking[next[l]]
			used[idx] = true
			ranked = append(ranked, idx)
			if len(ranked) == size {
				break
			}
		}
	}

	out := make([]framework.Encoding, len(ranked))
	for pos, idx := range ranked {
		population[idx].SetRank(pos)
		out[pos] = population[idx]
	}
	return out, nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
