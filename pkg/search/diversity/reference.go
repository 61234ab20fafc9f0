package diversity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// ReferenceVectors returns unit reference vectors for m objectives: one per
// objective axis plus the normalised centroid. Axis vectors keep one
// champion per objective; the centroid keeps a compromise.
func ReferenceVectors(m int) [][]float64 {
	if m <= 0 {
		return nil
	}
	vectors := make([][]float64, 0, m+1)
	for j := 0; j < m; j++ {
		v := make([]float64, m)
		v[j] = 1
		vectors = append(vectors, v)
	}
	if m > 1 {
		c := make([]float64, m)
		for j := range c {
			c[j] = 1 / math.Sqrt(float64(m))
		}
		vectors = append(vectors, c)
	}
	return vectors
}

// smallestAngles returns, per reference vector, the angle to its closest
// neighbour. It normalises the angle penalty of each subpopulation.
func smallestAngles(vectors [][]float64) []float64 {
	gamma := make([]float64, len(vectors))
	for i := range vectors {
		gamma[i] = math.Pi / 2
		for j := range vectors {
			if i == j {
				continue
			}
			if a := angle(vectors[i], vectors[j]); a < gamma[i] {
				gamma[i] = a
			}
		}
		if gamma[i] == 0 {
			gamma[i] = math.SmallestNonzeroFloat64
		}
	}
	return gamma
}

func angle(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	c := floats.Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// ReferenceVectorSelect performs the angle-penalised distance selection of
// RVEA. Objective values are translated by the ideal point, every encoding
// is assigned to the reference vector it makes the smallest angle with, and
// the encoding with the lowest APD in each subpopulation survives. progress
// in [0,1] scales the angle penalty, alpha controls how fast. Survivors get
// rank 0; when they fall short of size the best remaining encodings by APD
// fill up with rank 1.
func ReferenceVectorSelect(population []framework.Encoding, objectives []framework.ObjectiveID, vectors [][]float64, progress, alpha float64, size int) ([]framework.Encoding, error) {
	n, m := len(population), len(objectives)
	if size > n {
		size = n
	}
	if size <= 0 {
		return []framework.Encoding{}, nil
	}
	if m == 0 || len(vectors) == 0 {
		return append([]framework.Encoding(nil), population[:size]...), nil
	}

	values := make([][]float64, n)
	ideal := make([]float64, m)
	for j := range ideal {
		ideal[j] = math.Inf(1)
	}
	for i, e := range population {
		values[i] = make([]float64, m)
		for j, id := range objectives {
			d, err := framework.ObjectiveDistance(e, id)
			if err != nil {
				return nil, err
			}
			values[i][j] = d
			ideal[j] = math.Min(ideal[j], d)
		}
	}
	for i := range values {
		floats.Sub(values[i], ideal)
	}

	gamma := smallestAngles(vectors)
	penalty := float64(m) * math.Pow(math.Max(0, math.Min(1, progress)), alpha)

	apd := make([]float64, n)
	assigned := make([]int, n)
	for i, v := range values {
		best, bestAngle := 0, math.Inf(1)
		for k, ref := range vectors {
			if a := angle(v, ref); a < bestAngle {
				best, bestAngle = k, a
			}
		}
		assigned[i] = best
		apd[i] = (1 + penalty*bestAngle/gamma[best]) * floats.Norm(v, 2)
	}

	elite := make(map[int]int, len(vectors))
	for i := range population {
		k := assigned[i]
		if cur, ok := elite[k]; !ok || apd[i] < apd[cur] {
			elite[k] = i
		}
	}

	survivors := make([]int, 0, len(elite))
	chosen := make([]bool, n)
	for _, i := range elite {
		survivors = append(survivors, i)
		chosen[i] = true
	}
	byAPD := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			if apd[idx[a]] == apd[idx[b]] {
				return idx[a] < idx[b]
			}
			return apd[idx[a]] < apd[idx[b]]
		})
	}
	byAPD(survivors)

	out := make([]framework.Encoding, 0, size)
	for _, i := range survivors {
		if len(out) == size {
			break
		}
		population[i].SetRank(0)
		out = append(out, population[i])
	}
	if len(out) < size {
		rest := make([]int, 0, n-len(survivors))
		for i := range population {
			if !chosen[i] {
				rest = append(rest, i)
			}
		}
		byAPD(rest)
		for _, i := range rest[:size-len(out)] {
			population[i].SetRank(1)
			out = append(out, population[i])
		}
	}
	return out, nil
}
