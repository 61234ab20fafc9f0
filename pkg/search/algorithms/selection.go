package algorithms

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/diversity"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Selection shrinks a population to at most size encodings, writing rank
// and crowding distance as it goes. progress is the used budget fraction.
type Selection interface {
	Name() string
	Select(ctx context.Context, population []framework.Encoding, objectives []framework.ObjectiveID, progress float64, size int) ([]framework.Encoding, error)
}

// fill takes whole fronts while they fit and truncates the first one that
// does not by crowding distance.
func fill(fronts [][]framework.Encoding, objectives []framework.ObjectiveID, size int) ([]framework.Encoding, error) {
	selected := make([]framework.Encoding, 0, size)
	for _, front := range fronts {
		if len(selected) >= size {
			break
		}
		if err := diversity.CrowdingDistance(front, objectives); err != nil {
			return nil, err
		}
		if len(selected)+len(front) <= size {
			selected = append(selected, front...)
			continue
		}
		diversity.SortByCrowdingDistance(front)
		selected = append(selected, front[:size-len(selected)]...)
	}
	return selected, nil
}

// MOSA forces the best encoding per objective into the first front and
// fills the rest by dominance.
type MOSA struct{}

func (MOSA) Name() string { return "MOSA" }

func (MOSA) Select(ctx context.Context, population []framework.Encoding, objectives []framework.ObjectiveID, _ float64, size int) ([]framework.Encoding, error) {
	if len(objectives) == 0 {
		return population, nil
	}
	fronts, err := framework.PreferenceSort(population, objectives, size)
	if err != nil {
		return nil, err
	}
	klog.FromContext(ctx).V(5).Info("Preference sorted", "fronts", len(fronts), "preferred", len(framework.FrontAt(fronts, 0)))
	return fill(fronts, objectives, size)
}

// NSGAII ranks by fast non-dominated sorting.
type NSGAII struct{}

func (NSGAII) Name() string { return "NSGA-II" }

func (NSGAII) Select(_ context.Context, population []framework.Encoding, objectives []framework.ObjectiveID, _ float64, size int) ([]framework.Encoding, error) {
	if len(objectives) == 0 {
		return truncate(population, size), nil
	}
	fronts, err := framework.NonDominatedSort(population, objectives)
	if err != nil {
		return nil, err
	}
	return fill(fronts, objectives, size)
}

// PCSEA keeps the corner solutions of the whole population.
type PCSEA struct{}

func (PCSEA) Name() string { return "PCSEA" }

func (PCSEA) Select(_ context.Context, population []framework.Encoding, objectives []framework.ObjectiveID, _ float64, size int) ([]framework.Encoding, error) {
	return diversity.CornerSort(population, objectives, size)
}

// RVEA assigns encodings to reference vectors and keeps the one with the
// smallest angle-penalised distance per vector. The penalty grows with
// progress raised to Alpha.
type RVEA struct {
	Alpha float64
}

func (RVEA) Name() string { return "RVEA" }

func (r RVEA) Select(_ context.Context, population []framework.Encoding, objectives []framework.ObjectiveID, progress float64, size int) ([]framework.Encoding, error) {
	vectors := diversity.ReferenceVectors(len(objectives))
	return diversity.ReferenceVectorSelect(population, objectives, vectors, progress, r.Alpha, size)
}

func truncate(population []framework.Encoding, size int) []framework.Encoding {
	if len(population) <= size {
		return population
	}
	return population[:size]
}
