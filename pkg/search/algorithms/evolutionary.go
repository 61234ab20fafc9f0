package algorithms

import (
	"context"
	"math/rand/v2"

	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Options of the evolutionary loop.
type Options struct {
	PopulationSize       int
	CrossoverProbability float64
	// RestartFraction of every offspring generation is sampled afresh
	RestartFraction float64
	TournamentSize  int
}

func DefaultOptions() Options {
	return Options{
		PopulationSize:       50,
		CrossoverProbability: 0.75,
		RestartFraction:      0.1,
		TournamentSize:       2,
	}
}

// evolutionary breeds offspring by tournament selection, crossover and
// mutation, and shrinks parents plus offspring back to the population size
// with a Selection.
type evolutionary struct {
	options   Options
	sampler   framework.Sampler
	variation framework.Variation
	selection Selection
	rand      *rand.Rand

	pop []framework.Encoding
}

func (e *evolutionary) population() []framework.Encoding {
	return e.pop
}

func (e *evolutionary) initialize(ctx context.Context, r *run) error {
	e.pop = nil
	samples := make([]framework.Encoding, 0, e.options.PopulationSize)
	for range e.options.PopulationSize {
		samples = append(samples, e.sampler.Sample())
	}
	evaluated, err := r.manager.EvaluateMany(ctx, samples, r.budget, r.termination)
	e.pop = evaluated
	if err != nil {
		return err
	}
	return e.environmentalSelection(ctx, r)
}

func (e *evolutionary) iterate(ctx context.Context, r *run) error {
	offspring := e.breed()
	evaluated, err := r.manager.EvaluateMany(ctx, offspring, r.budget, r.termination)
	e.pop = append(e.pop, evaluated...)
	if err != nil {
		return err
	}
	return e.environmentalSelection(ctx, r)
}

func (e *evolutionary) environmentalSelection(ctx context.Context, r *run) error {
	if len(e.pop) == 0 {
		return nil
	}
	if err := r.manager.Refresh(ctx, e.pop); err != nil {
		return err
	}
	selected, err := e.selection.Select(ctx, e.pop, r.manager.CurrentObjectiveIDs(), r.budget.Progress(), e.options.PopulationSize)
	if err != nil {
		return err
	}
	klog.FromContext(ctx).V(5).Info("Environmental selection", "selection", e.selection.Name(),
		"candidates", len(e.pop), "selected", len(selected))
	e.pop = selected
	return nil
}

func (e *evolutionary) breed() []framework.Encoding {
	size := e.options.PopulationSize
	offspring := make([]framework.Encoding, 0, size)
	for len(offspring) < size {
		if len(e.pop) == 0 || e.rand.Float64() < e.options.RestartFraction {
			offspring = append(offspring, e.sampler.Sample())
			continue
		}

		a, b := e.tournament(), e.tournament()
		if e.rand.Float64() < e.options.CrossoverProbability {
			a, b = e.variation.Crossover(a, b)
		}
		offspring = append(offspring, e.variation.Mutate(a))
		if len(offspring) < size {
			offspring = append(offspring, e.variation.Mutate(b))
		}
	}
	return offspring
}

// tournament prefers lower rank, then larger crowding distance.
func (e *evolutionary) tournament() framework.Encoding {
	best := e.pop[e.rand.IntN(len(e.pop))]
	for i := 1; i < e.options.TournamentSize; i++ {
		contestant := e.pop[e.rand.IntN(len(e.pop))]
		if contestant.Rank() < best.Rank() ||
			(contestant.Rank() == best.Rank() && contestant.CrowdingDistance() > best.CrowdingDistance()) {
			best = contestant
		}
	}
	return best
}

// randomSearch evaluates one fresh sample per iteration and keeps the best
// encoding per current objective.
type randomSearch struct {
	sampler framework.Sampler
	pop     []framework.Encoding
}

func (s *randomSearch) population() []framework.Encoding {
	return s.pop
}

func (s *randomSearch) initialize(context.Context, *run) error {
	s.pop = nil
	return nil
}

func (s *randomSearch) iterate(ctx context.Context, r *run) error {
	evaluated, err := r.manager.EvaluateMany(ctx, []framework.Encoding{s.sampler.Sample()}, r.budget, r.termination)
	s.pop = append(s.pop, evaluated...)
	if err != nil || len(evaluated) == 0 {
		return err
	}
	if err := r.manager.Refresh(ctx, s.pop); err != nil {
		return err
	}
	objectives := r.manager.CurrentObjectiveIDs()
	if len(objectives) == 0 {
		s.pop = evaluated
		return nil
	}
	fronts, err := framework.PreferenceSort(s.pop, objectives, 1)
	if err != nil {
		return err
	}
	s.pop = framework.FrontAt(fronts, 0)
	return nil
}
