package algorithms

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/mihai-snyk/coverage-search/apis/search/v1alpha1"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
	"github.com/mihai-snyk/coverage-search/pkg/search/objectives"
)

var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// NewRandomSearch samples one encoding per iteration.
func NewRandomSearch(manager objectives.Manager, sampler framework.Sampler) *SearchAlgorithm {
	return newSearchAlgorithm("Random", manager, &randomSearch{sampler: sampler})
}

// NewEvolutionary builds an evolutionary search around selection.
func NewEvolutionary(manager objectives.Manager, sampler framework.Sampler, variation framework.Variation,
	selection Selection, options Options, rng *rand.Rand) *SearchAlgorithm {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return newSearchAlgorithm(selection.Name(), manager, &evolutionary{
		options:   options,
		sampler:   sampler,
		variation: variation,
		selection: selection,
		rand:      rng,
	})
}

// New builds the algorithm named in a defaulted configuration together with
// its objective manager.
func New(c *v1alpha1.SearchConfiguration, runner framework.Runner, sampler framework.Sampler, variation framework.Variation) (*SearchAlgorithm, error) {
	manager, err := objectives.New(objectives.Kind(c.ObjectiveManager), runner)
	if err != nil {
		return nil, err
	}

	var selection Selection
	switch c.Algorithm {
	case v1alpha1.AlgorithmRandom:
		return NewRandomSearch(manager, sampler), nil
	case v1alpha1.AlgorithmMOSA:
		selection = MOSA{}
	case v1alpha1.AlgorithmNSGAII:
		selection = NSGAII{}
	case v1alpha1.AlgorithmPCSEA:
		selection = PCSEA{}
	case v1alpha1.AlgorithmRVEA:
		alpha := v1alpha1.DefaultRVEAAlpha
		if c.RVEAAlpha != nil {
			alpha = *c.RVEAAlpha
		}
		selection = RVEA{Alpha: alpha}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Algorithm)
	}

	options := DefaultOptions()
	if c.PopulationSize != nil {
		options.PopulationSize = int(*c.PopulationSize)
	}
	if c.CrossoverProbability != nil {
		options.CrossoverProbability = *c.CrossoverProbability
	}
	if c.RestartFraction != nil {
		options.RestartFraction = *c.RestartFraction
	}
	if c.TournamentSize != nil {
		options.TournamentSize = int(*c.TournamentSize)
	}

	var rng *rand.Rand
	if c.Seed != nil {
		rng = rand.New(rand.NewPCG(*c.Seed, *c.Seed))
	}
	return NewEvolutionary(manager, sampler, variation, selection, options, rng), nil
}
