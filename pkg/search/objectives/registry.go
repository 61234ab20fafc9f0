package objectives

import (
	"errors"
	"fmt"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Kind selects an objective manager policy.
type Kind string

const (
	KindPopulation Kind = "population"
	KindUncovered  Kind = "uncovered"
	KindStructural Kind = "structural"
	KindTracking   Kind = "tracking"
)

var ErrUnknownObjectiveManager = errors.New("unknown objective manager")

// Kinds lists every supported manager kind.
func Kinds() []Kind {
	return []Kind{KindPopulation, KindUncovered, KindStructural, KindTracking}
}

// New creates the objective manager of the given kind.
func New(kind Kind, runner framework.Runner) (*ObjectiveManager, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	switch kind {
	case KindPopulation:
		return NewPopulationManager(runner), nil
	case KindUncovered:
		return NewUncoveredManager(runner), nil
	case KindStructural:
		return NewStructuralManager(runner), nil
	case KindTracking:
		return NewTrackingManager(runner), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownObjectiveManager, kind)
	}
}

// NewPopulationManager keeps all objectives active and archives from the
// final population.
func NewPopulationManager(runner framework.Runner) *ObjectiveManager {
	return newManager(KindPopulation, populationPolicy{}, runner)
}

// NewUncoveredManager archives eagerly and drops covered objectives.
func NewUncoveredManager(runner framework.Runner) *ObjectiveManager {
	return newManager(KindUncovered, uncoveredPolicy{}, runner)
}

// NewStructuralManager grows the set of current objectives from the roots
// as their parents get covered.
func NewStructuralManager(runner framework.Runner) *ObjectiveManager {
	return newManager(KindStructural, structuralPolicy{}, runner)
}

// NewTrackingManager is a structural manager that only tracks
// covered/uncovered, without computing distances.
func NewTrackingManager(runner framework.Runner) *ObjectiveManager {
	return newManager(KindTracking, structuralPolicy{shallow: true}, runner)
}
