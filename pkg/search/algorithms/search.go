package algorithms

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/archive"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
	"github.com/mihai-snyk/coverage-search/pkg/search/objectives"
)

// State of a SearchAlgorithm.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateSearching
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateInitializing:
		return "Initializing"
	case StateSearching:
		return "Searching"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var ErrSearchInProgress = errors.New("search already in progress")

// strategy is what differs between search algorithms. The search loop owns
// the objective manager, budget and termination handed over in run.
type strategy interface {
	initialize(ctx context.Context, r *run) error
	iterate(ctx context.Context, r *run) error
	population() []framework.Encoding
}

type run struct {
	manager     objectives.Manager
	budget      framework.BudgetManager
	termination framework.TerminationManager
}

// SearchAlgorithm drives one strategy through
// Created -> Initializing -> Searching -> Terminated.
// It is not safe for concurrent use.
type SearchAlgorithm struct {
	name     string
	manager  objectives.Manager
	strategy strategy
	state    State
}

func newSearchAlgorithm(name string, manager objectives.Manager, s strategy) *SearchAlgorithm {
	return &SearchAlgorithm{name: name, manager: manager, strategy: s}
}

func (s *SearchAlgorithm) Name() string {
	return s.name
}

func (s *SearchAlgorithm) State() State {
	return s.state
}

// Population returns the current population.
func (s *SearchAlgorithm) Population() []framework.Encoding {
	return s.strategy.population()
}

// Manager returns the objective manager the algorithm evaluates with.
func (s *SearchAlgorithm) Manager() objectives.Manager {
	return s.manager
}

// Search loads subject and runs until every objective is covered, the budget
// is spent or termination is triggered. Listeners only observe this call.
// Implementation errors abort the search and are returned as is.
func (s *SearchAlgorithm) Search(ctx context.Context, subject framework.Subject, budget framework.BudgetManager,
	termination framework.TerminationManager, listeners ...Listener) (*archive.Archive, error) {
	if s.state == StateInitializing || s.state == StateSearching {
		return nil, ErrSearchInProgress
	}
	logger := klog.FromContext(ctx).WithValues("algorithm", s.name, "subject", subject.Name())
	ctx = klog.NewContext(ctx, logger)
	r := &run{manager: s.manager, budget: budget, termination: termination}
	obs := observers{algorithm: s, budget: budget, listeners: listeners}

	s.manager.Load(subject)
	s.state = StateInitializing
	obs.notify(ctx, SearchStart, 0)
	logger.V(2).Info("Starting search", "objectives", len(subject.Objectives()))

	budget.InitializationStarted()
	obs.notify(ctx, InitializeStart, 0)
	err := s.strategy.initialize(ctx, r)
	budget.InitializationStopped()
	if err != nil {
		s.state = StateTerminated
		return nil, fmt.Errorf("initializing %s: %w", s.name, err)
	}
	obs.notify(ctx, InitializeComplete, 0)

	s.state = StateSearching
	budget.SearchStarted()
	iteration := 0
	for s.manager.HasObjectives() && budget.HasBudgetLeft() && !termination.IsTriggered() && ctx.Err() == nil {
		err := s.strategy.iterate(ctx, r)
		budget.Iteration()
		iteration++
		if err != nil {
			budget.SearchStopped()
			s.state = StateTerminated
			return nil, fmt.Errorf("iteration %d of %s: %w", iteration, s.name, err)
		}
		obs.notify(ctx, IterationComplete, iteration)
		logger.V(4).Info("Completed iteration", "iteration", iteration,
			"covered", len(s.manager.CoveredObjectives()), "uncovered", len(s.manager.UncoveredObjectives()),
			"progress", budget.Progress())
	}
	budget.SearchStopped()

	if err := s.manager.Finalize(ctx, s.strategy.population()); err != nil {
		s.state = StateTerminated
		return nil, fmt.Errorf("finalizing %s: %w", s.name, err)
	}
	s.state = StateTerminated
	obs.notify(ctx, SearchComplete, iteration)
	logger.V(2).Info("Search complete", "iterations", iteration,
		"covered", len(s.manager.CoveredObjectives()), "archive", s.manager.Archive().Size())
	return s.manager.Archive(), nil
}
