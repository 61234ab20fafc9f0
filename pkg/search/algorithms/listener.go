package algorithms

import (
	"context"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// EventType names a phase transition of the search loop.
type EventType string

const (
	SearchStart        EventType = "SearchStart"
	InitializeStart    EventType = "InitializeStart"
	InitializeComplete EventType = "InitializeComplete"
	IterationComplete  EventType = "IterationComplete"
	SearchComplete     EventType = "SearchComplete"
)

// Event is a snapshot of the search taken at a phase transition.
type Event struct {
	Type      EventType
	Algorithm string
	State     State
	Iteration int

	Covered        int
	Uncovered      int
	Current        int
	ArchiveSize    int
	PopulationSize int
	// Progress is the used fraction of the tightest budget
	Progress float64
}

// Listener observes a single search call.
type Listener interface {
	Notify(ctx context.Context, event Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event Event)

func (f ListenerFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

type observers struct {
	algorithm *SearchAlgorithm
	budget    framework.BudgetManager
	listeners []Listener
}

func (o observers) notify(ctx context.Context, t EventType, iteration int) {
	if len(o.listeners) == 0 {
		return
	}
	m := o.algorithm.manager
	event := Event{
		Type:           t,
		Algorithm:      o.algorithm.name,
		State:          o.algorithm.state,
		Iteration:      iteration,
		Covered:        len(m.CoveredObjectives()),
		Uncovered:      len(m.UncoveredObjectives()),
		Current:        len(m.CurrentObjectiveIDs()),
		ArchiveSize:    m.Archive().Size(),
		PopulationSize: len(o.algorithm.strategy.population()),
		Progress:       o.budget.Progress(),
	}
	for _, l := range o.listeners {
		l.Notify(ctx, event)
	}
}
