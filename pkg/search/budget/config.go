package budget

import (
	"errors"

	"k8s.io/utils/clock"

	"github.com/mihai-snyk/coverage-search/apis/search/v1alpha1"
)

// ErrMissingProgress is returned when a stagnation limit is configured
// without a way to observe progress.
var ErrMissingProgress = errors.New("maxStagnationIterations requires a progress function")

// FromConfiguration builds a Manager with one budget per configured limit.
// progress feeds the stagnation budget and may only be nil when no
// stagnation limit is set.
func FromConfiguration(c clock.PassiveClock, b v1alpha1.Budgets, progress func() int) (*Manager, error) {
	if b.MaxStagnationIterations != nil && progress == nil {
		return nil, ErrMissingProgress
	}

	m := NewManager()
	if b.MaxEvaluations != nil {
		m.Add(NewEvaluationBudget(int(*b.MaxEvaluations)))
	}
	if b.MaxIterations != nil {
		m.Add(NewIterationBudget(int(*b.MaxIterations)))
	}
	if b.SearchTime != nil {
		m.Add(NewSearchTimeBudget(c, b.SearchTime.Duration))
	}
	if b.TotalTime != nil {
		m.Add(NewTotalTimeBudget(c, b.TotalTime.Duration))
	}
	if b.MaxStagnationIterations != nil {
		m.Add(NewStagnationBudget(int(*b.MaxStagnationIterations), progress))
	}
	return m, nil
}
