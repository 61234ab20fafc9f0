package budget

import (
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

var _ framework.BudgetManager = &Manager{}

// Manager combines budgets. The search may continue while every budget has
// something left.
type Manager struct {
	budgets []Budget
}

func NewManager(budgets ...Budget) *Manager {
	return &Manager{budgets: budgets}
}

func (m *Manager) Add(b Budget) {
	m.budgets = append(m.budgets, b)
}

func (m *Manager) Budgets() []Budget {
	return m.budgets
}

func (m *Manager) HasBudgetLeft() bool {
	for _, b := range m.budgets {
		if Remaining(b) <= 0 {
			return false
		}
	}
	return true
}

// Progress returns the used fraction of the tightest budget.
func (m *Manager) Progress() float64 {
	progress := 0.0
	for _, b := range m.budgets {
		if b.Total() <= 0 {
			return 1
		}
		if p := b.Used() / b.Total(); p > progress {
			progress = p
		}
	}
	if progress > 1 {
		return 1
	}
	return progress
}

func (m *Manager) InitializationStarted() {
	for _, b := range m.budgets {
		b.InitializationStarted()
	}
}

func (m *Manager) InitializationStopped() {
	for _, b := range m.budgets {
		b.InitializationStopped()
	}
}

func (m *Manager) SearchStarted() {
	for _, b := range m.budgets {
		b.SearchStarted()
	}
}

func (m *Manager) SearchStopped() {
	for _, b := range m.budgets {
		b.SearchStopped()
	}
}

func (m *Manager) Iteration() {
	for _, b := range m.budgets {
		b.Iteration()
	}
}

func (m *Manager) Evaluation() {
	for _, b := range m.budgets {
		b.Evaluation()
	}
}
