package objectives

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// populationPolicy keeps every objective active for the whole search and
// only fills the archive from the final population.
type populationPolicy struct{}

func (populationPolicy) load(m *ObjectiveManager, subject framework.Subject) {
	for _, o := range subject.Objectives() {
		m.current.Insert(o.ID())
	}
}

func (populationPolicy) handleCovered(_ context.Context, m *ObjectiveManager, objective framework.ObjectiveFunction, _ framework.Encoding) ([]framework.ObjectiveFunction, error) {
	if m.uncovered.Has(objective.ID()) {
		m.uncovered.Delete(objective.ID())
		m.covered.Insert(objective.ID())
	}
	return nil, nil
}

func (populationPolicy) handleUncovered(context.Context, *ObjectiveManager, framework.ObjectiveFunction, framework.Encoding) error {
	return nil
}

func (populationPolicy) finalize(_ context.Context, m *ObjectiveManager, population []framework.Encoding) error {
	for _, objective := range m.CoveredObjectives() {
		var best framework.Encoding
		for _, e := range population {
			if d, ok := e.Distance(objective.ID()); !ok || d != 0 {
				continue
			}
			if best == nil || e.Length() < best.Length() {
				best = e
			}
		}
		if best == nil {
			continue
		}
		if err := m.offer(objective, best); err != nil {
			return err
		}
	}
	return nil
}

// uncoveredPolicy archives an objective as soon as it is covered and stops
// evaluating it.
type uncoveredPolicy struct{}

func (uncoveredPolicy) load(m *ObjectiveManager, subject framework.Subject) {
	for _, o := range subject.Objectives() {
		m.current.Insert(o.ID())
	}
}

func (uncoveredPolicy) handleCovered(ctx context.Context, m *ObjectiveManager, objective framework.ObjectiveFunction, encoding framework.Encoding) ([]framework.ObjectiveFunction, error) {
	if err := m.offer(objective, encoding); err != nil {
		return nil, err
	}
	m.markCovered(objective)
	klog.FromContext(ctx).V(4).Info("Covered objective", "objective", objective.ID(), "encoding", encoding.ID())
	return nil, nil
}

func (uncoveredPolicy) handleUncovered(context.Context, *ObjectiveManager, framework.ObjectiveFunction, framework.Encoding) error {
	return nil
}

func (uncoveredPolicy) finalize(context.Context, *ObjectiveManager, []framework.Encoding) error {
	return nil
}

// structuralPolicy starts from the root objectives and, whenever one is
// covered, makes its children current.
type structuralPolicy struct {
	uncoveredPolicy
	// shallow marks every objective shallow on load
	shallow bool
}

func (p structuralPolicy) load(m *ObjectiveManager, subject framework.Subject) {
	for _, o := range subject.Objectives() {
		o.SetShallow(p.shallow)
		if o.Parent() == nil {
			m.current.Insert(o.ID())
		}
	}
}

func (p structuralPolicy) handleCovered(ctx context.Context, m *ObjectiveManager, objective framework.ObjectiveFunction, encoding framework.Encoding) ([]framework.ObjectiveFunction, error) {
	if _, err := p.uncoveredPolicy.handleCovered(ctx, m, objective, encoding); err != nil {
		return nil, err
	}

	var unlocked []framework.ObjectiveFunction
	for _, child := range objective.Children() {
		if m.covered.Has(child.ID()) || m.current.Has(child.ID()) {
			continue
		}
		if _, known := m.objectives[child.ID()]; !known {
			continue
		}
		m.current.Insert(child.ID())
		unlocked = append(unlocked, child)
	}
	if len(unlocked) > 0 {
		klog.FromContext(ctx).V(4).Info("Unlocked objectives", "parent", objective.ID(), "count", len(unlocked))
	}
	return unlocked, nil
}
