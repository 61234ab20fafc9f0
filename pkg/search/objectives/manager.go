package objectives

import (
	"context"
	"fmt"
	"math"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/archive"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Manager decides which objectives are evaluated, keeps the archive up to
// date and propagates newly reachable objectives.
type Manager interface {
	Kind() Kind

	// Load resets the manager and seeds the objective sets from subject.
	Load(subject framework.Subject)

	// EvaluateOne executes encoding and evaluates every current objective
	// on it. It reports false without executing when the budget is spent or
	// termination was triggered.
	EvaluateOne(ctx context.Context, encoding framework.Encoding, budget framework.BudgetManager, termination framework.TerminationManager) (bool, error)
	// EvaluateMany evaluates encodings in order, re-checking budget and
	// termination before each, and returns the evaluated prefix.
	EvaluateMany(ctx context.Context, encodings []framework.Encoding, budget framework.BudgetManager, termination framework.TerminationManager) ([]framework.Encoding, error)
	// Refresh computes, from stored execution results, the distances of
	// current objectives that encodings have not been evaluated on yet.
	Refresh(ctx context.Context, encodings []framework.Encoding) error
	// Finalize performs the archive sweep at the end of a search.
	Finalize(ctx context.Context, population []framework.Encoding) error

	HasObjectives() bool
	CurrentObjectives() []framework.ObjectiveFunction
	CurrentObjectiveIDs() []framework.ObjectiveID
	CoveredObjectives() []framework.ObjectiveFunction
	UncoveredObjectives() []framework.ObjectiveFunction
	Archive() *archive.Archive
}

// policy holds what differs between the manager kinds.
type policy interface {
	load(m *ObjectiveManager, subject framework.Subject)
	handleCovered(ctx context.Context, m *ObjectiveManager, objective framework.ObjectiveFunction, encoding framework.Encoding) ([]framework.ObjectiveFunction, error)
	handleUncovered(ctx context.Context, m *ObjectiveManager, objective framework.ObjectiveFunction, encoding framework.Encoding) error
	finalize(ctx context.Context, m *ObjectiveManager, population []framework.Encoding) error
}

var _ Manager = &ObjectiveManager{}

// ObjectiveManager runs the evaluation pipeline shared by every kind.
// An objective is never covered and uncovered at once, and only current
// objectives are evaluated.
type ObjectiveManager struct {
	kind   Kind
	policy policy
	runner framework.Runner

	subject    framework.Subject
	archive    *archive.Archive
	objectives map[framework.ObjectiveID]framework.ObjectiveFunction
	exceptions map[string]*ExceptionObjectiveFunction

	current   sets.Set[framework.ObjectiveID]
	covered   sets.Set[framework.ObjectiveID]
	uncovered sets.Set[framework.ObjectiveID]
}

func newManager(kind Kind, p policy, runner framework.Runner) *ObjectiveManager {
	m := &ObjectiveManager{kind: kind, policy: p, runner: runner}
	m.reset()
	return m
}

func (m *ObjectiveManager) reset() {
	m.archive = archive.New()
	m.objectives = make(map[framework.ObjectiveID]framework.ObjectiveFunction)
	m.exceptions = make(map[string]*ExceptionObjectiveFunction)
	m.current = sets.New[framework.ObjectiveID]()
	m.covered = sets.New[framework.ObjectiveID]()
	m.uncovered = sets.New[framework.ObjectiveID]()
}

func (m *ObjectiveManager) Kind() Kind {
	return m.kind
}

func (m *ObjectiveManager) Load(subject framework.Subject) {
	m.reset()
	m.subject = subject
	for _, o := range subject.Objectives() {
		// Objectives are owned by the subject and outlive a search.
		o.SetShallow(false)
		o.ResetDistance()
		m.objectives[o.ID()] = o
		m.uncovered.Insert(o.ID())
	}
	m.policy.load(m, subject)
}

func (m *ObjectiveManager) EvaluateOne(ctx context.Context, encoding framework.Encoding, budget framework.BudgetManager, termination framework.TerminationManager) (bool, error) {
	if !budget.HasBudgetLeft() || termination.IsTriggered() {
		return false, nil
	}
	logger := klog.FromContext(ctx)

	result, err := m.runner.Execute(ctx, m.subject, encoding)
	if err != nil {
		return false, fmt.Errorf("executing encoding %s: %w", encoding.ID(), err)
	}
	budget.Evaluation()
	encoding.SetExecutionResult(result)
	logger.V(5).Info("Executed encoding", "encoding", encoding.ID(), "error", result.HasError())

	if result.HasError() {
		if err := m.handleException(ctx, encoding, result.ErrorIdentifier()); err != nil {
			return true, err
		}
	}

	for _, o := range m.CurrentObjectives() {
		if !m.current.Has(o.ID()) {
			continue
		}
		if err := m.evaluateObjective(ctx, encoding, o); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (m *ObjectiveManager) EvaluateMany(ctx context.Context, encodings []framework.Encoding, budget framework.BudgetManager, termination framework.TerminationManager) ([]framework.Encoding, error) {
	evaluated := make([]framework.Encoding, 0, len(encodings))
	for _, e := range encodings {
		ok, err := m.EvaluateOne(ctx, e, budget, termination)
		if ok {
			evaluated = append(evaluated, e)
		}
		if err != nil {
			return evaluated, err
		}
		if !ok {
			break
		}
	}
	return evaluated, nil
}

// Refresh repeats until no distance is missing, since covering an objective
// on one encoding may unlock objectives the others lack.
func (m *ObjectiveManager) Refresh(ctx context.Context, encodings []framework.Encoding) error {
	for _, e := range encodings {
		if e.ExecutionResult() == nil {
			return framework.NewImplementationError("refresh",
				fmt.Errorf("%w: encoding %s", framework.ErrNotExecuted, e.ID()))
		}
	}
	for {
		refreshed := 0
		for _, e := range encodings {
			for _, o := range m.CurrentObjectives() {
				if _, ok := e.Distance(o.ID()); ok || !m.current.Has(o.ID()) {
					continue
				}
				if err := m.evaluateObjective(ctx, e, o); err != nil {
					return err
				}
				refreshed++
			}
		}
		if refreshed == 0 {
			return nil
		}
		klog.FromContext(ctx).V(5).Info("Refreshed distances", "count", refreshed)
	}
}

func (m *ObjectiveManager) evaluateObjective(ctx context.Context, encoding framework.Encoding, objective framework.ObjectiveFunction) error {
	var distance float64
	if objective.Shallow() {
		distance = 1
		if encoding.ExecutionResult().CoversID(string(objective.ID())) {
			distance = 0
		}
	} else {
		d, err := objective.CalculateDistance(encoding)
		if err != nil {
			return fmt.Errorf("objective %s: %w", objective.ID(), err)
		}
		distance = d
	}
	if math.IsNaN(distance) {
		return framework.NewImplementationError("evaluate objective",
			fmt.Errorf("%w: objective %s, encoding %s", framework.ErrNaNDistance, objective.ID(), encoding.ID()))
	}

	encoding.SetDistance(objective.ID(), distance)
	objective.RecordDistance(distance)

	if distance != 0 {
		return m.policy.handleUncovered(ctx, m, objective, encoding)
	}

	unlocked, err := m.policy.handleCovered(ctx, m, objective, encoding)
	if err != nil {
		return err
	}
	for _, child := range unlocked {
		if err := m.evaluateObjective(ctx, encoding, child); err != nil {
			return err
		}
	}
	return nil
}

// handleException turns a raised error into an objective the encoding
// covers, archiving the shortest encoding per error.
func (m *ObjectiveManager) handleException(ctx context.Context, encoding framework.Encoding, identifier string) error {
	objective, ok := m.exceptions[identifier]
	if !ok {
		objective = NewExceptionObjective(identifier)
		m.exceptions[identifier] = objective
		m.objectives[objective.ID()] = objective
		m.covered.Insert(objective.ID())
		klog.FromContext(ctx).V(2).Info("Discovered exception", "identifier", identifier, "encoding", encoding.ID())
	}
	encoding.SetDistance(objective.ID(), 0)
	objective.RecordDistance(0)
	return m.offer(objective, encoding)
}

// offer installs encoding as champion of objective unless the archive
// already holds it or an encoding that is not longer.
func (m *ObjectiveManager) offer(objective framework.ObjectiveFunction, encoding framework.Encoding) error {
	if champion, ok := m.archive.Encoding(objective.ID()); ok {
		if champion.ID() == encoding.ID() || champion.Length() <= encoding.Length() {
			return nil
		}
	}
	return m.archive.Update(objective, encoding, false)
}

// markCovered moves objective from the uncovered and current sets to the
// covered set.
func (m *ObjectiveManager) markCovered(objective framework.ObjectiveFunction) {
	m.current.Delete(objective.ID())
	m.uncovered.Delete(objective.ID())
	m.covered.Insert(objective.ID())
}

func (m *ObjectiveManager) Finalize(ctx context.Context, population []framework.Encoding) error {
	logger := klog.FromContext(ctx)
	if err := m.policy.finalize(ctx, m, population); err != nil {
		return err
	}
	logger.V(2).Info("Finalized objectives", "kind", m.kind,
		"covered", m.covered.Len(), "uncovered", m.uncovered.Len(), "archive", m.archive.Size())
	return nil
}

func (m *ObjectiveManager) HasObjectives() bool {
	return m.uncovered.Len() > 0
}

func (m *ObjectiveManager) CurrentObjectiveIDs() []framework.ObjectiveID {
	return sets.List(m.current)
}

func (m *ObjectiveManager) CurrentObjectives() []framework.ObjectiveFunction {
	return m.lookup(m.current)
}

func (m *ObjectiveManager) CoveredObjectives() []framework.ObjectiveFunction {
	return m.lookup(m.covered)
}

func (m *ObjectiveManager) UncoveredObjectives() []framework.ObjectiveFunction {
	return m.lookup(m.uncovered)
}

func (m *ObjectiveManager) Archive() *archive.Archive {
	return m.archive
}

func (m *ObjectiveManager) lookup(ids sets.Set[framework.ObjectiveID]) []framework.ObjectiveFunction {
	out := make([]framework.ObjectiveFunction, 0, ids.Len())
	for _, id := range sets.List(ids) {
		out = append(out, m.objectives[id])
	}
	return out
}
