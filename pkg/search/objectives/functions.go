package objectives

import (
	"errors"
	"fmt"

	"github.com/mihai-snyk/coverage-search/pkg/search/cfg"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// ExceptionPrefix prefixes the ids of dynamically created exception
// objectives.
const ExceptionPrefix = "exception:"

func executionOf(e framework.Encoding, objective framework.ObjectiveID) (framework.ExecutionResult, error) {
	result := e.ExecutionResult()
	if result == nil {
		return nil, framework.NewImplementationError("calculate distance",
			fmt.Errorf("%w: encoding %s, objective %s", framework.ErrNotExecuted, e.ID(), objective))
	}
	return result, nil
}

// BranchObjectiveFunction targets one branch node of a control-flow graph.
// Its distance is the approach level plus a normalised branch distance in
// [0,1), so it decreases strictly as an execution gets closer.
type BranchObjectiveFunction struct {
	framework.ObjectiveBase
	graph *cfg.Graph
}

func NewBranchObjective(graph *cfg.Graph, node string) *BranchObjectiveFunction {
	return &BranchObjectiveFunction{
		ObjectiveBase: framework.NewObjectiveBase(framework.ObjectiveID(node)),
		graph:         graph,
	}
}

func (b *BranchObjectiveFunction) CalculateDistance(e framework.Encoding) (float64, error) {
	result, err := executionOf(e, b.ID())
	if err != nil {
		return 0, err
	}
	target := string(b.ID())
	if result.CoversID(target) {
		return 0, nil
	}

	located, err := b.graph.ApproachLevel(target, result)
	if errors.Is(err, cfg.ErrNoCoveredAncestor) {
		// Not even the enclosing function ran.
		return float64(b.graph.ConditionalCount() + 1), nil
	}
	if err != nil {
		return 0, err
	}

	node, _ := b.graph.Node(located.ClosestCoveredNode)
	if node.Type != cfg.NodeConditional {
		// Execution stopped inside a block, e.g. on an exception.
		return float64(located.ApproachLevel) + 0.48*(1-located.StatementFraction) + 0.01, nil
	}

	trace, ok := branchTrace(result, located.ClosestCoveredNode)
	if !ok {
		return 0, framework.NewImplementationError("branch distance",
			fmt.Errorf("%w: %s", framework.ErrMissingBranchTrace, located.ClosestCoveredNode))
	}
	raw := trace.FalseDistance
	if located.LastEdgeType == cfg.EdgeTrue {
		raw = trace.TrueDistance
	}

	distance := cfg.NormalizeBranchDistance(raw)
	if distance == 0 {
		distance = cfg.MinBranchDistance
	}
	return float64(located.ApproachLevel) + distance, nil
}

func branchTrace(result framework.ExecutionResult, node string) (framework.Trace, bool) {
	for _, trace := range result.Traces() {
		if trace.ID == node && trace.Type == framework.TraceBranch {
			return trace, true
		}
	}
	return framework.Trace{}, false
}

// FunctionObjectiveFunction is covered once the function was entered.
type FunctionObjectiveFunction struct {
	framework.ObjectiveBase
}

func NewFunctionObjective(node string) *FunctionObjectiveFunction {
	return &FunctionObjectiveFunction{ObjectiveBase: framework.NewObjectiveBase(framework.ObjectiveID(node))}
}

func (f *FunctionObjectiveFunction) CalculateDistance(e framework.Encoding) (float64, error) {
	result, err := executionOf(e, f.ID())
	if err != nil {
		return 0, err
	}
	if result.CoversID(string(f.ID())) {
		return 0, nil
	}
	return 1, nil
}

// ExceptionObjectiveFunction is created on the fly for every distinct
// error an execution raises.
type ExceptionObjectiveFunction struct {
	framework.ObjectiveBase
	identifier string
}

func NewExceptionObjective(identifier string) *ExceptionObjectiveFunction {
	return &ExceptionObjectiveFunction{
		ObjectiveBase: framework.NewObjectiveBase(framework.ObjectiveID(ExceptionPrefix + identifier)),
		identifier:    identifier,
	}
}

func (x *ExceptionObjectiveFunction) Identifier() string {
	return x.identifier
}

func (x *ExceptionObjectiveFunction) CalculateDistance(e framework.Encoding) (float64, error) {
	result, err := executionOf(e, x.ID())
	if err != nil {
		return 0, err
	}
	if result.HasError() && result.ErrorIdentifier() == x.identifier {
		return 0, nil
	}
	return 1, nil
}
