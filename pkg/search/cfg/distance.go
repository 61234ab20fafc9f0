package cfg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// MinBranchDistance replaces a zero branch distance reported for a branch
// that was not taken, so that it never reads as covered.
const MinBranchDistance = 0.01

// ErrNoCoveredAncestor is returned when execution never reached any node
// from which the target is reachable.
var ErrNoCoveredAncestor = errors.New("no covered ancestor")

// Result locates an execution relative to a target node.
type Result struct {
	// ApproachLevel is the number of uncovered conditionals between the
	// closest covered node and the target.
	ApproachLevel int
	// ClosestCoveredNode is the covered node with the shortest path to the
	// target.
	ClosestCoveredNode string
	// LastEdgeType is the type of the edge leaving the closest covered node
	// on that path.
	LastEdgeType EdgeType
	// StatementFraction is the fraction of the closest covered block that
	// executed; 1 for conditionals.
	StatementFraction float64
}

// ApproachLevel finds the closest covered ancestor of target in the
// execution and counts the conditionals still separating the two.
func (g *Graph) ApproachLevel(target string, execution framework.ExecutionResult) (Result, error) {
	t, ok := g.nodes[target]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownNode, target)
	}

	var bfs traverse.BreadthFirst
	found := bfs.Walk(g.reverse, g.reverse.Node(t.gid), func(n graph.Node, _ int) bool {
		return n.ID() != t.gid && execution.CoversID(g.byGID[n.ID()].ID)
	})
	if found == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoCoveredAncestor, target)
	}
	closest := g.byGID[found.ID()]

	shortest := path.DijkstraFrom(found, g.forward)
	nodes, _ := shortest.To(t.gid)
	if len(nodes) < 2 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoCoveredAncestor, target)
	}

	level := 0
	for _, n := range nodes[1 : len(nodes)-1] {
		if g.byGID[n.ID()].Type == NodeConditional {
			level++
		}
	}

	result := Result{
		ApproachLevel:      level,
		ClosestCoveredNode: closest.ID,
		LastEdgeType:       g.edges[[2]int64{nodes[0].ID(), nodes[1].ID()}],
		StatementFraction:  1,
	}

	if closest.Type == NodeConditional {
		if err := g.checkConditional(closest); err != nil {
			return Result{}, err
		}
		return result, nil
	}

	for _, trace := range execution.Traces() {
		if trace.ID == closest.ID && trace.Type == framework.TraceBlock {
			result.StatementFraction = trace.StatementFraction
			break
		}
	}
	return result, nil
}

func (g *Graph) checkConditional(n *Node) error {
	conditional := 0
	it := g.forward.From(n.gid)
	for it.Next() {
		switch g.edges[[2]int64{n.gid, it.Node().ID()}] {
		case EdgeTrue, EdgeFalse:
			conditional++
		}
	}
	if conditional != 2 {
		return framework.NewImplementationError("approach level",
			fmt.Errorf("%w: node %s has %d", framework.ErrMalformedConditional, n.ID, conditional))
	}
	return nil
}

// NormalizeBranchDistance maps a raw branch distance into [0,1).
func NormalizeBranchDistance(d float64) float64 {
	if d <= 0 {
		return 0
	}
	return d / (d + 1)
}
