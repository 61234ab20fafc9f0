package benchmarks

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/cfg"
	"github.com/mihai-snyk/coverage-search/pkg/search/execution"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
	"github.com/mihai-snyk/coverage-search/pkg/search/objectives"
)

const (
	TriangleName = "triangle"

	// TriangleFunction is the id of the function objective.
	TriangleFunction = "triangle.classify"
	// NegativeSideError is raised for an invalid triangle with a negative
	// side.
	NegativeSideError = "NegativeSideError"

	entryNode = "entry"
)

// TriangleBounds are the argument ranges sampled for the three sides.
var TriangleBounds = []Bounds{{L: -10, H: 60}, {L: -10, H: 60}, {L: -10, H: 60}}

// Kind is the classification of a triangle.
type Kind string

const (
	Invalid     Kind = "invalid"
	Equilateral Kind = "equilateral"
	Isosceles   Kind = "isosceles"
	Scalene     Kind = "scalene"
)

// Triangle is an instrumented triangle classifier:
//
//	c1: a+b <= c || a+c <= b || b+c <= a
//	  true  -> b1t: invalid, raises on a negative side
//	  false -> b1f -> c2: a == b
//	    true  -> b2t -> c3: b == c
//	      true  -> b3t: equilateral
//	      false -> b3f: isosceles
//	    false -> b2f -> c4: b == c
//	      true  -> b4t: isosceles
//	      false -> b4f -> c5: a == c
//	        true  -> b5t: isosceles
//	        false -> b5f: scalene
//
// Every branch node is an objective. The function objective is the root of
// the objective tree and each branch objective is a child of the branch
// objective it is nested in.
type Triangle struct {
	graph      *cfg.Graph
	objectives []framework.ObjectiveFunction
}

var _ framework.Subject = &Triangle{}

func NewTriangle() (*Triangle, error) {
	g := cfg.NewGraph()
	nodes := []struct {
		id string
		t  cfg.NodeType
	}{
		{entryNode, cfg.NodeEntry},
		{"c1", cfg.NodeConditional}, {"c2", cfg.NodeConditional}, {"c3", cfg.NodeConditional},
		{"c4", cfg.NodeConditional}, {"c5", cfg.NodeConditional},
		{"b1t", cfg.NodePlain}, {"b1f", cfg.NodePlain}, {"b2t", cfg.NodePlain}, {"b2f", cfg.NodePlain},
		{"b3t", cfg.NodePlain}, {"b3f", cfg.NodePlain}, {"b4t", cfg.NodePlain}, {"b4f", cfg.NodePlain},
		{"b5t", cfg.NodePlain}, {"b5f", cfg.NodePlain},
	}
	for _, n := range nodes {
		if err := g.AddNode(n.id, n.t); err != nil {
			return nil, err
		}
	}
	edges := []struct {
		from, to string
		t        cfg.EdgeType
	}{
		{entryNode, "c1", cfg.EdgeNormal},
		{"c1", "b1t", cfg.EdgeTrue}, {"c1", "b1f", cfg.EdgeFalse},
		{"b1f", "c2", cfg.EdgeNormal},
		{"c2", "b2t", cfg.EdgeTrue}, {"c2", "b2f", cfg.EdgeFalse},
		{"b2t", "c3", cfg.EdgeNormal},
		{"c3", "b3t", cfg.EdgeTrue}, {"c3", "b3f", cfg.EdgeFalse},
		{"b2f", "c4", cfg.EdgeNormal},
		{"c4", "b4t", cfg.EdgeTrue}, {"c4", "b4f", cfg.EdgeFalse},
		{"b4f", "c5", cfg.EdgeNormal},
		{"c5", "b5t", cfg.EdgeTrue}, {"c5", "b5f", cfg.EdgeFalse},
	}
	for _, e := range edges {
		if err := g.AddEdge(e.from, e.to, e.t); err != nil {
			return nil, err
		}
	}

	function := objectives.NewFunctionObjective(TriangleFunction)
	branches := make(map[string]*objectives.BranchObjectiveFunction)
	all := []framework.ObjectiveFunction{function}
	for _, id := range []string{"b1t", "b1f", "b2t", "b2f", "b3t", "b3f", "b4t", "b4f", "b5t", "b5f"} {
		branches[id] = objectives.NewBranchObjective(g, id)
		all = append(all, branches[id])
	}
	framework.Link(function, branches["b1t"])
	framework.Link(function, branches["b1f"])
	for parent, children := range map[string][]string{
		"b1f": {"b2t", "b2f"},
		"b2t": {"b3t", "b3f"},
		"b2f": {"b4t", "b4f"},
		"b4f": {"b5t", "b5f"},
	} {
		for _, child := range children {
			framework.Link(branches[parent], branches[child])
		}
	}
	return &Triangle{graph: g, objectives: all}, nil
}

func (t *Triangle) Name() string {
	return TriangleName
}

func (t *Triangle) Objectives() []framework.ObjectiveFunction {
	return t.objectives
}

func (t *Triangle) Graph() *cfg.Graph {
	return t.graph
}

// NewSampler returns a sampler over TriangleBounds.
func (t *Triangle) NewSampler(maxCalls int, rng *rand.Rand) *Sampler {
	return NewSampler(TriangleBounds, maxCalls, rng)
}

// Classify runs the classifier on one call, reporting to rec.
func Classify(rec *execution.Recorder, a, b, c int) Kind {
	rec.Function(TriangleFunction)
	rec.Block(entryNode, 1)

	// c1 is a disjunction: true needs one term, false needs every term.
	terms := [][2]int{{a + b, c}, {a + c, b}, {b + c, a}}
	invalid := false
	trueDistance, falseDistance := math.Inf(1), 0.0
	for _, term := range terms {
		x, y := float64(term[0]), float64(term[1])
		trueDistance = math.Min(trueDistance, math.Max(0, x-y))
		falseDistance += math.Max(0, y-x+1)
		invalid = invalid || term[0] <= term[1]
	}
	rec.Branch("c1", trueDistance, falseDistance)
	if invalid {
		if a < 0 || b < 0 || c < 0 {
			rec.Block("b1t", 0.5)
			rec.Raise(NegativeSideError)
			return Invalid
		}
		rec.Block("b1t", 1)
		return Invalid
	}
	rec.Block("b1f", 1)

	if equal(rec, "c2", a, b) {
		rec.Block("b2t", 1)
		if equal(rec, "c3", b, c) {
			rec.Block("b3t", 1)
			return Equilateral
		}
		rec.Block("b3f", 1)
		return Isosceles
	}
	rec.Block("b2f", 1)
	if equal(rec, "c4", b, c) {
		rec.Block("b4t", 1)
		return Isosceles
	}
	rec.Block("b4f", 1)
	if equal(rec, "c5", a, c) {
		rec.Block("b5t", 1)
		return Isosceles
	}
	rec.Block("b5f", 1)
	return Scalene
}

func equal(rec *execution.Recorder, id string, x, y int) bool {
	d := math.Abs(float64(x - y))
	if d == 0 {
		rec.Branch(id, 0, 1)
		return true
	}
	rec.Branch(id, d, 0)
	return false
}

// TriangleRunner executes TestCases against the triangle classifier. An
// error ends the test case; the remaining calls do not run.
type TriangleRunner struct{}

var _ framework.Runner = TriangleRunner{}

func (TriangleRunner) Execute(ctx context.Context, subject framework.Subject, e framework.Encoding) (framework.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tc, ok := e.(*TestCase)
	if !ok {
		return nil, fmt.Errorf("triangle runner cannot execute %T", e)
	}
	if subject.Name() != TriangleName {
		return nil, fmt.Errorf("triangle runner cannot execute subject %q", subject.Name())
	}
	rec := execution.NewRecorder()
	for _, call := range tc.Calls {
		args := call.Ints()
		if len(args) != 3 {
			return nil, fmt.Errorf("triangle takes 3 arguments, got %d", len(args))
		}
		Classify(rec, args[0], args[1], args[2])
		if rec.Raised() {
			break
		}
	}
	return rec.Result(), nil
}
