package objectives

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2/ktesting"

	"github.com/mihai-snyk/coverage-search/pkg/search/budget"
	"github.com/mihai-snyk/coverage-search/pkg/search/cfg"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

type testEncoding struct {
	framework.EncodingBase
	covers []string
	err    string
	length int
}

func (e *testEncoding) Length() int { return e.length }

func encoding(length int, covers ...string) *testEncoding {
	return &testEncoding{EncodingBase: framework.NewEncodingBase(), covers: covers, length: length}
}

type testResult struct {
	covered sets.Set[string]
	traces  []framework.Trace
	err     string
}

func (r testResult) CoversID(id string) bool   { return r.covered.Has(id) }
func (r testResult) Traces() []framework.Trace { return r.traces }
func (r testResult) HasError() bool            { return r.err != "" }
func (r testResult) ErrorIdentifier() string   { return r.err }

type testRunner struct {
	executions int
}

func (r *testRunner) Execute(_ context.Context, _ framework.Subject, e framework.Encoding) (framework.ExecutionResult, error) {
	r.executions++
	te := e.(*testEncoding)
	return testResult{covered: sets.New(te.covers...), err: te.err}, nil
}

type testSubject struct {
	objectives []framework.ObjectiveFunction
}

func (s testSubject) Name() string                              { return "test" }
func (s testSubject) Objectives() []framework.ObjectiveFunction { return s.objectives }

type nanObjective struct {
	framework.ObjectiveBase
}

func (n *nanObjective) CalculateDistance(framework.Encoding) (float64, error) {
	return math.NaN(), nil
}

// tree builds root -> {a, b}, a -> {a1}.
func tree() testSubject {
	root := NewFunctionObjective("root")
	a := NewFunctionObjective("a")
	b := NewFunctionObjective("b")
	a1 := NewFunctionObjective("a1")
	framework.Link(root, a)
	framework.Link(root, b)
	framework.Link(a, a1)
	return testSubject{objectives: []framework.ObjectiveFunction{root, a, b, a1}}
}

func unlimited() *budget.Manager {
	m := budget.NewManager(budget.NewEvaluationBudget(1000))
	m.SearchStarted()
	return m
}

func ids(objectives []framework.ObjectiveFunction) []framework.ObjectiveID {
	out := make([]framework.ObjectiveID, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, o.ID())
	}
	return out
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("bogus", &testRunner{})
	assert.ErrorIs(t, err, ErrUnknownObjectiveManager)

	for _, kind := range Kinds() {
		m, err := New(kind, &testRunner{})
		require.NoError(t, err)
		assert.Equal(t, kind, m.Kind())
	}
}

func TestStructuralPropagation(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewStructuralManager(&testRunner{})
	m.Load(tree())
	assert.Equal(t, []framework.ObjectiveID{"root"}, m.CurrentObjectiveIDs())

	e := encoding(2, "root", "a")
	ok, err := m.EvaluateOne(ctx, e, unlimited(), budget.NewTermination())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []framework.ObjectiveID{"a", "root"}, ids(m.CoveredObjectives()))
	assert.Equal(t, []framework.ObjectiveID{"a1", "b"}, m.CurrentObjectiveIDs())
	assert.Equal(t, []framework.ObjectiveID{"a1", "b"}, ids(m.UncoveredObjectives()))

	// Unlocked objectives were evaluated on the same execution.
	for _, id := range []framework.ObjectiveID{"a1", "b"} {
		d, ok := e.Distance(id)
		require.True(t, ok, id)
		assert.Equal(t, 1.0, d)
	}
	assert.True(t, m.Archive().HasObjective("root"))
	assert.True(t, m.Archive().HasObjective("a"))
	assert.Equal(t, 1, m.Archive().Size())
}

func TestStructuralChildrenOfUncoveredStayLocked(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewStructuralManager(&testRunner{})
	m.Load(tree())

	// a is covered but root is not, so nothing gets unlocked.
	_, err := m.EvaluateOne(ctx, encoding(1, "a"), unlimited(), budget.NewTermination())
	require.NoError(t, err)
	assert.Equal(t, []framework.ObjectiveID{"root"}, m.CurrentObjectiveIDs())
	assert.Empty(t, m.CoveredObjectives())
}

func TestTrackingManagerIsShallow(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	subject := testSubject{objectives: []framework.ObjectiveFunction{&nanObjective{framework.NewObjectiveBase("n")}}}
	m := NewTrackingManager(&testRunner{})
	m.Load(subject)

	_, err := m.EvaluateOne(ctx, encoding(1, "n"), unlimited(), budget.NewTermination())
	require.NoError(t, err)
	assert.Equal(t, []framework.ObjectiveID{"n"}, ids(m.CoveredObjectives()))
	assert.False(t, m.HasObjectives())
}

func TestStructuralUnlocksOnlyDirectChildren(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewStructuralManager(&testRunner{})
	m.Load(tree())

	_, err := m.EvaluateOne(ctx, encoding(1, "root"), unlimited(), budget.NewTermination())
	require.NoError(t, err)
	assert.Equal(t, []framework.ObjectiveID{"root"}, ids(m.CoveredObjectives()))
	assert.Equal(t, []framework.ObjectiveID{"a", "b"}, m.CurrentObjectiveIDs())
	assert.Equal(t, []framework.ObjectiveID{"a", "a1", "b"}, ids(m.UncoveredObjectives()))
}

func TestLoadResetsObjectiveState(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	n := &nanObjective{framework.NewObjectiveBase("n")}
	subject := testSubject{objectives: []framework.ObjectiveFunction{n}}

	tracking := NewTrackingManager(&testRunner{})
	tracking.Load(subject)
	require.True(t, n.Shallow())
	_, err := tracking.EvaluateOne(ctx, encoding(1, "n"), unlimited(), budget.NewTermination())
	require.NoError(t, err)
	require.Equal(t, 0.0, n.LowestDistance())

	structural := NewStructuralManager(&testRunner{})
	structural.Load(subject)
	assert.False(t, n.Shallow())
	assert.Equal(t, math.MaxFloat64, n.LowestDistance())

	// The full distance is computed again, so the NaN surfaces.
	_, err = structural.EvaluateOne(ctx, encoding(1, "n"), unlimited(), budget.NewTermination())
	assert.ErrorIs(t, err, framework.ErrNaNDistance)

	// Loading the tracking manager again restores shallow evaluation.
	tracking.Load(subject)
	assert.True(t, n.Shallow())
	_, err = tracking.EvaluateOne(ctx, encoding(1, "n"), unlimited(), budget.NewTermination())
	assert.NoError(t, err)
}

func TestCoveredAndUncoveredAreDisjoint(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	all := []string{"root", "a", "b", "a1"}
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			m, err := New(kind, &testRunner{})
			require.NoError(t, err)
			m.Load(tree())

			r := rand.New(rand.NewPCG(7, 11))
			for i := 0; i < 200; i++ {
				var covers []string
				for _, id := range all {
					if r.IntN(3) == 0 {
						covers = append(covers, id)
					}
				}
				_, err := m.EvaluateOne(ctx, encoding(1+r.IntN(5), covers...), unlimited(), budget.NewTermination())
				require.NoError(t, err)

				covered := sets.New(ids(m.CoveredObjectives())...)
				uncovered := sets.New(ids(m.UncoveredObjectives())...)
				assert.Empty(t, sets.List(covered.Intersection(uncovered)))
				assert.Equal(t, len(all), covered.Len()+uncovered.Len())
			}
		})
	}
}

func TestUncoveredArchivesShortest(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewUncoveredManager(&testRunner{})
	m.Load(tree())

	long := encoding(5, "b")
	_, err := m.EvaluateOne(ctx, long, unlimited(), budget.NewTermination())
	require.NoError(t, err)
	champion, ok := m.Archive().Encoding("b")
	require.True(t, ok)
	assert.Equal(t, long.ID(), champion.ID())
	assert.NotContains(t, m.CurrentObjectiveIDs(), framework.ObjectiveID("b"))

	// b is no longer evaluated, so a shorter covering encoding does not
	// replace the champion.
	short := encoding(1, "b")
	_, err = m.EvaluateOne(ctx, short, unlimited(), budget.NewTermination())
	require.NoError(t, err)
	_, evaluated := short.Distance("b")
	assert.False(t, evaluated)
	champion, _ = m.Archive().Encoding("b")
	assert.Equal(t, long.ID(), champion.ID())
}

func TestPopulationFinalizeIsIdempotent(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewPopulationManager(&testRunner{})
	m.Load(tree())

	e1 := encoding(3, "root")
	e2 := encoding(1, "root", "a")
	e3 := encoding(2, "b")
	population := []framework.Encoding{e1, e2, e3}
	evaluated, err := m.EvaluateMany(ctx, population, unlimited(), budget.NewTermination())
	require.NoError(t, err)
	require.Len(t, evaluated, 3)

	// Nothing is archived before finalize.
	assert.Equal(t, 0, m.Archive().Size())
	assert.Equal(t, []framework.ObjectiveID{"a", "a1", "b", "root"}, m.CurrentObjectiveIDs())

	require.NoError(t, m.Finalize(ctx, population))
	check := func() {
		for id, want := range map[framework.ObjectiveID]framework.EncodingID{"root": e2.ID(), "a": e2.ID(), "b": e3.ID()} {
			got, ok := m.Archive().Encoding(id)
			require.True(t, ok, id)
			assert.Equal(t, want, got.ID(), id)
		}
		assert.False(t, m.Archive().HasObjective("a1"))
		assert.Equal(t, 2, m.Archive().Size())
	}
	check()

	require.NoError(t, m.Finalize(ctx, population))
	check()
}

func TestNaNDistanceIsImplementationError(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	subject := testSubject{objectives: []framework.ObjectiveFunction{&nanObjective{framework.NewObjectiveBase("n")}}}
	m := NewUncoveredManager(&testRunner{})
	m.Load(subject)

	_, err := m.EvaluateOne(ctx, encoding(1), unlimited(), budget.NewTermination())
	require.Error(t, err)
	assert.ErrorIs(t, err, framework.ErrNaNDistance)
	assert.True(t, framework.IsImplementationError(err))
}

func TestExceptionObjectives(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewUncoveredManager(&testRunner{})
	m.Load(tree())

	first := encoding(4)
	first.err = "ZeroDivisionError"
	_, err := m.EvaluateOne(ctx, first, unlimited(), budget.NewTermination())
	require.NoError(t, err)

	id := framework.ObjectiveID(ExceptionPrefix + "ZeroDivisionError")
	assert.Contains(t, ids(m.CoveredObjectives()), id)
	assert.NotContains(t, ids(m.UncoveredObjectives()), id)
	champion, ok := m.Archive().Encoding(id)
	require.True(t, ok)
	assert.Equal(t, first.ID(), champion.ID())

	second := encoding(2)
	second.err = "ZeroDivisionError"
	_, err = m.EvaluateOne(ctx, second, unlimited(), budget.NewTermination())
	require.NoError(t, err)
	champion, _ = m.Archive().Encoding(id)
	assert.Equal(t, second.ID(), champion.ID())
	assert.Len(t, m.CoveredObjectives(), 1)
}

func TestEvaluateManyStopsWhenBudgetIsSpent(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	runner := &testRunner{}
	m := NewPopulationManager(runner)
	m.Load(tree())

	b := budget.NewManager(budget.NewEvaluationBudget(2))
	b.InitializationStarted()
	evaluated, err := m.EvaluateMany(ctx, []framework.Encoding{encoding(1), encoding(1), encoding(1)}, b, budget.NewTermination())
	require.NoError(t, err)
	assert.Len(t, evaluated, 2)
	assert.Equal(t, 2, runner.executions)
}

func TestEvaluateOneHonoursTermination(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	runner := &testRunner{}
	m := NewPopulationManager(runner)
	m.Load(tree())

	termination := budget.NewTermination()
	termination.Trigger()
	ok, err := m.EvaluateOne(ctx, encoding(1), unlimited(), termination)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, runner.executions)
}

func TestRefreshFillsNewlyCurrentObjectives(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	m := NewStructuralManager(&testRunner{})
	m.Load(tree())

	early := encoding(1, "b")
	_, err := m.EvaluateOne(ctx, early, unlimited(), budget.NewTermination())
	require.NoError(t, err)
	_, ok := early.Distance("b")
	require.False(t, ok)

	_, err = m.EvaluateOne(ctx, encoding(1, "root"), unlimited(), budget.NewTermination())
	require.NoError(t, err)

	require.NoError(t, m.Refresh(ctx, []framework.Encoding{early}))
	d, ok := early.Distance("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, d)
	// b was covered while refreshing early.
	assert.Contains(t, ids(m.CoveredObjectives()), framework.ObjectiveID("b"))

	err = m.Refresh(ctx, []framework.Encoding{encoding(1)})
	assert.ErrorIs(t, err, framework.ErrNotExecuted)
}

func TestBranchObjectiveDistance(t *testing.T) {
	g := cfg.NewGraph()
	require.NoError(t, g.AddNode("entry", cfg.NodeEntry))
	require.NoError(t, g.AddNode("c1", cfg.NodeConditional))
	require.NoError(t, g.AddNode("c2", cfg.NodeConditional))
	for _, id := range []string{"b1t", "b1f", "b2t", "b2f"} {
		require.NoError(t, g.AddNode(id, cfg.NodePlain))
	}
	require.NoError(t, g.AddEdge("entry", "c1", cfg.EdgeNormal))
	require.NoError(t, g.AddEdge("c1", "b1t", cfg.EdgeTrue))
	require.NoError(t, g.AddEdge("c1", "b1f", cfg.EdgeFalse))
	require.NoError(t, g.AddEdge("b1f", "c2", cfg.EdgeNormal))
	require.NoError(t, g.AddEdge("c2", "b2t", cfg.EdgeTrue))
	require.NoError(t, g.AddEdge("c2", "b2f", cfg.EdgeFalse))

	objective := NewBranchObjective(g, "b2t")
	executed := func(traces []framework.Trace, covers ...string) framework.Encoding {
		e := encoding(1)
		e.SetExecutionResult(testResult{covered: sets.New(covers...), traces: traces})
		return e
	}

	tests := []struct {
		name     string
		encoding framework.Encoding
		want     float64
	}{
		{
			name:     "covered",
			encoding: executed(nil, "entry", "c1", "b1f", "c2", "b2t"),
			want:     0,
		},
		{
			name:     "nothing ran",
			encoding: executed(nil),
			want:     3,
		},
		{
			name: "one level away",
			encoding: executed([]framework.Trace{{ID: "c1", Type: framework.TraceBranch, FalseDistance: 3}},
				"entry", "c1", "b1t"),
			want: 1.75,
		},
		{
			name: "zero branch distance is nudged",
			encoding: executed([]framework.Trace{{ID: "c2", Type: framework.TraceBranch}},
				"entry", "c1", "b1f", "c2", "b2f"),
			want: cfg.MinBranchDistance,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := objective.CalculateDistance(tc.encoding)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	_, err := objective.CalculateDistance(executed(nil, "entry", "c1", "b1t"))
	assert.ErrorIs(t, err, framework.ErrMissingBranchTrace)

	_, err = objective.CalculateDistance(encoding(1))
	assert.ErrorIs(t, err, framework.ErrNotExecuted)
}
