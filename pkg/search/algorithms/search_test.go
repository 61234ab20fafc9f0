package algorithms

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2/ktesting"
	"k8s.io/utils/ptr"

	"github.com/mihai-snyk/coverage-search/apis/search/v1alpha1"
	"github.com/mihai-snyk/coverage-search/pkg/search/benchmarks"
	"github.com/mihai-snyk/coverage-search/pkg/search/budget"
	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
	"github.com/mihai-snyk/coverage-search/pkg/search/objectives"
)

type encoding struct {
	framework.EncodingBase
	name   string
	length int
}

func (e *encoding) Length() int { return e.length }

var objectivePair = []framework.ObjectiveID{"o1", "o2"}

func newEncoding(name string, distances ...float64) *encoding {
	e := &encoding{EncodingBase: framework.NewEncodingBase(), name: name, length: 1}
	for i, d := range distances {
		e.SetDistance(objectivePair[i], d)
	}
	return e
}

func names(population []framework.Encoding) []string {
	out := make([]string, 0, len(population))
	for _, e := range population {
		out = append(out, e.(*encoding).name)
	}
	return out
}

func scenario() []framework.Encoding {
	return []framework.Encoding{
		newEncoding("ind1", 2, 3),
		newEncoding("ind2", 0, 2),
		newEncoding("ind3", 2, 0),
		newEncoding("ind4", 1, 1),
		newEncoding("ind5", 5, 5),
	}
}

func TestMOSASelect(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)

	selected, err := MOSA{}.Select(ctx, scenario(), objectivePair, 0, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ind2", "ind3", "ind4"}, names(selected))
	for _, e := range selected {
		if e.(*encoding).name == "ind4" {
			assert.Equal(t, 1, e.Rank())
		} else {
			assert.Equal(t, 0, e.Rank())
		}
	}

	population := scenario()
	unchanged, err := MOSA{}.Select(ctx, population, nil, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, names(population), names(unchanged))
}

func TestMOSASelectTruncatesByCrowding(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	population := []framework.Encoding{
		newEncoding("a", 0, 9),
		newEncoding("b", 9, 0),
		newEncoding("c", 1, 8),
		newEncoding("d", 4, 4),
		newEncoding("e", 8, 1),
	}
	// Front 0 is {a, b}; {c, d, e} is cut to one, and the interior d has
	// the lowest crowding distance.
	selected, err := MOSA{}.Select(ctx, population, objectivePair, 0, 4)
	require.NoError(t, err)
	assert.Len(t, selected, 4)
	assert.NotContains(t, names(selected), "d")
}

func TestNSGAIISelect(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	selected, err := NSGAII{}.Select(ctx, scenario(), objectivePair, 0, 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ind1", "ind2", "ind3", "ind4"}, names(selected))

	truncated, err := NSGAII{}.Select(ctx, scenario(), nil, 0, 2)
	require.NoError(t, err)
	assert.Len(t, truncated, 2)
}

func TestPCSEASelectKeepsCorners(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	selected, err := PCSEA{}.Select(ctx, scenario(), objectivePair, 0, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ind2", "ind3"}, names(selected))
}

func TestRVEASelect(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	selected, err := RVEA{Alpha: 2}.Select(ctx, scenario(), objectivePair, 0.5, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ind2", "ind3", "ind4"}, names(selected))
}

func TestSelectMissingDistance(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	population := append(scenario(), newEncoding("partial", 1))
	for _, s := range []Selection{MOSA{}, NSGAII{}, PCSEA{}, RVEA{Alpha: 2}} {
		_, err := s.Select(ctx, population, objectivePair, 0, 3)
		assert.ErrorIs(t, err, framework.ErrMissingDistance, s.Name())
	}
}

func TestTournamentPrefersRankThenCrowding(t *testing.T) {
	low := newEncoding("low")
	low.SetRank(0)
	low.SetCrowdingDistance(1)
	sparse := newEncoding("sparse")
	sparse.SetRank(0)
	sparse.SetCrowdingDistance(5)
	high := newEncoding("high")
	high.SetRank(3)
	high.SetCrowdingDistance(100)

	e := &evolutionary{
		options: Options{TournamentSize: 16},
		rand:    rand.New(rand.NewPCG(1, 1)),
		pop:     []framework.Encoding{low, sparse, high},
	}
	wins := map[string]int{}
	for range 100 {
		wins[e.tournament().(*encoding).name]++
	}
	assert.Zero(t, wins["high"])
	assert.Greater(t, wins["sparse"], wins["low"])
}

// scripted is a strategy that counts its calls.
type scripted struct {
	initialized int
	iterations  int
	err         error
	failAt      int
	pop         []framework.Encoding
}

func (s *scripted) initialize(context.Context, *run) error {
	s.initialized++
	return nil
}

func (s *scripted) iterate(context.Context, *run) error {
	s.iterations++
	if s.failAt > 0 && s.iterations == s.failAt {
		return s.err
	}
	return nil
}

func (s *scripted) population() []framework.Encoding {
	return s.pop
}

type noObjectives struct{}

func (noObjectives) Name() string                              { return "empty" }
func (noObjectives) Objectives() []framework.ObjectiveFunction { return nil }

func triangleSubject(t *testing.T) *benchmarks.Triangle {
	t.Helper()
	triangle, err := benchmarks.NewTriangle()
	require.NoError(t, err)
	return triangle
}

func TestSearchStateMachine(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	manager := objectives.NewUncoveredManager(benchmarks.TriangleRunner{})
	s := &scripted{}
	algorithm := newSearchAlgorithm("scripted", manager, s)
	assert.Equal(t, StateCreated, algorithm.State())

	var events []EventType
	var states []State
	listener := ListenerFunc(func(_ context.Context, e Event) {
		events = append(events, e.Type)
		states = append(states, e.State)
	})

	b := budget.NewManager(budget.NewIterationBudget(3))
	archive, err := algorithm.Search(ctx, triangleSubject(t), b, budget.NewTermination(), listener)
	require.NoError(t, err)
	require.NotNil(t, archive)

	assert.Equal(t, StateTerminated, algorithm.State())
	assert.Equal(t, 1, s.initialized)
	assert.Equal(t, 3, s.iterations)
	assert.Equal(t, []EventType{SearchStart, InitializeStart, InitializeComplete,
		IterationComplete, IterationComplete, IterationComplete, SearchComplete}, events)
	assert.Equal(t, StateInitializing, states[0])
	assert.Equal(t, StateSearching, states[3])
	assert.Equal(t, StateTerminated, states[len(states)-1])
	assert.Equal(t, "Terminated", algorithm.State().String())

	// Listeners are per call.
	events = nil
	_, err = algorithm.Search(ctx, triangleSubject(t), budget.NewManager(budget.NewIterationBudget(1)), budget.NewTermination())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSearchStopsWithoutObjectives(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	s := &scripted{}
	algorithm := newSearchAlgorithm("scripted", objectives.NewUncoveredManager(benchmarks.TriangleRunner{}), s)

	_, err := algorithm.Search(ctx, noObjectives{}, budget.NewManager(budget.NewIterationBudget(10)), budget.NewTermination())
	require.NoError(t, err)
	assert.Equal(t, 0, s.iterations)
}

func TestSearchHonoursTermination(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	s := &scripted{}
	algorithm := newSearchAlgorithm("scripted", objectives.NewUncoveredManager(benchmarks.TriangleRunner{}), s)

	termination := budget.NewTermination()
	stopAfter := ListenerFunc(func(_ context.Context, e Event) {
		if e.Type == IterationComplete && e.Iteration == 2 {
			termination.Trigger()
		}
	})
	_, err := algorithm.Search(ctx, triangleSubject(t), budget.NewManager(budget.NewIterationBudget(10)), termination, stopAfter)
	require.NoError(t, err)
	assert.Equal(t, 2, s.iterations)
}

func TestSearchPropagatesImplementationErrors(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	boom := framework.NewImplementationError("test", framework.ErrNaNDistance)
	s := &scripted{err: boom, failAt: 2}
	algorithm := newSearchAlgorithm("scripted", objectives.NewUncoveredManager(benchmarks.TriangleRunner{}), s)

	_, err := algorithm.Search(ctx, triangleSubject(t), budget.NewManager(budget.NewIterationBudget(10)), budget.NewTermination())
	require.Error(t, err)
	assert.True(t, framework.IsImplementationError(err))
	assert.ErrorIs(t, err, framework.ErrNaNDistance)
	assert.Equal(t, StateTerminated, algorithm.State())
}

func TestNewUnknownAlgorithm(t *testing.T) {
	c := &v1alpha1.SearchConfiguration{Algorithm: "hillclimb"}
	v1alpha1.SetDefaults(c)
	_, err := New(c, benchmarks.TriangleRunner{}, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	c = &v1alpha1.SearchConfiguration{ObjectiveManager: "greedy"}
	v1alpha1.SetDefaults(c)
	_, err = New(c, benchmarks.TriangleRunner{}, nil, nil)
	assert.ErrorIs(t, err, objectives.ErrUnknownObjectiveManager)
}

// verifyArchive re-executes every champion and checks it still covers the
// objectives it is archived for.
func verifyArchive(ctx context.Context, t *testing.T, triangle *benchmarks.Triangle, algorithm *SearchAlgorithm) {
	t.Helper()
	a := algorithm.Manager().Archive()
	for _, e := range a.Encodings() {
		uses := a.Uses(e)
		require.NotEmpty(t, uses)
		for _, o := range uses {
			fresh := e.(*benchmarks.TestCase).Clone()
			result, err := benchmarks.TriangleRunner{}.Execute(ctx, triangle, fresh)
			require.NoError(t, err)
			fresh.SetExecutionResult(result)
			d, err := o.CalculateDistance(fresh)
			require.NoError(t, err)
			assert.Zero(t, d, "%s does not cover %s", fresh, o.ID())
		}
	}
}

func TestSearchTriangle(t *testing.T) {
	algorithms := []v1alpha1.AlgorithmName{
		v1alpha1.AlgorithmRandom, v1alpha1.AlgorithmMOSA, v1alpha1.AlgorithmNSGAII,
		v1alpha1.AlgorithmPCSEA, v1alpha1.AlgorithmRVEA,
	}
	managers := []v1alpha1.ObjectiveManagerName{
		v1alpha1.ObjectiveManagerPopulation, v1alpha1.ObjectiveManagerUncovered,
		v1alpha1.ObjectiveManagerStructural, v1alpha1.ObjectiveManagerTracking,
	}
	for _, name := range algorithms {
		for _, manager := range managers {
			t.Run(fmt.Sprintf("%s/%s", name, manager), func(t *testing.T) {
				_, ctx := ktesting.NewTestContext(t)
				triangle := triangleSubject(t)

				c := &v1alpha1.SearchConfiguration{
					Algorithm:        name,
					ObjectiveManager: manager,
					PopulationSize:   ptr.To[int32](20),
					Seed:             ptr.To[uint64](17),
					Budgets:          v1alpha1.Budgets{MaxEvaluations: ptr.To[int32](2000)},
				}
				v1alpha1.SetDefaults(c)
				require.Empty(t, v1alpha1.Validate(c))

				rng := rand.New(rand.NewPCG(*c.Seed, 1))
				algorithm, err := New(c, benchmarks.TriangleRunner{}, triangle.NewSampler(3, rng),
					benchmarks.NewVariation(*c.MutationProbability, 3, rng))
				require.NoError(t, err)

				var last Event
				b, err := budget.FromConfiguration(nil, c.Budgets, nil)
				require.NoError(t, err)
				archive, err := algorithm.Search(ctx, triangle, b, budget.NewTermination(),
					ListenerFunc(func(_ context.Context, e Event) { last = e }))
				require.NoError(t, err)

				assert.Equal(t, SearchComplete, last.Type)
				assert.Equal(t, StateTerminated, algorithm.State())
				// Parents plus offspring survive when nothing is left to select on.
				assert.LessOrEqual(t, len(algorithm.Population()), 40)
				assert.True(t, archive.HasObjective(benchmarks.TriangleFunction))

				covered := algorithm.Manager().CoveredObjectives()
				assert.GreaterOrEqual(t, len(covered), 3)
				if manager != v1alpha1.ObjectiveManagerPopulation {
					// Every other manager archives on discovery.
					assert.True(t, archive.HasObjective("b1f"))
					assert.Len(t, archive.Objectives(), len(covered))
				}
				verifyArchive(ctx, t, triangle, algorithm)
			})
		}
	}
}

func TestSearchTriangleCoversNestedBranches(t *testing.T) {
	_, ctx := ktesting.NewTestContext(t)
	triangle := triangleSubject(t)
	rng := rand.New(rand.NewPCG(42, 42))

	c := &v1alpha1.SearchConfiguration{
		Algorithm:        v1alpha1.AlgorithmMOSA,
		ObjectiveManager: v1alpha1.ObjectiveManagerStructural,
		Seed:             ptr.To[uint64](42),
		Budgets:          v1alpha1.Budgets{MaxEvaluations: ptr.To[int32](10000)},
	}
	v1alpha1.SetDefaults(c)
	algorithm, err := New(c, benchmarks.TriangleRunner{}, triangle.NewSampler(3, rng),
		benchmarks.NewVariation(*c.MutationProbability, 3, rng))
	require.NoError(t, err)

	b, err := budget.FromConfiguration(nil, c.Budgets, nil)
	require.NoError(t, err)
	archive, err := algorithm.Search(ctx, triangle, b, budget.NewTermination())
	require.NoError(t, err)
	for _, id := range []framework.ObjectiveID{"b1t", "b1f", "b2f", "b4f", "b5f"} {
		assert.True(t, archive.HasObjective(id), id)
	}
	verifyArchive(ctx, t, triangle, algorithm)
}
