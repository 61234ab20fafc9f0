package benchmarks

import (
	"math"
	"math/rand/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Variation recombines and mutates TestCases. Calls are exchanged with a
// single-point crossover, the arguments of paired calls with SBX, and
// mutation applies polynomial mutation to each argument plus occasional
// insertion or removal of a call.
type Variation struct {
	// MutationRate is the per-argument mutation chance
	MutationRate float64
	// MaxCalls caps the length of a test case
	MaxCalls int
	rand     *rand.Rand
}

var _ framework.Variation = &Variation{}

func NewVariation(mutationRate float64, maxCalls int, rng *rand.Rand) *Variation {
	return &Variation{MutationRate: mutationRate, MaxCalls: maxCalls, rand: rng}
}

func (v *Variation) Crossover(a, b framework.Encoding) (framework.Encoding, framework.Encoding) {
	p1, p2 := a.(*TestCase), b.(*TestCase)
	child1, child2 := p1.Clone(), p2.Clone()

	// Single point crossover on the call lists.
	if len(p1.Calls) > 1 && len(p2.Calls) > 1 {
		cut1 := 1 + v.rand.IntN(len(p1.Calls)-1)
		cut2 := 1 + v.rand.IntN(len(p2.Calls)-1)
		calls1 := append(append([]Call(nil), child1.Calls[:cut1]...), child2.Calls[cut2:]...)
		calls2 := append(append([]Call(nil), child2.Calls[:cut2]...), child1.Calls[cut1:]...)
		child1.Calls, child2.Calls = v.cap(calls1), v.cap(calls2)
	}

	// SBX on the first calls of both children.
	n := min(len(child1.Calls), len(child2.Calls))
	for i := 0; i < n; i++ {
		v.sbx(child1.Calls[i], child2.Calls[i], p1.Bounds)
	}
	return child1, child2
}

// sbx performs simulated binary crossover in place.
func (v *Variation) sbx(x, y Call, bounds []Bounds) {
	for i := range x {
		var beta float64
		if v.rand.Float64() <= 0.5 {
			beta = math.Pow(2*v.rand.Float64(), 1.0/3.0)
		} else {
			beta = math.Pow(1.0/(2*(1.0-v.rand.Float64())), 1.0/3.0)
		}
		a, b := x[i], y[i]
		x[i] = bounds[i].clamp(0.5 * ((1+beta)*a + (1-beta)*b))
		y[i] = bounds[i].clamp(0.5 * ((1-beta)*a + (1+beta)*b))
	}
}

func (v *Variation) Mutate(e framework.Encoding) framework.Encoding {
	child := e.(*TestCase).Clone()
	for _, c := range child.Calls {
		v.polynomial(c, child.Bounds)
	}

	switch r := v.rand.Float64(); {
	case r < v.MutationRate && len(child.Calls) < v.MaxCalls:
		child.Calls = append(child.Calls, randomCall(v.rand, child.Bounds))
	case r < 2*v.MutationRate && len(child.Calls) > 1:
		i := v.rand.IntN(len(child.Calls))
		child.Calls = append(child.Calls[:i], child.Calls[i+1:]...)
	}
	return child
}

// polynomial performs polynomial mutation in place.
func (v *Variation) polynomial(c Call, bounds []Bounds) {
	for i := range c {
		if v.rand.Float64() >= v.MutationRate {
			continue
		}
		var delta float64
		if v.rand.Float64() <= 0.5 {
			delta = math.Pow(2*v.rand.Float64(), 1.0/3.0) - 1
		} else {
			delta = 1 - math.Pow(2*(1-v.rand.Float64()), 1.0/3.0)
		}
		c[i] = bounds[i].clamp(c[i] + delta*(bounds[i].H-bounds[i].L))
	}
}

func (v *Variation) cap(calls []Call) []Call {
	if v.MaxCalls > 0 && len(calls) > v.MaxCalls {
		return calls[:v.MaxCalls]
	}
	return calls
}

// Sampler draws test cases with 1..MaxCalls uniformly random calls.
type Sampler struct {
	Bounds   []Bounds
	MaxCalls int
	rand     *rand.Rand
}

var _ framework.Sampler = &Sampler{}

func NewSampler(bounds []Bounds, maxCalls int, rng *rand.Rand) *Sampler {
	return &Sampler{Bounds: bounds, MaxCalls: maxCalls, rand: rng}
}

func (s *Sampler) Sample() framework.Encoding {
	calls := make([]Call, 1+s.rand.IntN(s.MaxCalls))
	for i := range calls {
		calls[i] = randomCall(s.rand, s.Bounds)
	}
	return NewTestCase(calls, s.Bounds)
}

func randomCall(rng *rand.Rand, bounds []Bounds) Call {
	c := make(Call, len(bounds))
	for i, b := range bounds {
		c[i] = b.L + rng.Float64()*(b.H-b.L)
	}
	return c
}
