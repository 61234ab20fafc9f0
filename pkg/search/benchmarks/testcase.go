package benchmarks

import (
	"math"
	"strconv"
	"strings"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Bounds of one real-valued gene.
type Bounds struct {
	L float64
	H float64
}

func (b Bounds) clamp(v float64) float64 {
	return math.Max(b.L, math.Min(b.H, v))
}

// Call holds the arguments of one call of the subject under test.
type Call []float64

// Ints rounds the arguments to the integers the subject receives.
func (c Call) Ints() []int {
	out := make([]int, len(c))
	for i, v := range c {
		out[i] = int(math.Round(v))
	}
	return out
}

// TestCase is a sequence of calls. Its length is the number of calls.
type TestCase struct {
	framework.EncodingBase
	Calls  []Call
	Bounds []Bounds
}

func NewTestCase(calls []Call, bounds []Bounds) *TestCase {
	return &TestCase{
		EncodingBase: framework.NewEncodingBase(),
		Calls:        calls,
		Bounds:       bounds,
	}
}

func (tc *TestCase) Length() int {
	return len(tc.Calls)
}

// Clone copies the calls into a new test case with a new identity and no
// evaluation state.
func (tc *TestCase) Clone() *TestCase {
	calls := make([]Call, len(tc.Calls))
	for i, c := range tc.Calls {
		calls[i] = append(Call(nil), c...)
	}
	return NewTestCase(calls, tc.Bounds)
}

// Fingerprint identifies the executed behaviour: the rounded arguments of
// every call.
func (tc *TestCase) Fingerprint() string {
	var b strings.Builder
	for i, c := range tc.Calls {
		if i > 0 {
			b.WriteByte(';')
		}
		for j, v := range c.Ints() {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(v))
		}
	}
	return b.String()
}

func (tc *TestCase) String() string {
	return tc.Fingerprint()
}
