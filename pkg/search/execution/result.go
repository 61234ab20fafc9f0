package execution

import (
	"cmp"
	"math"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

var _ framework.ExecutionResult = &Result{}

// Result is an immutable ExecutionResult produced by a Recorder.
type Result struct {
	covered sets.Set[string]
	traces  []framework.Trace
	err     string
}

func (r *Result) CoversID(id string) bool {
	return r.covered.Has(id)
}

func (r *Result) Traces() []framework.Trace {
	return r.traces
}

func (r *Result) HasError() bool {
	return r.err != ""
}

func (r *Result) ErrorIdentifier() string {
	return r.err
}

// Covered returns the ids of every covered node in sorted order.
func (r *Result) Covered() []string {
	return sets.List(r.covered)
}

// Recorder collects what instrumented code reports while an encoding runs.
// A conditional keeps the smallest distance seen for each outcome over all
// of its hits.
type Recorder struct {
	covered sets.Set[string]
	traces  map[string]*framework.Trace
	err     string
}

func NewRecorder() *Recorder {
	return &Recorder{
		covered: sets.New[string](),
		traces:  make(map[string]*framework.Trace),
	}
}

func (r *Recorder) trace(id string, t framework.TraceType) *framework.Trace {
	tr, ok := r.traces[id]
	if !ok {
		tr = &framework.Trace{
			ID:                id,
			Type:              t,
			TrueDistance:      math.Inf(1),
			FalseDistance:     math.Inf(1),
			StatementFraction: 0,
		}
		r.traces[id] = tr
	}
	return tr
}

// Function records entering a function.
func (r *Recorder) Function(id string) {
	r.covered.Insert(id)
	r.trace(id, framework.TraceFunction).Hits++
}

// Branch records evaluating a conditional with the raw distances towards
// either outcome. The taken outcome has distance 0.
func (r *Recorder) Branch(id string, trueDistance, falseDistance float64) {
	r.covered.Insert(id)
	tr := r.trace(id, framework.TraceBranch)
	tr.Hits++
	tr.TrueDistance = math.Min(tr.TrueDistance, trueDistance)
	tr.FalseDistance = math.Min(tr.FalseDistance, falseDistance)
}

// Block records that fraction of the statements of a block executed.
func (r *Recorder) Block(id string, fraction float64) {
	r.covered.Insert(id)
	tr := r.trace(id, framework.TraceBlock)
	tr.Hits++
	tr.StatementFraction = math.Max(tr.StatementFraction, fraction)
}

// Raise records an error; only the first one is kept since it ends the
// execution.
func (r *Recorder) Raise(identifier string) {
	if r.err == "" {
		r.err = identifier
	}
}

func (r *Recorder) Raised() bool {
	return r.err != ""
}

func (r *Recorder) Result() *Result {
	traces := make([]framework.Trace, 0, len(r.traces))
	for _, tr := range r.traces {
		traces = append(traces, *tr)
	}
	slices.SortFunc(traces, func(a, b framework.Trace) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return &Result{covered: r.covered.Clone(), traces: traces, err: r.err}
}
