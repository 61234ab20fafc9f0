package budget

import (
	"math"
	"time"

	"k8s.io/utils/clock"
)

// Budget is a single monotone resource counter. Counting only happens while
// the budget is tracking, which one of the start signals switches on and the
// matching stop signal switches off again.
type Budget interface {
	Name() string
	Used() float64
	Total() float64

	InitializationStarted()
	InitializationStopped()
	SearchStarted()
	SearchStopped()
	Iteration()
	Evaluation()
}

// Remaining returns how much of b is left, never below zero.
func Remaining(b Budget) float64 {
	return math.Max(0, b.Total()-b.Used())
}

// phase tracks which of the two phases is active. Only one is ever on.
type phase struct {
	initializing bool
	searching    bool
}

func (p *phase) InitializationStarted() { p.initializing, p.searching = true, false }
func (p *phase) InitializationStopped() { p.initializing = false }
func (p *phase) SearchStarted()         { p.searching, p.initializing = true, false }
func (p *phase) SearchStopped()         { p.searching = false }
func (p *phase) tracking() bool         { return p.initializing || p.searching }

// EvaluationBudget limits the number of encodings executed, in both phases.
type EvaluationBudget struct {
	phase
	max   int
	count int
}

func NewEvaluationBudget(max int) *EvaluationBudget {
	return &EvaluationBudget{max: max}
}

func (b *EvaluationBudget) Name() string   { return "evaluations" }
func (b *EvaluationBudget) Used() float64  { return float64(b.count) }
func (b *EvaluationBudget) Total() float64 { return float64(b.max) }
func (b *EvaluationBudget) Iteration()     {}

func (b *EvaluationBudget) Evaluation() {
	if b.tracking() && b.count < b.max {
		b.count++
	}
}

// IterationBudget limits the number of search iterations. Initialization is
// not an iteration.
type IterationBudget struct {
	phase
	max   int
	count int
}

func NewIterationBudget(max int) *IterationBudget {
	return &IterationBudget{max: max}
}

func (b *IterationBudget) Name() string   { return "iterations" }
func (b *IterationBudget) Used() float64  { return float64(b.count) }
func (b *IterationBudget) Total() float64 { return float64(b.max) }
func (b *IterationBudget) Evaluation()    {}

func (b *IterationBudget) Iteration() {
	if b.searching && b.count < b.max {
		b.count++
	}
}

// TimeBudget limits wall-clock time, in seconds. A search-time budget only
// runs during the search phase, a total-time budget also during
// initialization.
type TimeBudget struct {
	name        string
	clock       clock.PassiveClock
	max         time.Duration
	includeInit bool
	started     time.Time
	running     bool
	elapsed     time.Duration
}

func NewSearchTimeBudget(c clock.PassiveClock, max time.Duration) *TimeBudget {
	return &TimeBudget{name: "search-time", clock: c, max: max}
}

func NewTotalTimeBudget(c clock.PassiveClock, max time.Duration) *TimeBudget {
	return &TimeBudget{name: "total-time", clock: c, max: max, includeInit: true}
}

func (b *TimeBudget) Name() string { return b.name }

func (b *TimeBudget) Used() float64 {
	used := b.elapsed
	if b.running {
		used += b.clock.Since(b.started)
	}
	return math.Min(used.Seconds(), b.max.Seconds())
}

func (b *TimeBudget) Total() float64 { return b.max.Seconds() }

func (b *TimeBudget) start() {
	if !b.running {
		b.started = b.clock.Now()
		b.running = true
	}
}

func (b *TimeBudget) stop() {
	if b.running {
		b.elapsed += b.clock.Since(b.started)
		b.running = false
	}
}

func (b *TimeBudget) InitializationStarted() {
	if b.includeInit {
		b.start()
	}
}

func (b *TimeBudget) InitializationStopped() {
	if b.includeInit {
		b.stop()
	}
}

func (b *TimeBudget) SearchStarted() { b.start() }
func (b *TimeBudget) SearchStopped() { b.stop() }
func (b *TimeBudget) Iteration()     {}
func (b *TimeBudget) Evaluation()    {}

// StagnationBudget limits the number of consecutive iterations in which
// progress did not increase. progress is typically the archive size.
type StagnationBudget struct {
	phase
	max      int
	count    int
	best     int
	progress func() int
}

func NewStagnationBudget(max int, progress func() int) *StagnationBudget {
	return &StagnationBudget{max: max, progress: progress}
}

func (b *StagnationBudget) Name() string   { return "stagnation" }
func (b *StagnationBudget) Used() float64  { return float64(b.count) }
func (b *StagnationBudget) Total() float64 { return float64(b.max) }
func (b *StagnationBudget) Evaluation()    {}

func (b *StagnationBudget) Iteration() {
	if !b.searching {
		return
	}
	if p := b.progress(); p > b.best {
		b.best = p
		b.count = 0
		return
	}
	if b.count < b.max {
		b.count++
	}
}
