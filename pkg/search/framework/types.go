package framework

import (
	"context"

	"github.com/google/uuid"
)

// EncodingID is the stable identity of an encoding for its whole lifetime.
type EncodingID string

// ObjectiveID identifies a coverage target, e.g. a branch node of a
// control-flow graph.
type ObjectiveID string

// NewEncodingID returns a fresh random encoding identity.
func NewEncodingID() EncodingID {
	return EncodingID(uuid.NewString())
}

// Encoding describes the contract a candidate solution needs to implement.
// The core never looks at the genome itself, only at the metadata below.
type Encoding interface {
	ID() EncodingID
	// Length is the secondary criterion used to break ties between
	// encodings that are equally close to an objective.
	Length() int

	Distance(ObjectiveID) (float64, bool)
	SetDistance(ObjectiveID, float64)

	Rank() int
	SetRank(int)
	CrowdingDistance() float64
	SetCrowdingDistance(float64)

	ExecutionResult() ExecutionResult
	SetExecutionResult(ExecutionResult)
}

// EncodingBase carries the bookkeeping every Encoding needs. Concrete
// encodings embed it and add a genome and Length.
type EncodingBase struct {
	id        EncodingID
	distances map[ObjectiveID]float64
	rank      int
	crowding  float64
	result    ExecutionResult
}

func NewEncodingBase() EncodingBase {
	return EncodingBase{
		id:        NewEncodingID(),
		distances: make(map[ObjectiveID]float64),
	}
}

func (e *EncodingBase) ID() EncodingID {
	return e.id
}

func (e *EncodingBase) Distance(id ObjectiveID) (float64, bool) {
	d, ok := e.distances[id]
	return d, ok
}

func (e *EncodingBase) SetDistance(id ObjectiveID, d float64) {
	if e.distances == nil {
		e.distances = make(map[ObjectiveID]float64)
	}
	e.distances[id] = d
}

func (e *EncodingBase) Rank() int {
	return e.rank
}

func (e *EncodingBase) SetRank(rank int) {
	e.rank = rank
}

func (e *EncodingBase) CrowdingDistance() float64 {
	return e.crowding
}

func (e *EncodingBase) SetCrowdingDistance(d float64) {
	e.crowding = d
}

func (e *EncodingBase) ExecutionResult() ExecutionResult {
	return e.result
}

func (e *EncodingBase) SetExecutionResult(r ExecutionResult) {
	e.result = r
}

// ObjectiveFunction describes a single coverage target with a
// distance-to-cover metric. A distance of exactly 0 means covered.
type ObjectiveFunction interface {
	ID() ObjectiveID

	// Shallow objectives are only checked for covered/uncovered instead of
	// computing the full distance.
	Shallow() bool
	SetShallow(bool)

	CalculateDistance(Encoding) (float64, error)

	LowestDistance() float64
	RecordDistance(float64)
	// ResetDistance forgets every recorded distance.
	ResetDistance()

	// Parent returns nil for root objectives.
	Parent() ObjectiveFunction
	Children() []ObjectiveFunction
}

type linkable interface {
	ObjectiveFunction
	addChild(ObjectiveFunction)
	setParent(ObjectiveFunction)
}

// ObjectiveBase carries identity, the shallow flag, the running minimum and
// the parent/child links of an objective. Concrete objective functions
// embed it and add CalculateDistance.
type ObjectiveBase struct {
	id       ObjectiveID
	shallow  bool
	lowest   float64
	seen     bool
	parent   ObjectiveFunction
	children []ObjectiveFunction
}

func NewObjectiveBase(id ObjectiveID) ObjectiveBase {
	return ObjectiveBase{id: id}
}

func (o *ObjectiveBase) ID() ObjectiveID {
	return o.id
}

func (o *ObjectiveBase) Shallow() bool {
	return o.shallow
}

func (o *ObjectiveBase) SetShallow(shallow bool) {
	o.shallow = shallow
}

// LowestDistance returns math.MaxFloat64 until the first distance was
// recorded.
func (o *ObjectiveBase) LowestDistance() float64 {
	if !o.seen {
		return maxDistance
	}
	return o.lowest
}

func (o *ObjectiveBase) RecordDistance(d float64) {
	if !o.seen || d < o.lowest {
		o.lowest = d
		o.seen = true
	}
}

func (o *ObjectiveBase) ResetDistance() {
	o.lowest = 0
	o.seen = false
}

func (o *ObjectiveBase) Parent() ObjectiveFunction {
	return o.parent
}

func (o *ObjectiveBase) Children() []ObjectiveFunction {
	return o.children
}

func (o *ObjectiveBase) addChild(child ObjectiveFunction) {
	o.children = append(o.children, child)
}

func (o *ObjectiveBase) setParent(parent ObjectiveFunction) {
	o.parent = parent
}

// Link makes child reachable from parent. Both must embed ObjectiveBase.
func Link(parent, child ObjectiveFunction) {
	p, ok := parent.(linkable)
	if !ok {
		return
	}
	c, ok := child.(linkable)
	if !ok {
		return
	}
	p.addChild(child)
	c.setParent(parent)
}

// TraceType distinguishes the kinds of instrumented locations.
type TraceType string

const (
	TraceFunction TraceType = "function"
	TraceBranch   TraceType = "branch"
	TraceBlock    TraceType = "block"
)

// Trace is what instrumentation recorded for one location during one
// execution. For conditionals TrueDistance and FalseDistance hold the raw,
// unnormalised branch distance towards each outcome.
type Trace struct {
	ID                string
	Type              TraceType
	Hits              int
	TrueDistance      float64
	FalseDistance     float64
	StatementFraction float64
}

// ExecutionResult is produced by a Runner for one encoding.
type ExecutionResult interface {
	CoversID(id string) bool
	Traces() []Trace
	HasError() bool
	ErrorIdentifier() string
}

// Subject is the system under test: the set of objectives to cover.
type Subject interface {
	Name() string
	Objectives() []ObjectiveFunction
}

// Runner executes an encoding against a subject. This is the only
// suspension point of the search; it may block for arbitrary time.
type Runner interface {
	Execute(ctx context.Context, subject Subject, encoding Encoding) (ExecutionResult, error)
}

// Sampler creates fresh random encodings.
type Sampler interface {
	Sample() Encoding
}

// Variation produces offspring from existing encodings. Implementations must
// return new encodings with new identities and never modify their inputs.
type Variation interface {
	Crossover(a, b Encoding) (Encoding, Encoding)
	Mutate(e Encoding) Encoding
}

// BudgetManager gates the search loop. Counters only change through the
// signal methods.
type BudgetManager interface {
	HasBudgetLeft() bool
	// Progress is the used fraction of the tightest budget, in [0,1].
	Progress() float64

	InitializationStarted()
	InitializationStopped()
	SearchStarted()
	SearchStopped()

	Iteration()
	Evaluation()
}

// TerminationManager is polled cooperatively by the search.
type TerminationManager interface {
	IsTriggered() bool
}
