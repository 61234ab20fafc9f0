package archive

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Archive maps every covered objective to the fittest encoding known for it,
// and keeps the inverse mapping from an encoding to the objectives it is
// currently the champion for.
//
// Only encodings with at least one objective count as archived. Encodings
// that lost their last objective during an update with keepOld set are
// retained: HasEncoding still reports them, but they do not add to Size.
type Archive struct {
	objectives map[framework.ObjectiveID]framework.ObjectiveFunction
	champions  map[framework.ObjectiveID]framework.EncodingID
	encodings  map[framework.EncodingID]framework.Encoding
	uses       map[framework.EncodingID][]framework.ObjectiveID
	retained   map[framework.EncodingID]framework.Encoding

	// insertion order of encodings, for deterministic iteration
	order []framework.EncodingID
}

func New() *Archive {
	return &Archive{
		objectives: make(map[framework.ObjectiveID]framework.ObjectiveFunction),
		champions:  make(map[framework.ObjectiveID]framework.EncodingID),
		encodings:  make(map[framework.EncodingID]framework.Encoding),
		uses:       make(map[framework.EncodingID][]framework.ObjectiveID),
		retained:   make(map[framework.EncodingID]framework.Encoding),
	}
}

func (a *Archive) HasObjective(id framework.ObjectiveID) bool {
	_, ok := a.champions[id]
	return ok
}

func (a *Archive) HasEncoding(e framework.Encoding) bool {
	if _, ok := a.uses[e.ID()]; ok {
		return true
	}
	_, ok := a.retained[e.ID()]
	return ok
}

// Size is the number of distinct encodings that champion at least one
// objective.
func (a *Archive) Size() int {
	return len(a.uses)
}

// Update installs encoding as the champion of objective. The previous
// champion loses the objective and, when it has nothing left and keepOld is
// false, leaves the archive. Re-installing the pair already present is an
// implementation error.
func (a *Archive) Update(objective framework.ObjectiveFunction, encoding framework.Encoding, keepOld bool) error {
	id := objective.ID()
	if old, ok := a.champions[id]; ok {
		if old == encoding.ID() {
			return framework.NewImplementationError("archive update",
				fmt.Errorf("%w: objective %s, encoding %s", framework.ErrDuplicateArchiveEntry, id, old))
		}
		a.release(id, old, keepOld)
	}

	a.objectives[id] = objective
	a.champions[id] = encoding.ID()
	if _, ok := a.uses[encoding.ID()]; !ok {
		a.encodings[encoding.ID()] = encoding
		a.order = append(a.order, encoding.ID())
		delete(a.retained, encoding.ID())
	}
	a.uses[encoding.ID()] = append(a.uses[encoding.ID()], id)
	return nil
}

func (a *Archive) release(objective framework.ObjectiveID, owner framework.EncodingID, keepOld bool) {
	uses := slices.DeleteFunc(a.uses[owner], func(id framework.ObjectiveID) bool {
		return id == objective
	})
	if len(uses) > 0 {
		a.uses[owner] = uses
		return
	}

	if keepOld {
		a.retained[owner] = a.encodings[owner]
	}
	delete(a.uses, owner)
	delete(a.encodings, owner)
	a.order = slices.DeleteFunc(a.order, func(id framework.EncodingID) bool {
		return id == owner
	})
}

// Merge copies every entry of other into a, overwriting conflicting
// objectives with keepOld set. Merge does not look at fitness: callers that
// need the fitter encoding to win must filter other beforehand.
func (a *Archive) Merge(other *Archive) error {
	for _, id := range other.objectiveIDs() {
		encoding := other.encodings[other.champions[id]]
		if a.champions[id] == encoding.ID() {
			continue
		}
		if err := a.Update(other.objectives[id], encoding, true); err != nil {
			return err
		}
	}
	return nil
}

// Encoding returns the champion of objective.
func (a *Archive) Encoding(id framework.ObjectiveID) (framework.Encoding, bool) {
	eid, ok := a.champions[id]
	if !ok {
		return nil, false
	}
	return a.encodings[eid], true
}

// Encodings returns every archived encoding in insertion order.
func (a *Archive) Encodings() []framework.Encoding {
	out := make([]framework.Encoding, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.encodings[id])
	}
	return out
}

// Retained returns encodings kept by keepOld updates that no longer
// champion any objective.
func (a *Archive) Retained() []framework.Encoding {
	out := make([]framework.Encoding, 0, len(a.retained))
	for _, e := range a.retained {
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y framework.Encoding) int {
		return cmp.Compare(x.ID(), y.ID())
	})
	return out
}

// Uses returns the objectives encoding is currently the champion for.
func (a *Archive) Uses(e framework.Encoding) []framework.ObjectiveFunction {
	ids := a.uses[e.ID()]
	out := make([]framework.ObjectiveFunction, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.objectives[id])
	}
	return out
}

// Objectives returns every archived objective ordered by id.
func (a *Archive) Objectives() []framework.ObjectiveFunction {
	ids := a.objectiveIDs()
	out := make([]framework.ObjectiveFunction, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.objectives[id])
	}
	return out
}

func (a *Archive) objectiveIDs() []framework.ObjectiveID {
	ids := make([]framework.ObjectiveID, 0, len(a.champions))
	for id := range a.champions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
