package cfg

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// NodeType tells conditionals apart from straight-line blocks.
type NodeType int

const (
	NodePlain NodeType = iota
	NodeConditional
	NodeEntry
	NodeExit
)

// EdgeType is the kind of control transfer an edge represents.
type EdgeType string

const (
	EdgeNormal    EdgeType = "normal"
	EdgeTrue      EdgeType = "true"
	EdgeFalse     EdgeType = "false"
	EdgeException EdgeType = "exception"
)

var (
	ErrUnknownNode   = errors.New("unknown control-flow node")
	ErrDuplicateNode = errors.New("control-flow node already exists")
	ErrSelfLoop      = errors.New("control-flow edge must connect two distinct nodes")
)

// Node is a basic block or a conditional of the control-flow graph.
type Node struct {
	ID   string
	Type NodeType

	gid int64
}

// Graph is a control-flow graph. Nodes are addressed by their string ids,
// the same ids instrumentation reports in traces.
type Graph struct {
	nodes  map[string]*Node
	byGID  map[int64]*Node
	edges  map[[2]int64]EdgeType
	nextID int64

	forward *simple.DirectedGraph
	reverse *simple.DirectedGraph
}

func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		byGID:   make(map[int64]*Node),
		edges:   make(map[[2]int64]EdgeType),
		forward: simple.NewDirectedGraph(),
		reverse: simple.NewDirectedGraph(),
	}
}

func (g *Graph) AddNode(id string, t NodeType) error {
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	n := &Node{ID: id, Type: t, gid: g.nextID}
	g.nextID++

	g.nodes[id] = n
	g.byGID[n.gid] = n
	g.forward.AddNode(simple.Node(n.gid))
	g.reverse.AddNode(simple.Node(n.gid))
	return nil
}

func (g *Graph) AddEdge(from, to string, t EdgeType) error {
	f, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	d, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if f == d {
		return fmt.Errorf("%w: %s", ErrSelfLoop, from)
	}

	g.forward.SetEdge(simple.Edge{F: simple.Node(f.gid), T: simple.Node(d.gid)})
	g.reverse.SetEdge(simple.Edge{F: simple.Node(d.gid), T: simple.Node(f.gid)})
	g.edges[[2]int64{f.gid, d.gid}] = t
	return nil
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Successors returns the ids of the nodes reachable over one edge from id,
// keyed by edge type.
func (g *Graph) Successors(id string) (map[string]EdgeType, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	out := make(map[string]EdgeType)
	it := g.forward.From(n.gid)
	for it.Next() {
		to := it.Node().ID()
		out[g.byGID[to].ID] = g.edges[[2]int64{n.gid, to}]
	}
	return out, nil
}

// ConditionalCount is the number of conditional nodes in the graph.
func (g *Graph) ConditionalCount() int {
	count := 0
	for _, n := range g.nodes {
		if n.Type == NodeConditional {
			count++
		}
	}
	return count
}

// NodeIDs returns every node id in lexical order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
