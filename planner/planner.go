package planner

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Node is a handle to a registered package inside a planner's graph.
type Node struct {
	id  int64
	Pkg *Package
}

// ID implements gonum's graph.Node.
func (n *Node) ID() int64 { return n.id }

// depEdge is a directed dependency edge carrying its LinkTime, the same
// role internal/batch/batch.go's plain (unweighted) g.SetEdge(g.NewEdge(...))
// calls play there -- except xuehua needs the edge weight to be the
// Runtime/Buildtime classification, so edges are a small custom type
// implementing graph.Edge directly instead of relying on simple.Edge.
type depEdge struct {
	from, to graph.Node
	time     LinkTime
}

func (e depEdge) From() graph.Node         { return e.from }
func (e depEdge) To() graph.Node           { return e.to }
func (e depEdge) ReversedEdge() graph.Edge { return depEdge{from: e.to, to: e.from, time: e.time} }

// Unfrozen is a planner accepting package registrations. It transitions
// once, via Freeze, into an immutable Frozen planner.
type Unfrozen struct {
	graph  *simple.DirectedGraph
	byName map[string]*Node
	nextID int64
}

// New returns an empty Unfrozen planner.
func New() *Unfrozen {
	return &Unfrozen{
		graph:  simple.NewDirectedGraph(),
		byName: make(map[string]*Node),
	}
}

// Register inserts pkg as a new node with no outgoing edges yet; its
// Dependencies are consumed later, at Freeze time. Fails with
// *ConflictError if a package of identical name already exists.
func (p *Unfrozen) Register(pkg *Package) (*Node, error) {
	key := pkg.Name.Key()
	if _, exists := p.byName[key]; exists {
		return nil, &ConflictError{Name: pkg.Name}
	}
	n := &Node{id: p.nextID, Pkg: pkg}
	p.nextID++
	p.byName[key] = n
	p.graph.AddNode(n)
	return n, nil
}

// Freeze is the one-shot transform described in spec.md §4.B: it moves
// each node's Dependencies list into outgoing graph edges, validates the
// result is acyclic, and returns an immutable Frozen planner. The receiver
// must not be used afterwards.
func (p *Unfrozen) Freeze() (*Frozen, error) {
	nodes := make([]*Node, 0, len(p.byName))
	for _, n := range p.byName {
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		deps := n.Pkg.Dependencies
		n.Pkg.Dependencies = nil // moved out, per spec.md §4.B step 2
		for _, dep := range deps {
			target, ok := p.byName[dep.Name.Key()]
			if !ok {
				return nil, &UnregisteredDependencyError{From: n.Pkg.Name, Dep: dep.Name}
			}
			if target == n {
				// simple.DirectedGraph refuses self edges, so a package
				// depending on itself is reported here instead.
				return nil, &CycleError{From: n.Pkg.Name, To: n.Pkg.Name}
			}
			p.graph.SetEdge(depEdge{from: n, to: target, time: dep.Time})
		}
	}

	if _, err := topo.Sort(p.graph); err != nil {
		return nil, cycleFromUnorderable(err)
	}

	return &Frozen{graph: p.graph, byName: p.byName}, nil
}

// cycleFromUnorderable turns gonum's topo.Unorderable into a *CycleError
// naming one offending edge, the same detection distri's
// internal/batch/batch.go performs (there, to break the cycle; here, to
// refuse to freeze -- see SPEC_FULL.md's REDESIGN FLAGS).
func cycleFromUnorderable(err error) error {
	uo, ok := err.(topo.Unorderable)
	if !ok {
		return err
	}
	for _, component := range uo {
		if len(component) == 0 {
			continue
		}
		n, ok := component[0].(*Node)
		if !ok {
			continue
		}
		if len(component) == 1 {
			// A single-node component that is still "unorderable" means a
			// self-loop.
			return &CycleError{From: n.Pkg.Name, To: n.Pkg.Name}
		}
		other, ok := component[1].(*Node)
		if !ok {
			continue
		}
		return &CycleError{From: n.Pkg.Name, To: other.Pkg.Name}
	}
	return err
}

// Frozen is an immutable, acyclic planner. All graph queries live here.
type Frozen struct {
	graph  *simple.DirectedGraph
	byName map[string]*Node
}

// Resolve looks up a node by name.
func (p *Frozen) Resolve(name PackageName) (*Node, bool) {
	n, ok := p.byName[name.Key()]
	return n, ok
}

// Dependencies returns the direct (one-hop) outgoing dependency edges of
// n, i.e. neighbors_directed(node, Outgoing) from spec.md §4.B.
func (p *Frozen) Dependencies(n *Node) []Dependency {
	var out []Dependency
	it := p.graph.From(n.ID())
	for it.Next() {
		to := it.Node()
		edge := p.graph.Edge(n.ID(), to.ID()).(depEdge)
		out = append(out, Dependency{Name: to.(*Node).Pkg.Name, Time: edge.time})
	}
	return out
}

// Dependents returns the direct (one-hop) incoming edges of n, i.e.
// neighbors_directed(node, Incoming).
func (p *Frozen) Dependents(n *Node) []*Node {
	var out []*Node
	it := p.graph.To(n.ID())
	for it.Next() {
		out = append(out, it.Node().(*Node))
	}
	return out
}

// Nodes returns every node in the frozen graph.
func (p *Frozen) Nodes() []*Node {
	out := make([]*Node, 0, len(p.byName))
	for _, n := range p.byName {
		out = append(out, n)
	}
	return out
}
