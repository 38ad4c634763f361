package planner

import "sort"

// DependencyClosure is the result of closure(node): the transitive runtime
// closures of node's direct runtime and buildtime dependencies,
// respectively (spec.md §4.B).
type DependencyClosure struct {
	Runtime   []*Node
	Buildtime []*Node
}

// Closure partitions n's direct outgoing edges by LinkTime, then for each
// partition performs a depth-first walk that only continues through
// Runtime edges -- buildtime is not transitive through buildtime edges,
// per spec.md §4.B.
//
// gonum.org/v1/gonum/graph/traverse.DepthFirst cannot filter by edge
// weight mid-walk, so this is a hand-rolled stack-based DFS in the same
// style internal/batch/batch.go's markFailed/canBuild use for their own
// g.From/g.To walks, rather than an ill-fitting use of the traverse
// package.
func (p *Frozen) Closure(n *Node) DependencyClosure {
	var runtimeRoots, buildtimeRoots []*Node
	it := p.graph.From(n.ID())
	for it.Next() {
		to := it.Node().(*Node)
		edge := p.graph.Edge(n.ID(), to.ID()).(depEdge)
		if edge.time == Runtime {
			runtimeRoots = append(runtimeRoots, to)
		} else {
			buildtimeRoots = append(buildtimeRoots, to)
		}
	}
	return DependencyClosure{
		Runtime:   p.transitiveRuntime(runtimeRoots),
		Buildtime: p.transitiveRuntime(buildtimeRoots),
	}
}

// transitiveRuntime returns roots plus every node reachable from them by
// following zero or more Runtime edges, sorted by node key for
// reproducibility (spec.md §4.B recommends this; the source does not sort
// and is therefore order-unstable).
func (p *Frozen) transitiveRuntime(roots []*Node) []*Node {
	visited := make(map[int64]bool)
	var order []*Node
	stack := append([]*Node(nil), roots...)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.id] {
			continue
		}
		visited[n.id] = true
		order = append(order, n)

		it := p.graph.From(n.id)
		for it.Next() {
			to := it.Node().(*Node)
			edge := p.graph.Edge(n.id, to.id).(depEdge)
			if edge.time == Runtime && !visited[to.id] {
				stack = append(stack, to)
			}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].Pkg.Name.Key() < order[j].Pkg.Name.Key()
	})
	return order
}
