package plan

import "goalflow/internal/goal"

// findCycles performs static cycle analysis on the dependency graph.
//
// The algorithm:
//  1. Build goal -> required-goal edges from the requires clauses
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, and self-loops, as a cycle
//
// A DAG (no cycles) returns an empty list. Edges to undeclared goals
// are ignored; Validate reports those separately.
func findCycles(s *Spec) [][]string {
	graph := buildDependencyGraph(s)

	var cycles [][]string
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			// Close the loop for readability: a -> b -> a.
			cycles = append(cycles, append(scc, scc[0]))
		}
	}
	return cycles
}

// dependencyGraph maps goal key strings to the goals they require.
type dependencyGraph struct {
	order []string
	edges map[string][]string
}

func buildDependencyGraph(s *Spec) dependencyGraph {
	graph := dependencyGraph{edges: map[string][]string{}}

	declared := map[string]bool{}
	for _, g := range s.Goals {
		id := graphID(g.key(s.Environment))
		declared[id] = true
		graph.order = append(graph.order, id)
		graph.edges[id] = []string{}
	}

	for _, g := range s.Goals {
		id := graphID(g.key(s.Environment))
		for _, dep := range g.Requires {
			depID := graphID(resolveDependency(dep, g, s.Environment))
			if declared[depID] {
				graph.edges[id] = append(graph.edges[id], depID)
			}
		}
	}
	return graph
}

func graphID(k goal.Key) string {
	return goal.Key{Environment: k.Environment, UniqueName: k.UniqueName}.String()
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's
// algorithm. Nodes are visited in declaration order so output is
// deterministic. Single-node SCCs without self-loops are not cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph.edges[v] {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		// v is the root of an SCC: pop the stack down to v.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range graph.order {
		if _, seen := indices[v]; !seen {
			strongConnect(v)
		}
	}
	return sccs
}
