package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// RefCycle is a set of named expressions that reference each other.
type RefCycle struct {
	Path    []string `json:"path"` // e.g. ["a", "b", "a"]
	Message string   `json:"message"`
}

// RefGraph maps an expression name to the names it references.
type RefGraph map[string][]string

// AnalyzeRefs reports every reference cycle in g. Cycles are found with
// Tarjan's algorithm; nodes and edges are visited in sorted order so the
// result is deterministic. An acyclic graph yields nil.
func AnalyzeRefs(g RefGraph) []RefCycle {
	var cycles []RefCycle
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			cycles = append(cycles, g.cycle(scc))
		}
	}
	return cycles
}

func (g RefGraph) hasSelfLoop(name string) bool {
	return slices.Contains(g[name], name)
}

func (g RefGraph) sortedNodes() []string {
	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

func (g RefGraph) successors(name string) []string {
	out := slices.Clone(g[name])
	slices.Sort(out)
	return slices.Compact(out)
}

// tarjanSCC returns the strongly connected components of g. Components are
// emitted after every component they reach.
func tarjanSCC(g RefGraph) [][]string {
	var (
		index   int
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

		for _, w := range g.successors(v) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.sortedNodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// cycle walks the component from its smallest member, following edges that
// stay inside the component, until it returns to the start.
func (g RefGraph) cycle(scc []string) RefCycle {
	start := scc[0]
	if len(scc) == 1 {
		return RefCycle{
			Path:    []string{start, start},
			Message: fmt.Sprintf("expression %q references itself", start),
		}
	}

	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, w := range g.successors(current) {
			if !members[w] {
				continue
			}
			if w == start && len(path) > 1 {
				next = w
				break
			}
			if !visited[w] && next == "" {
				next = w
			}
		}
		if next == "" {
			// Dead end inside the component: close the loop explicitly.
			path = append(path, start)
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return RefCycle{
		Path:    path,
		Message: fmt.Sprintf("reference cycle: %s", strings.Join(path, " -> ")),
	}
}
