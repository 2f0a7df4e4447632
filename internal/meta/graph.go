package meta

import (
	"sort"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// ReferenceGraph is the directed graph of class references: superclass
// links, relation targets and view-definition references. It backs the
// dependency ordering used for schema generation and the view-reference
// cycle check.
type ReferenceGraph struct {
	nodes map[string]*ClassMetaData
	// edges holds all reference edges, class -> referenced classes
	edges map[string][]string
	// viewEdges holds only view-definition references; cycles here are
	// configuration errors, unlike relation cycles which are legal.
	viewEdges map[string][]string
}

// NewReferenceGraph builds a graph over the given descriptors
func NewReferenceGraph(classes map[string]*ClassMetaData) *ReferenceGraph {
	g := &ReferenceGraph{
		nodes:     classes,
		edges:     make(map[string][]string),
		viewEdges: make(map[string][]string),
	}

	for name, cmd := range classes {
		for _, ref := range cmd.ReferencedClassNames() {
			if _, known := classes[ref]; known {
				g.edges[name] = append(g.edges[name], ref)
			}
		}
		for _, ref := range cmd.ViewReferences() {
			g.viewEdges[name] = append(g.viewEdges[name], ref)
		}
	}

	return g
}

// DetectViewCycles finds cycles among view-definition references. Each
// cycle is reported as the full reference chain, closed on the starting
// class.
func (g *ReferenceGraph) DetectViewCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.viewEdges[node] {
			if !visited[neighbor] {
				if dfs(neighbor, path) {
					return true
				}
			} else if recursionStack[neighbor] {
				cycleStart := -1
				for i, n := range path {
					if n == neighbor {
						cycleStart = i
						break
					}
				}
				if cycleStart >= 0 {
					cycle := make([]string, len(path)-cycleStart)
					copy(cycle, path[cycleStart:])
					cycle = append(cycle, neighbor)
					cycles = append(cycles, cycle)
				}
				return true
			}
		}

		recursionStack[node] = false
		return false
	}

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !visited[name] {
			dfs(name, []string{})
		}
	}

	return cycles
}

// CheckViewCycles returns a fatal error carrying the reference chain when
// the view graph is cyclic.
func (g *ReferenceGraph) CheckViewCycles() error {
	cycles := g.DetectViewCycles()
	if len(cycles) == 0 {
		return nil
	}
	return merr.NewCycle("populate", merr.ErrViewCycle, cycles[0][0], cycles[0]).
		WithHint("view definitions must not reference each other cyclically")
}

// DependencyOrder returns the classes ordered dependencies-first, suitable
// for schema generation. Relation cycles are legal; classes caught in one
// are appended in name order after the acyclic part.
func (g *ReferenceGraph) DependencyOrder() []string {
	outDegree := make(map[string]int)
	for node := range g.nodes {
		outDegree[node] = len(g.edges[node])
	}

	reverseEdges := make(map[string][]string)
	for source, targets := range g.edges {
		for _, target := range targets {
			reverseEdges[target] = append(reverseEdges[target], source)
		}
	}

	var queue []string
	for node, degree := range outDegree {
		if degree == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue)

	placed := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)
		placed[node] = true

		var freed []string
		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(result) < len(g.nodes) {
		var leftover []string
		for node := range g.nodes {
			if !placed[node] {
				leftover = append(leftover, node)
			}
		}
		sort.Strings(leftover)
		result = append(result, leftover...)
	}

	return result
}
