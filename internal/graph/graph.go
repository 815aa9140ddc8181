// Package graph holds the task dependency graph algorithms shared by the
// relationship manager and the reconciler.
package graph

import (
	"slices"
	"strings"
)

// Node is a task as the dependency graph sees it.
type Node struct {
	ID        string
	DependsOn []string
}

// Edge is a dependency edge: From depends on To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DepGraph is a directed dependency graph for tasks.
type DepGraph struct {
	ids     []string
	nodes   map[string]struct{}
	forward map[string][]string // task -> depends on
	reverse map[string][]string // task -> blocks
}

// BuildDepGraph initializes an in-memory dependency graph from nodes.
// Blank and duplicate dependency IDs are dropped.
func BuildDepGraph(nodes []Node) *DepGraph {
	g := &DepGraph{
		ids:     make([]string, 0, len(nodes)),
		nodes:   make(map[string]struct{}, len(nodes)),
		forward: make(map[string][]string, len(nodes)),
		reverse: make(map[string][]string, len(nodes)),
	}

	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			continue
		}
		g.nodes[n.ID] = struct{}{}
		g.ids = append(g.ids, n.ID)
		g.forward[n.ID] = make([]string, 0, len(n.DependsOn))
	}

	for _, n := range nodes {
		for _, depID := range n.DependsOn {
			depID = strings.TrimSpace(depID)
			if depID == "" || slices.Contains(g.forward[n.ID], depID) {
				continue
			}
			g.forward[n.ID] = append(g.forward[n.ID], depID)
			g.reverse[depID] = append(g.reverse[depID], n.ID)
		}
	}

	slices.Sort(g.ids)
	return g
}

// Has reports whether id is a node of the graph.
func (g *DepGraph) Has(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *DepGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.ids)
}

// DependsOnIDs returns all task IDs the task depends on.
func (g *DepGraph) DependsOnIDs(id string) []string {
	if g == nil || g.forward == nil {
		return nil
	}
	dependencies, ok := g.forward[id]
	if !ok {
		return nil
	}
	return cloneStringSlice(dependencies)
}

// BlocksIDs returns all task IDs directly blocked by the task.
func (g *DepGraph) BlocksIDs(id string) []string {
	if g == nil || g.reverse == nil {
		return nil
	}
	blockers, ok := g.reverse[id]
	if !ok {
		return nil
	}
	return cloneStringSlice(blockers)
}

// Missing returns the edges whose target is not a node of the graph.
func (g *DepGraph) Missing() []Edge {
	if g == nil {
		return nil
	}
	var out []Edge
	for _, id := range g.ids {
		for _, dep := range g.forward[id] {
			if _, ok := g.nodes[dep]; !ok {
				out = append(out, Edge{From: id, To: dep})
			}
		}
	}
	return out
}

// Cycles returns the cycles found by a depth-first walk, one per back edge.
// Each cycle is rotated to start at its smallest ID and reported once.
func (g *DepGraph) Cycles() [][]string {
	if g == nil {
		return nil
	}
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(g.ids))
	var (
		path   []string
		cycles [][]string
		seen   = make(map[string]struct{})
	)

	var visit func(id string)
	visit = func(id string) {
		state[id] = onPath
		path = append(path, id)
		for _, dep := range g.forward[id] {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case onPath:
				start := slices.Index(path, dep)
				cycle := normalizeCycle(path[start:])
				key := strings.Join(cycle, "\x00")
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
	}

	for _, id := range g.ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

func normalizeCycle(cycle []string) []string {
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[minIdx:]...)
	out = append(out, cycle[:minIdx]...)
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return make([]string, 0)
	}
	cp := make([]string, len(values))
	copy(cp, values)
	return cp
}
