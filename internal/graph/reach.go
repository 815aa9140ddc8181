package graph

import "context"

// NeighborFunc returns the IDs a node depends on. Unknown nodes return no
// neighbors rather than an error.
type NeighborFunc func(ctx context.Context, id string) ([]string, error)

// Reachable walks dependency edges depth-first from start and reports whether
// target can be reached. start == target counts as reachable. Revisiting a
// node that is still on the current path means the walked graph already
// contains a cycle, which is also reported as true. Every node is expanded at
// most once, so the walk terminates on any finite graph.
func Reachable(ctx context.Context, start, target string, next NeighborFunc) (bool, error) {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int)

	var visit func(id string) (bool, error)
	visit = func(id string) (bool, error) {
		if id == target {
			return true, nil
		}
		switch state[id] {
		case onPath:
			return true, nil
		case done:
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		state[id] = onPath
		deps, err := next(ctx, id)
		if err != nil {
			return false, err
		}
		for _, dep := range deps {
			found, err := visit(dep)
			if err != nil || found {
				return found, err
			}
		}
		state[id] = done
		return false, nil
	}

	return visit(start)
}

// Neighbors adapts an in-memory graph to a NeighborFunc.
func (g *DepGraph) Neighbors() NeighborFunc {
	return func(_ context.Context, id string) ([]string, error) {
		return g.DependsOnIDs(id), nil
	}
}
