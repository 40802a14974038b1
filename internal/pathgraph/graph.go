// Package pathgraph builds and queries the classic (unweighted BFS) 3D
// grid graph over a scenario's VALID cells, used both as a fallback when no
// optimized pathfinder cache exists and as the offline builder for one.
package pathgraph

import (
	"epidemsim/internal/errs"
	"epidemsim/internal/grid"
)

// Graph is a 3D grid graph: 4-connectivity within a floor, plus vertical
// links at cells where both floor z and floor z-1 flag STAIRS and
// TRANSIT_NODES at the same (x,y).
type Graph struct {
	Shape   grid.Shape
	Valid   *grid.Mask3D
	Stairs  *grid.Mask3D
	Transit *grid.Mask3D
}

// New builds a Graph view over the given masks. Stairs/Transit may be nil
// if the scenario has no multi-floor transit structure (single-floor maps).
func New(shape grid.Shape, valid, stairs, transit *grid.Mask3D) *Graph {
	return &Graph{Shape: shape, Valid: valid, Stairs: stairs, Transit: transit}
}

// Neighbors returns every cell directly reachable from c: up to four
// Manhattan-adjacent cells on the same floor, plus a vertical link to the
// floor above/below when both floors flag STAIRS and TRANSIT_NODES at (x,y).
func (g *Graph) Neighbors(c grid.Cell) []grid.Cell {
	var out []grid.Cell
	deltas := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for _, d := range deltas {
		n := grid.Cell{X: c.X + d[0], Y: c.Y + d[1], Z: c.Z}
		if g.Shape.Contains(n) && g.Valid.At(n) {
			out = append(out, n)
		}
	}
	if g.Stairs != nil && g.Transit != nil && g.Stairs.At(c) && g.Transit.At(c) {
		for _, dz := range [2]int{1, -1} {
			n := grid.Cell{X: c.X, Y: c.Y, Z: c.Z + dz}
			if g.Shape.Contains(n) && g.Valid.At(n) && g.Stairs.At(n) && g.Transit.At(n) {
				out = append(out, n)
			}
		}
	}
	return out
}

// Pathfind computes a shortest path from start to end inclusive of both
// endpoints via breadth-first search (uniform edge weights reduce Dijkstra
// to BFS). Returns ErrNoRoute when no path exists.
func (g *Graph) Pathfind(start, end grid.Cell) ([]grid.Cell, error) {
	if start == end {
		return []grid.Cell{start}, nil
	}
	visited := map[grid.Cell]grid.Cell{start: start}
	queue := []grid.Cell{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == end {
			return reconstruct(visited, start, end), nil
		}
		for _, n := range g.Neighbors(cur) {
			if _, seen := visited[n]; !seen {
				visited[n] = cur
				queue = append(queue, n)
			}
		}
	}
	return nil, errs.Wrap(errs.ErrNoRoute, "no path from %s to %s", start, end)
}

func reconstruct(visited map[grid.Cell]grid.Cell, start, end grid.Cell) []grid.Cell {
	var rev []grid.Cell
	for cur := end; ; {
		rev = append(rev, cur)
		if cur == start {
			break
		}
		cur = visited[cur]
	}
	path := make([]grid.Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}
