// Package pathfinder implements the optimized pathfinder of spec.md §4.3:
// every valid cell is assigned a transit anchor, paths from cells to their
// anchor and between all anchor pairs are precomputed once, and a runtime
// query assembles a full path by concatenating up to three segments.
package pathfinder

import (
	"epidemsim/internal/errs"
	"epidemsim/internal/grid"
	"epidemsim/internal/pathgraph"
)

// transitKey canonically orders an unordered pair of transit anchors so
// that each segment between them is stored in only one direction.
type transitKey struct{ A, B grid.Cell }

func canonicalKey(a, b grid.Cell) (transitKey, bool) {
	if less(a, b) {
		return transitKey{A: a, B: b}, false
	}
	return transitKey{A: b, B: a}, true
}

func less(a, b grid.Cell) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Table holds the precomputed lookup tables: a path from every cell to its
// transit anchor, the anchor assignment itself, and a path between every
// pair of transit anchors.
type Table struct {
	CellPath    map[grid.Cell][]grid.Cell
	Anchor      map[grid.Cell]grid.Cell
	TransitPath map[transitKey][]grid.Cell
}

// Build precomputes a Table over every VALID cell in the graph. Transit
// anchors are the cells passed in transit (the Scenario passes every
// TRANSIT_NODES cell); if transit is empty, one
// synthetic anchor is chosen per floor so the pipeline still functions on
// maps that carry no transit-node overlay.
func Build(classic *pathgraph.Graph, validCells []grid.Cell, transit []grid.Cell) (*Table, error) {
	if len(transit) == 0 {
		transit = syntheticAnchors(classic, validCells)
	}
	anchor := map[grid.Cell]grid.Cell{}
	parent := map[grid.Cell]grid.Cell{}
	queue := make([]grid.Cell, 0, len(transit))
	for _, t := range transit {
		anchor[t] = t
		parent[t] = t
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range classic.Neighbors(cur) {
			if _, seen := anchor[n]; !seen {
				anchor[n] = anchor[cur]
				parent[n] = cur
				queue = append(queue, n)
			}
		}
	}

	cellPath := map[grid.Cell][]grid.Cell{}
	for _, c := range validCells {
		if _, ok := anchor[c]; !ok {
			continue // unreachable from any transit anchor; left out of the table
		}
		cellPath[c] = pathToAnchor(parent, c)
	}

	transitPath := map[transitKey][]grid.Cell{}
	for i := 0; i < len(transit); i++ {
		for j := i + 1; j < len(transit); j++ {
			key, _ := canonicalKey(transit[i], transit[j])
			if _, ok := transitPath[key]; ok {
				continue
			}
			seg, err := classic.Pathfind(key.A, key.B)
			if err != nil {
				continue // disconnected transit clusters; resolved lazily as ErrNoRoute on query
			}
			transitPath[key] = seg
		}
	}

	return &Table{CellPath: cellPath, Anchor: anchor, TransitPath: transitPath}, nil
}

func pathToAnchor(parent map[grid.Cell]grid.Cell, start grid.Cell) []grid.Cell {
	path := []grid.Cell{start}
	cur := start
	for parent[cur] != cur {
		cur = parent[cur]
		path = append(path, cur)
	}
	return path
}

// syntheticAnchors picks one reachable cell per floor as an anchor when the
// map carries no explicit transit-node overlay.
func syntheticAnchors(classic *pathgraph.Graph, validCells []grid.Cell) []grid.Cell {
	seen := map[int]bool{}
	var anchors []grid.Cell
	for _, c := range validCells {
		if !seen[c.Z] {
			seen[c.Z] = true
			anchors = append(anchors, c)
		}
	}
	return anchors
}

// Pathfind assembles a full path between start and end by concatenating the
// cell-to-anchor, anchor-to-anchor, and anchor-to-cell segments.
func (t *Table) Pathfind(start, end grid.Cell) ([]grid.Cell, error) {
	if start == end {
		return []grid.Cell{start}, nil
	}
	t1, ok := t.Anchor[start]
	if !ok {
		return nil, errs.Wrap(errs.ErrUnknownCell, "start cell %s has no transit anchor", start)
	}
	t2, ok := t.Anchor[end]
	if !ok {
		return nil, errs.Wrap(errs.ErrUnknownCell, "end cell %s has no transit anchor", end)
	}

	path := []grid.Cell{start}
	if start != t1 {
		seg, ok := t.CellPath[start]
		if !ok {
			return nil, errs.Wrap(errs.ErrUnknownCell, "no precomputed segment for cell %s", start)
		}
		path = appendSegment(path, seg)
	}
	if t1 != t2 {
		transitSeg, err := t.transitSegment(t1, t2)
		if err != nil {
			return nil, err
		}
		path = appendSegment(path, transitSeg)
	}
	if end != t2 {
		seg, ok := t.CellPath[end]
		if !ok {
			return nil, errs.Wrap(errs.ErrUnknownCell, "no precomputed segment for cell %s", end)
		}
		path = appendSegment(path, reverseCells(seg))
	}
	return path, nil
}

func (t *Table) transitSegment(t1, t2 grid.Cell) ([]grid.Cell, error) {
	key, reversed := canonicalKey(t1, t2)
	seg, ok := t.TransitPath[key]
	if !ok {
		return nil, errs.Wrap(errs.ErrNoRoute, "no route between transit anchors %s and %s", t1, t2)
	}
	if reversed {
		return reverseCells(seg), nil
	}
	return seg, nil
}

// appendSegment appends seg to path, skipping seg's first element when it
// coincides with path's current tail (segments share their junction cell).
func appendSegment(path, seg []grid.Cell) []grid.Cell {
	if len(seg) == 0 {
		return path
	}
	if len(path) > 0 && path[len(path)-1] == seg[0] {
		return append(path, seg[1:]...)
	}
	return append(path, seg...)
}

func reverseCells(cells []grid.Cell) []grid.Cell {
	out := make([]grid.Cell, len(cells))
	for i, c := range cells {
		out[len(cells)-1-i] = c
	}
	return out
}
