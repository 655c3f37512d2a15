// Package quadtree implements a lazy top down traversal of the tile quad
// tree. The tree is never materialized: each call descends on demand, driven
// only by the refinement predicate, and holds no more than the current
// recursion path in memory.
package quadtree

import "github.com/openalp/firn/tile"

// Traverse walks the quad tree rooted at root. refine decides whether a node
// is subdivided; children returns the child ids of a subdivided node. Nodes
// where refine returns false are leaves and are not descended into.
//
// The returned slice is the ordered sequence of inner (subdivided) node ids.
// With a deterministic predicate the result is identical across calls.
func Traverse(root tile.Id, refine func(tile.Id) bool, children func(tile.Id) [4]tile.Id) []tile.Id {
	return traverse(nil, root, refine, children)
}

func traverse(inner []tile.Id, id tile.Id, refine func(tile.Id) bool, children func(tile.Id) [4]tile.Id) []tile.Id {
	if !refine(id) {
		return inner
	}

	inner = append(inner, id)
	for _, child := range children(id) {
		inner = traverse(inner, child, refine, children)
	}
	return inner
}
