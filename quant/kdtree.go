package quant

import "termgfx/color"

// kdnode is a node of a 3-D k-d tree over RGB space, split alternately
// on R, G, then B as depth increases (spec section 4.3).
type kdnode struct {
	color       color.RGBA
	index       int
	left, right *kdnode
}

// kdtree supports nearest-color lookup over a fixed palette. It is
// built once per quantization pass and never mutated afterward.
type kdtree struct {
	root *kdnode
}

type kdpoint struct {
	color color.RGBA
	index int
}

func axisValue(c color.RGBA, axis int) int {
	switch axis % 3 {
	case 0:
		return int(c.R)
	case 1:
		return int(c.G)
	default:
		return int(c.B)
	}
}

// buildKDTree builds a balanced k-d tree by recursively splitting on
// the median of the current axis (spec section 4.3 "Build").
func buildKDTree(points []kdpoint) *kdtree {
	pts := make([]kdpoint, len(points))
	copy(pts, points)
	return &kdtree{root: build(pts, 0)}
}

func build(points []kdpoint, depth int) *kdnode {
	if len(points) == 0 {
		return nil
	}
	axis := depth % 3
	insertionSortByAxis(points, axis)
	mid := len(points) / 2
	n := &kdnode{color: points[mid].color, index: points[mid].index}
	n.left = build(points[:mid], depth+1)
	n.right = build(points[mid+1:], depth+1)
	return n
}

// insertionSortByAxis sorts points in place by the given axis. The
// palettes this tree is built over are small (bounded by palette size,
// at most a few hundred entries), so an O(n^2) sort keeps this file
// free of an extra sort.Slice closure allocation per level without
// being a practical cost.
func insertionSortByAxis(points []kdpoint, axis int) {
	for i := 1; i < len(points); i++ {
		j := i
		for j > 0 && axisValue(points[j-1].color, axis) > axisValue(points[j].color, axis) {
			points[j-1], points[j] = points[j], points[j-1]
			j--
		}
	}
}

func sqDist(a, b color.RGBA) int64 {
	dr := int64(a.R) - int64(b.R)
	dg := int64(a.G) - int64(b.G)
	db := int64(a.B) - int64(b.B)
	return dr*dr + dg*dg + db*db
}

// find returns the index and color of the palette entry nearest to c
// in squared Euclidean RGB distance, using branch-and-bound
// backtracking (spec section 4.3 "Find", testable property 6: agrees
// with brute-force linear scan).
func (t *kdtree) find(c color.RGBA) (int, color.RGBA, bool) {
	if t.root == nil {
		return 0, color.RGBA{}, false
	}
	best := t.root
	bestDist := sqDist(c, t.root.color)
	search(t.root, c, 0, &best, &bestDist)
	return best.index, best.color, true
}

func search(n *kdnode, target color.RGBA, depth int, best **kdnode, bestDist *int64) {
	if n == nil {
		return
	}
	d := sqDist(target, n.color)
	if d < *bestDist {
		*bestDist = d
		*best = n
	}
	axis := depth % 3
	diff := axisValue(target, axis) - axisValue(n.color, axis)

	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	search(near, target, depth+1, best, bestDist)
	// Only descend into the far side if the splitting plane is closer
	// than the best match found so far — the backtracking bound that
	// makes this faster than a brute-force scan.
	if int64(diff)*int64(diff) < *bestDist {
		search(far, target, depth+1, best, bestDist)
	}
}
