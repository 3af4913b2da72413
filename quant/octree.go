// Package quant implements the color-quantization engine: an octree
// color extractor, a 3-D k-d tree for nearest-palette lookup, and a
// Floyd-Steinberg dithering quantizer built on top of both. Grounded
// on the classic octree-quantizer shape (see Smallsan/OctQuant in the
// retrieval pack) generalized to the spec's monoid-info / prune-to-N
// contract.
package quant

import "termgfx/color"

// leaf aggregates the running sum of every RGB triple folded into it
// plus how many there were; the average recovers the representative
// color. index is populated only during palette emission.
type leaf struct {
	rSum, gSum, bSum int64
	count            int64
	index            int
}

func (l *leaf) add(c color.RGBA) {
	l.rSum += int64(c.R)
	l.gSum += int64(c.G)
	l.bSum += int64(c.B)
	l.count++
}

func (l *leaf) merge(o leaf) {
	l.rSum += o.rSum
	l.gSum += o.gSum
	l.bSum += o.bSum
	l.count += o.count
}

func (l leaf) toRGBA() color.RGBA {
	if l.count == 0 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{
		R: uint8(l.rSum / l.count),
		G: uint8(l.gSum / l.count),
		B: uint8(l.bSum / l.count),
		A: 255,
	}
}

// noMinColorCount marks info.minColorCount as "no leaves in this
// subtree", standing in for the spec's None.
const noMinColorCount = -1

// info is the monoidal join summary every node carries: how many
// leaves and colors live in its subtree, and the smallest color_count
// among them (the prune heuristic removes the subtree with the
// smallest one first).
type info struct {
	leafCount     int
	colorCount    int64
	minColorCount int64
}

func emptyInfo() info {
	return info{minColorCount: noMinColorCount}
}

func leafInfo(l *leaf) info {
	return info{leafCount: 1, colorCount: l.count, minColorCount: l.count}
}

// join is the monoidal combination used to recompute a node's info
// from its children's (testable property 4).
func join(infos ...info) info {
	out := emptyInfo()
	for _, in := range infos {
		out.leafCount += in.leafCount
		out.colorCount += in.colorCount
		if in.minColorCount == noMinColorCount {
			continue
		}
		if out.minColorCount == noMinColorCount || in.minColorCount < out.minColorCount {
			out.minColorCount = in.minColorCount
		}
	}
	return out
}

// node is an octree node modeled the idiomatic Go way: a nil pointer is
// spec's Empty, a non-nil leaf with no children is spec's Leaf, and a
// node with any non-nil child is spec's Tree. This is the "interface
// abstraction... tagged variant" substitution the design notes
// explicitly allow.
type node struct {
	leaf     *leaf
	children [8]*node
	removed  leaf // sum of everything already pruned at/below this node
	info     info
}

func newNode() *node {
	return &node{info: emptyInfo()}
}

// pathIndices packs an RGB triple into its 8 three-bit octree indices,
// R contributing the high bit at each level (testable property 3: the
// full 8-index path losslessly round-trips the color).
func pathIndices(c color.RGBA) [8]int {
	word := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	var path [8]int
	// Extract bit 23-k, 15-k, 7-k (R,G,B high-to-low) at each step k.
	for k := 0; k < 8; k++ {
		rb := (word >> (23 - k)) & 1
		gb := (word >> (15 - k)) & 1
		bb := (word >> (7 - k)) & 1
		path[k] = int(rb<<2 | gb<<1 | bb)
	}
	return path
}

// octree is an 8-ary prefix tree over bit-interleaved RGB (spec section
// 4.2). Build one with newOctree; the zero value has no root node and
// is not usable.
type octree struct {
	root *node
}

func newOctree() *octree {
	return &octree{root: newNode()}
}

// insert descends along c's path, creating nodes on demand, and folds
// c into the leaf at depth 8 — or, if a leaf is reached earlier (the
// early-termination optimization spec section 4.2 calls out), updates
// that leaf in place instead of splitting further.
func (t *octree) insert(c color.RGBA) {
	path := pathIndices(c)
	t.root.insert(c, path, 0)
}

func (n *node) insert(c color.RGBA, path [8]int, depth int) {
	if n.leaf != nil {
		n.leaf.add(c)
		n.info = leafInfo(n.leaf)
		return
	}
	if depth == 8 {
		n.leaf = &leaf{}
		n.leaf.add(c)
		n.info = leafInfo(n.leaf)
		return
	}
	idx := path[depth]
	if n.children[idx] == nil {
		n.children[idx] = newNode()
	}
	n.children[idx].insert(c, path, depth+1)
	n.recomputeInfo()
}

func (n *node) recomputeInfo() {
	infos := make([]info, 0, 8)
	for _, ch := range n.children {
		if ch != nil {
			infos = append(infos, ch.info)
		}
	}
	n.info = join(infos...)
}

// prune repeatedly removes the subtree with the smallest min_color_count
// until leafCount <= max(target, 8) (spec section 4.2, testable
// property 5).
func (t *octree) prune(target int) {
	floor := target
	if floor < 8 {
		floor = 8
	}
	for t.root.info.leafCount > floor {
		t.root.pruneOnce()
	}
}

// pruneOnce folds one leaf, the one reachable by repeatedly descending
// into the child with the smallest min_color_count, into its parent's
// removed accumulator. When that leaf was its parent's only child, the
// parent becomes a leaf carrying removed instead, so that step leaves
// the tree's leaf count unchanged.
func (n *node) pruneOnce() {
	if n.leaf != nil {
		// n is itself the minimal leaf; fold it into removed and clear it.
		// A collapsed node's leaf already is removed.
		if n.leaf != &n.removed {
			n.removed.merge(*n.leaf)
		}
		n.leaf = nil
		n.info = emptyInfo()
		return
	}
	best := -1
	for i, ch := range n.children {
		if ch == nil {
			continue
		}
		if best == -1 || ch.info.minColorCount < n.children[best].info.minColorCount {
			best = i
		}
	}
	if best == -1 {
		return
	}
	child := n.children[best]
	if child.leaf != nil && allEmptyExcept(n.children, best) {
		// Folding the last remaining leaf collapses this node into one.
		n.removed.merge(*child.leaf)
		n.children[best] = nil
		n.leaf = &n.removed
		n.info = leafInfo(n.leaf)
		return
	}
	child.pruneOnce()
	if child.leaf == nil && isNodeEmpty(child) {
		n.removed.merge(child.removed)
		n.children[best] = nil
	}
	n.recomputeInfo()
	if allChildrenNil(n.children) && n.leaf == nil {
		n.leaf = &n.removed
		n.info = leafInfo(n.leaf)
	}
}

func allEmptyExcept(children [8]*node, except int) bool {
	for i, ch := range children {
		if i == except {
			continue
		}
		if ch != nil {
			return false
		}
	}
	return true
}

func allChildrenNil(children [8]*node) bool {
	for _, ch := range children {
		if ch != nil {
			return false
		}
	}
	return true
}

func isNodeEmpty(n *node) bool {
	return n.leaf == nil && allChildrenNil(n.children) && n.info.leafCount == 0
}

// buildPalette walks the tree in post-order, assigning each leaf the
// next free palette index and collecting its averaged color (spec
// section 4.2 "Build palette").
func (t *octree) buildPalette() []color.RGBA {
	var palette []color.RGBA
	t.root.collect(&palette)
	return palette
}

func (n *node) collect(palette *[]color.RGBA) {
	for _, ch := range n.children {
		if ch != nil {
			ch.collect(palette)
		}
	}
	if n.leaf != nil {
		n.leaf.index = len(*palette)
		*palette = append(*palette, n.leaf.toRGBA())
	}
}

// find walks the path until an Empty or Leaf is hit. It is spatially
// approximate — callers needing true nearest-neighbor must use
// Palette.Find instead (spec section 4.2 "Find").
func (t *octree) find(c color.RGBA) (int, color.RGBA, bool) {
	path := pathIndices(c)
	n := t.root
	for depth := 0; depth < 8; depth++ {
		if n.leaf != nil {
			return n.leaf.index, n.leaf.toRGBA(), true
		}
		next := n.children[path[depth]]
		if next == nil {
			return 0, color.RGBA{}, false
		}
		n = next
	}
	if n.leaf != nil {
		return n.leaf.index, n.leaf.toRGBA(), true
	}
	return 0, color.RGBA{}, false
}

func (t *octree) leafCount() int {
	return t.root.info.leafCount
}
