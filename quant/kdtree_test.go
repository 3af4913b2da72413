package quant

import (
	"testing"

	"termgfx/color"
)

func bruteForceNearest(points []kdpoint, target color.RGBA) int {
	best := 0
	bestDist := sqDist(target, points[0].color)
	for i, p := range points[1:] {
		if d := sqDist(target, p.color); d < bestDist {
			bestDist = d
			best = i + 1
		}
	}
	return points[best].index
}

func TestKDTreeAgreesWithBruteForce(t *testing.T) {
	points := []kdpoint{
		{color: color.RGBA{R: 10, G: 10, B: 10}, index: 0},
		{color: color.RGBA{R: 250, G: 10, B: 10}, index: 1},
		{color: color.RGBA{R: 10, G: 250, B: 10}, index: 2},
		{color: color.RGBA{R: 10, G: 10, B: 250}, index: 3},
		{color: color.RGBA{R: 128, G: 128, B: 128}, index: 4},
		{color: color.RGBA{R: 60, G: 180, B: 200}, index: 5},
		{color: color.RGBA{R: 220, G: 220, B: 30}, index: 6},
	}
	tree := buildKDTree(points)

	targets := []color.RGBA{
		{R: 0, G: 0, B: 0},
		{R: 255, G: 255, B: 255},
		{R: 100, G: 100, B: 100},
		{R: 240, G: 5, B: 5},
		{R: 15, G: 245, B: 20},
		{R: 70, G: 170, B: 190},
		{R: 200, G: 200, B: 50},
	}
	for _, target := range targets {
		wantIdx := bruteForceNearest(points, target)
		gotIdx, _, ok := tree.find(target)
		if !ok {
			t.Fatalf("expected find to succeed for %+v", target)
		}
		if gotIdx != wantIdx {
			t.Fatalf("find(%+v): got index %d, brute force wants %d", target, gotIdx, wantIdx)
		}
	}
}

func TestKDTreeSinglePoint(t *testing.T) {
	points := []kdpoint{{color: color.RGBA{R: 5, G: 6, B: 7}, index: 42}}
	tree := buildKDTree(points)
	idx, c, ok := tree.find(color.RGBA{R: 200, G: 1, B: 1})
	if !ok || idx != 42 || c != points[0].color {
		t.Fatalf("expected the only point back, got idx=%d c=%+v ok=%v", idx, c, ok)
	}
}
