package tree

import (
	"testing"
)

var openBCs = [6]int{BCOutflow, BCOutflow, BCOutflow, BCOutflow, BCOutflow, BCOutflow}

func periodicBCs() [6]int {
	return [6]int{BCPeriodic, BCPeriodic, BCPeriodic, BCPeriodic, BCPeriodic, BCPeriodic}
}

// collectLeaves enumerates into fresh slices.
func collectLeaves(t *Tree) []LogicalLocation {
	n := t.CountLeaves()
	locs := make([]LogicalLocation, n)
	t.EnumerateLeaves(locs, nil)
	return locs
}

// spansTouch reports whether two index intervals at the finest level touch
// or overlap (closed intervals).
func spansTouch(as, ae, bs, be int64) bool {
	return as <= be && bs <= ae
}

// checkTwoToOne verifies |level difference| <= 1 for every pair of leaves
// sharing a face, edge, or corner.
func checkTwoToOne(t *testing.T, locs []LogicalLocation) {
	t.Helper()
	finest := 0
	for _, l := range locs {
		if l.Level > finest {
			finest = l.Level
		}
	}
	span := func(l LogicalLocation) (s [3]int64, e [3]int64) {
		sh := uint(finest - l.Level)
		s = [3]int64{l.LX1 << sh, l.LX2 << sh, l.LX3 << sh}
		e = [3]int64{(l.LX1+1)<<sh - 1, (l.LX2+1)<<sh - 1, (l.LX3+1)<<sh - 1}
		return
	}
	for i := range locs {
		si, ei := span(locs[i])
		for j := i + 1; j < len(locs); j++ {
			sj, ej := span(locs[j])
			adjacent := spansTouch(si[0]-1, ei[0]+1, sj[0], ej[0]) &&
				spansTouch(si[1]-1, ei[1]+1, sj[1], ej[1]) &&
				spansTouch(si[2]-1, ei[2]+1, sj[2], ej[2])
			if !adjacent {
				continue
			}
			d := locs[i].Level - locs[j].Level
			if d < -1 || d > 1 {
				t.Fatalf("adjacent leaves %v and %v differ by more than one level", locs[i], locs[j])
			}
		}
	}
}

func TestCreateRootGrid(t *testing.T) {
	tr := NewTree(4, 4, 4, 2, 63, 3, openBCs)
	if n := tr.CountLeaves(); n != 64 {
		t.Fatalf("4x4x4 root grid: got %d leaves, want 64", n)
	}

	tr = NewTree(4, 1, 1, 2, 63, 1, openBCs)
	if n := tr.CountLeaves(); n != 4 {
		t.Fatalf("4x1x1 root grid: got %d leaves, want 4", n)
	}

	// non-power-of-two root grids only create covering nodes
	tr = NewTree(3, 2, 1, 2, 63, 2, openBCs)
	if n := tr.CountLeaves(); n != 6 {
		t.Fatalf("3x2 root grid: got %d leaves, want 6", n)
	}
}

func TestAddLeafRefinesAncestors(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 63, 1, openBCs)
	nnew := 0
	if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 2}, &nnew); err != nil {
		t.Fatal(err)
	}
	// one root leaf split into two
	if n := tr.CountLeaves(); n != 5 {
		t.Fatalf("got %d leaves, want 5", n)
	}
	if nnew != 1 {
		t.Fatalf("nnew = %d, want 1", nnew)
	}
	checkTwoToOne(t, collectLeaves(tr))
}

func TestRefineCascade(t *testing.T) {
	// refining to depth 2 in one corner must pull the surrounding region
	// up one level to keep 2:1
	tr := NewTree(4, 4, 1, 2, 63, 2, openBCs)
	nnew := 0
	if err := tr.AddLeaf(LogicalLocation{Level: 4, LX1: 0, LX2: 0}, &nnew); err != nil {
		t.Fatal(err)
	}
	locs := collectLeaves(tr)
	checkTwoToOne(t, locs)

	// the corner region must contain level-4 leaves
	found := false
	for _, l := range locs {
		if l.Level == 4 {
			found = true
		}
	}
	if !found {
		t.Fatal("no level-4 leaf created")
	}
}

func TestEnumerationDeterministic(t *testing.T) {
	build := func() []LogicalLocation {
		tr := NewTree(4, 4, 1, 2, 63, 2, openBCs)
		nnew := 0
		if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 4, LX2: 2}, &nnew); err != nil {
			t.Fatal(err)
		}
		if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 2, LX2: 6}, &nnew); err != nil {
			t.Fatal(err)
		}
		return collectLeaves(tr)
	}
	a, b := build(), build()
	if len(a) != len(b) {
		t.Fatalf("leaf counts differ: %d != %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("enumeration differs at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestDerefine(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 63, 1, openBCs)
	nnew := 0
	if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 2}, &nnew); err != nil {
		t.Fatal(err)
	}
	parent := tr.FindLeaf(LogicalLocation{Level: 2, LX1: 1})
	if parent.IsLeaf() {
		t.Fatal("expected an internal node at the refined location")
	}
	ndel := 0
	if !tr.Derefine(parent, &ndel) {
		t.Fatal("derefine refused unexpectedly")
	}
	if n := tr.CountLeaves(); n != 4 {
		t.Fatalf("got %d leaves after derefine, want 4", n)
	}
}

func TestDerefineBlockedByFinerNeighbor(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 63, 1, openBCs)
	nnew := 0
	// leaf 1 refined once, leaf 2 refined twice: collapsing leaf 1 would
	// put a level-2 leaf next to a level-4 leaf
	if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 2}, &nnew); err != nil {
		t.Fatal(err)
	}
	if err := tr.AddLeaf(LogicalLocation{Level: 4, LX1: 8}, &nnew); err != nil {
		t.Fatal(err)
	}
	checkTwoToOne(t, collectLeaves(tr))

	parent := tr.FindLeaf(LogicalLocation{Level: 2, LX1: 1})
	ndel := 0
	if tr.Derefine(parent, &ndel) {
		t.Fatal("derefine should be blocked by the finer neighbor")
	}
}

func TestFindNeighborBoundaries(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 63, 1, periodicBCs())
	first := LogicalLocation{Level: 2, LX1: 0}
	nb := tr.FindNeighbor(first, -1, 0, 0)
	if nb == nil {
		t.Fatal("periodic neighbor missing")
	}
	if got := nb.Loc().LX1; got != 3 {
		t.Fatalf("periodic wrap: got lx1=%d, want 3", got)
	}

	tr = NewTree(4, 1, 1, 2, 63, 1, openBCs)
	if nb := tr.FindNeighbor(first, -1, 0, 0); nb != nil {
		t.Fatal("outflow boundary should have no neighbor")
	}
}

func TestFindNeighborAcrossLevels(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 63, 1, openBCs)
	nnew := 0
	if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 2}, &nnew); err != nil {
		t.Fatal(err)
	}
	// from the fine leaf, the -x neighbor is the coarser root leaf
	nb := tr.FindNeighbor(LogicalLocation{Level: 3, LX1: 2}, -1, 0, 0)
	if nb == nil || !nb.IsLeaf() {
		t.Fatal("expected a coarser leaf neighbor")
	}
	if nb.Loc().Level != 2 {
		t.Fatalf("neighbor level = %d, want 2", nb.Loc().Level)
	}
	// from the coarse side, the +x neighbor region is internal (finer)
	nb = tr.FindNeighbor(LogicalLocation{Level: 2, LX1: 0}, 1, 0, 0)
	if nb == nil || nb.IsLeaf() {
		t.Fatal("expected an internal node for the finer neighbor region")
	}
	leaf := nb.Leaf(0, 0, 0)
	if leaf == nil || leaf.Loc().Level != 3 {
		t.Fatal("expected the abutting finer leaf")
	}
}

func TestMortonOrder(t *testing.T) {
	a := LogicalLocation{Level: 2, LX1: 1, LX2: 0}
	b := LogicalLocation{Level: 2, LX1: 0, LX2: 1}
	// y bit outranks x bit in the interleave
	if !Less(a, b) {
		t.Fatal("(1,0) should order before (0,1)")
	}
	c := LogicalLocation{Level: 3}
	if !Less(a, c) {
		t.Fatal("coarser level orders first")
	}
	if !Greater(c, a) {
		t.Fatal("Greater should invert Less")
	}
}

func TestRefineBeyondMaxLevel(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 3, 1, openBCs)
	nnew := 0
	if err := tr.AddLeaf(LogicalLocation{Level: 4, LX1: 4}, &nnew); err == nil {
		t.Fatal("expected an error refining beyond the maximum level")
	}
}

func TestEnumerationTracksOldIDs(t *testing.T) {
	tr := NewTree(4, 1, 1, 2, 63, 1, openBCs)
	locs := make([]LogicalLocation, 4)
	tr.EnumerateLeaves(locs, nil) // assign initial ids

	nnew := 0
	if err := tr.AddLeaf(LogicalLocation{Level: 3, LX1: 2}, &nnew); err != nil {
		t.Fatal(err)
	}
	locs = make([]LogicalLocation, 5)
	newtoold := make([]int, 5)
	tr.EnumerateLeaves(locs, newtoold)
	// blocks 0 keeps id 0; the two children of old block 1 both report 1;
	// blocks 2,3 shift up
	want := []int{0, 1, 1, 2, 3}
	for i, w := range want {
		if newtoold[i] != w {
			t.Fatalf("newtoold = %v, want %v", newtoold, want)
		}
	}
}
