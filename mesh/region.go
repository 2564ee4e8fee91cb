// Package mesh implements the block-structured mesh: per-rank MeshBlocks
// with their field storage, neighbor resolution across one-level jumps, the
// construction and step drivers, and the adaptive refinement cycle that
// mutates the tree, rebalances ranks, and migrates block data.
package mesh

import "math"

// NGhost is the ghost cell width of every block.
const NGhost = 2

// RegionSize describes a rectangular region: inclusive physical extents,
// cell-size ratios, and cell counts per axis.
type RegionSize struct {
	X1Min, X2Min, X3Min float64
	X1Max, X2Max, X3Max float64
	X1Rat, X2Rat, X3Rat float64
	NX1, NX2, NX3       int
}

// MeshGenX1 maps the logical fraction x in [0,1] to a physical x1
// coordinate, honoring the geometric cell-size ratio.
func MeshGenX1(x float64, rs RegionSize) float64 {
	var lw, rw float64
	if rs.X1Rat == 1.0 {
		lw, rw = 1.0-x, x
	} else {
		ratn := math.Pow(rs.X1Rat, float64(rs.NX1))
		rnx := math.Pow(rs.X1Rat, x*float64(rs.NX1))
		lw = (rnx - ratn) / (1.0 - ratn)
		rw = 1.0 - lw
	}
	return rs.X1Min*lw + rs.X1Max*rw
}

// MeshGenX2 is the x2 analogue of MeshGenX1.
func MeshGenX2(x float64, rs RegionSize) float64 {
	var lw, rw float64
	if rs.X2Rat == 1.0 {
		lw, rw = 1.0-x, x
	} else {
		ratn := math.Pow(rs.X2Rat, float64(rs.NX2))
		rnx := math.Pow(rs.X2Rat, x*float64(rs.NX2))
		lw = (rnx - ratn) / (1.0 - ratn)
		rw = 1.0 - lw
	}
	return rs.X2Min*lw + rs.X2Max*rw
}

// MeshGenX3 is the x3 analogue of MeshGenX1.
func MeshGenX3(x float64, rs RegionSize) float64 {
	var lw, rw float64
	if rs.X3Rat == 1.0 {
		lw, rw = 1.0-x, x
	} else {
		ratn := math.Pow(rs.X3Rat, float64(rs.NX3))
		rnx := math.Pow(rs.X3Rat, x*float64(rs.NX3))
		lw = (rnx - ratn) / (1.0 - ratn)
		rw = 1.0 - lw
	}
	return rs.X3Min*lw + rs.X3Max*rw
}
