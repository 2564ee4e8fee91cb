package mesh

import (
	"go.uber.org/zap"

	"github.com/amitseta90/athena/array"
	"github.com/amitseta90/athena/refinement"
	"github.com/amitseta90/athena/tree"
)

// MeshBlock is the physical state container of one block: the cell-centered
// conservative variables with ghost zones, optionally the face-centered
// field components, the block's place in the tree and in the rank-local
// doubly linked list, and — on a multilevel mesh — the half-resolution
// coarse buffers used across refinement jumps.
type MeshBlock struct {
	GID, LID int
	Loc      tree.LogicalLocation
	Size     RegionSize
	BCs      [6]int
	Cost     float64

	// Cell-centered conservative variables, Nvar x ncells3 x ncells2 x ncells1.
	U *array.Array4

	// Primitive scratch arrays carried through restart when general
	// relativity is enabled.
	W, W1 *array.Array4

	// Face-centered field components when magnetism is enabled.
	B array.FaceField

	// Ghost-augmented active index ranges.
	Is, Ie, Js, Je, Ks, Ke int

	// Coarse buffer geometry and storage (multilevel only).
	CNGhost                      int
	Cis, Cie, Cjs, Cje, Cks, Cke int
	CU                           *array.Array4
	CB                           array.FaceField
	Ref                          *refinement.Refiner

	// NewBlockDt is the timestep this block reported last; the external
	// integrator writes it, the driver reduces it.
	NewBlockDt float64

	Neighbors []NeighborBlock
	NBLevel   [3][3][3]int

	bvals *boundaryRequests

	prev, next *MeshBlock
	mesh       *Mesh
}

// NewMeshBlock allocates a fresh block. The field arrays start zeroed; the
// problem generator fills them during initialization.
func NewMeshBlock(gid, lid int, loc tree.LogicalLocation, size RegionSize, bcs [6]int, m *Mesh) *MeshBlock {
	mb := &MeshBlock{
		GID:  gid,
		LID:  lid,
		Loc:  loc,
		Size: size,
		BCs:  bcs,
		Cost: 1.0,
		mesh: m,
	}
	mb.setIndices()
	mb.allocate()
	m.log.Debug("meshblock created",
		zap.Int("gid", gid),
		zap.Int("rank", m.Comm.Rank()),
		zap.Int64("lx1", loc.LX1), zap.Int64("lx2", loc.LX2), zap.Int64("lx3", loc.LX3),
		zap.Int("level", loc.Level))
	return mb
}

func (mb *MeshBlock) setIndices() {
	mb.Is = NGhost
	mb.Ie = mb.Is + mb.Size.NX1 - 1
	if mb.Size.NX2 > 1 {
		mb.Js = NGhost
		mb.Je = mb.Js + mb.Size.NX2 - 1
	} else {
		mb.Js, mb.Je = 0, 0
	}
	if mb.Size.NX3 > 1 {
		mb.Ks = NGhost
		mb.Ke = mb.Ks + mb.Size.NX3 - 1
	} else {
		mb.Ks, mb.Ke = 0, 0
	}

	if mb.mesh.Multilevel {
		mb.CNGhost = (NGhost+1)/2 + 1
		mb.Cis = mb.CNGhost
		mb.Cie = mb.Cis + mb.Size.NX1/2 - 1
		mb.Cjs, mb.Cje, mb.Cks, mb.Cke = 0, 0, 0, 0
		if mb.Size.NX2 > 1 {
			mb.Cjs = mb.CNGhost
			mb.Cje = mb.Cjs + mb.Size.NX2/2 - 1
		}
		if mb.Size.NX3 > 1 {
			mb.Cks = mb.CNGhost
			mb.Cke = mb.Cks + mb.Size.NX3/2 - 1
		}
	}
}

func (mb *MeshBlock) allocate() {
	m := mb.mesh
	nc1 := mb.Size.NX1 + 2*NGhost
	nc2, nc3 := 1, 1
	if mb.Size.NX2 > 1 {
		nc2 = mb.Size.NX2 + 2*NGhost
	}
	if mb.Size.NX3 > 1 {
		nc3 = mb.Size.NX3 + 2*NGhost
	}
	mb.U = array.NewArray4(m.NHydro, nc3, nc2, nc1)
	if m.GR {
		mb.W = array.NewArray4(m.NHydro, nc3, nc2, nc1)
		mb.W1 = array.NewArray4(m.NHydro, nc3, nc2, nc1)
	}
	if m.Magnetic {
		mb.B = array.NewFaceField(nc3, nc2, nc1)
	}

	if m.Multilevel {
		cn1 := mb.Size.NX1/2 + 2*mb.CNGhost
		cn2, cn3 := 1, 1
		if mb.Size.NX2 > 1 {
			cn2 = mb.Size.NX2/2 + 2*mb.CNGhost
		}
		if mb.Size.NX3 > 1 {
			cn3 = mb.Size.NX3/2 + 2*mb.CNGhost
		}
		mb.CU = array.NewArray4(m.NHydro, cn3, cn2, cn1)
		if m.Magnetic {
			mb.CB = array.NewFaceField(cn3, cn2, cn1)
		}
		mb.Ref = &refinement.Refiner{
			Is: mb.Is, Js: mb.Js, Ks: mb.Ks,
			Cis: mb.Cis, Cjs: mb.Cjs, Cks: mb.Cks,
			Nx2: mb.Size.NX2 > 1,
			Nx3: mb.Size.NX3 > 1,
			Dx1: (mb.Size.X1Max - mb.Size.X1Min) / float64(mb.Size.NX1),
			Dx2: (mb.Size.X2Max - mb.Size.X2Min) / float64(max(mb.Size.NX2, 1)),
			Dx3: (mb.Size.X3Max - mb.Size.X3Min) / float64(max(mb.Size.NX3, 1)),
		}
	}
}

// SizeInBytes returns the block's restart payload size: RegionSize, the six
// boundary codes, the conservative array, the primitive arrays when general
// relativity is on, and the face fields when magnetism is on.
func (mb *MeshBlock) SizeInBytes() int64 {
	size := int64(regionSizeBytes + 6*4)
	size += 8 * int64(mb.U.Size())
	if mb.mesh.GR {
		size += 8 * int64(mb.W.Size()+mb.W1.Size())
	}
	if mb.mesh.Magnetic {
		size += 8 * int64(mb.B.Size())
	}
	return size
}

// cellVolume returns the volume of one active cell. Blocks are uniform to
// within the 10% ratio cap; degenerate dimensions contribute their full
// physical extent.
func (mb *MeshBlock) cellVolume() float64 {
	v := (mb.Size.X1Max - mb.Size.X1Min) / float64(mb.Size.NX1)
	if mb.Size.NX2 > 1 {
		v *= (mb.Size.X2Max - mb.Size.X2Min) / float64(mb.Size.NX2)
	} else {
		v *= mb.Size.X2Max - mb.Size.X2Min
	}
	if mb.Size.NX3 > 1 {
		v *= (mb.Size.X3Max - mb.Size.X3Min) / float64(mb.Size.NX3)
	} else {
		v *= mb.Size.X3Max - mb.Size.X3Min
	}
	return v
}

// IntegrateConservative accumulates the volume-weighted sum of every
// conservative variable over the active zone into tcons.
func (mb *MeshBlock) IntegrateConservative(tcons []float64) {
	vol := mb.cellVolume()
	for n := 0; n < mb.mesh.NHydro; n++ {
		s := 0.0
		for k := mb.Ks; k <= mb.Ke; k++ {
			for j := mb.Js; j <= mb.Je; j++ {
				for i := mb.Is; i <= mb.Ie; i++ {
					s += mb.U.At(n, k, j, i)
				}
			}
		}
		tcons[n] += s * vol
	}
}

// Mesh returns the owning mesh driver.
func (mb *MeshBlock) Mesh() *Mesh { return mb.mesh }

// Next returns the following block in the rank-local list, or nil.
func (mb *MeshBlock) Next() *MeshBlock { return mb.next }
