package mesh

import (
	"github.com/amitseta90/athena/array"
	"github.com/amitseta90/athena/tree"
)

// Payload widths are implied by the symmetric range computations on both
// ends of every leg: bssame covers the active zone (plus face arrays),
// bsf2c the restricted half-resolution zone, and bsc2f additionally a
// one-cell coarse halo required by the prolongation stencil.

// packSameLevel packs the full active zone of a block: the conservative
// variables and, when magnetic, the three face arrays with their own-axis
// extent.
func (m *Mesh) packSameLevel(pb *MeshBlock) []float64 {
	f2, f3 := 0, 0
	if pb.Size.NX2 > 1 {
		f2 = 1
	}
	if pb.Size.NX3 > 1 {
		f3 = 1
	}
	n := m.NHydro * rangeCount(pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks, pb.Ke)
	if m.Magnetic {
		n += rangeCount(pb.Is, pb.Ie+1, pb.Js, pb.Je, pb.Ks, pb.Ke)
		n += rangeCount(pb.Is, pb.Ie, pb.Js, pb.Je+f2, pb.Ks, pb.Ke)
		n += rangeCount(pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks, pb.Ke+f3)
	}
	buf := make([]float64, n)
	p := 0
	array.Pack4D(pb.U, buf, 0, m.NHydro-1, pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks, pb.Ke, &p)
	if m.Magnetic {
		array.Pack3D(pb.B.X1, buf, pb.Is, pb.Ie+1, pb.Js, pb.Je, pb.Ks, pb.Ke, &p)
		array.Pack3D(pb.B.X2, buf, pb.Is, pb.Ie, pb.Js, pb.Je+f2, pb.Ks, pb.Ke, &p)
		array.Pack3D(pb.B.X3, buf, pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks, pb.Ke+f3, &p)
	}
	return buf
}

func (m *Mesh) unpackSameLevel(pb *MeshBlock, buf []float64, f2, f3 int) {
	p := 0
	array.Unpack4D(buf, pb.U, 0, m.NHydro-1, pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks, pb.Ke, &p)
	if m.Magnetic {
		array.Unpack3D(buf, pb.B.X1, pb.Is, pb.Ie+1, pb.Js, pb.Je, pb.Ks, pb.Ke, &p)
		array.Unpack3D(buf, pb.B.X2, pb.Is, pb.Ie, pb.Js, pb.Je+f2, pb.Ks, pb.Ke, &p)
		array.Unpack3D(buf, pb.B.X3, pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks, pb.Ke+f3, &p)
		duplicateDegenerateFaces(pb, pb.Is, pb.Ie, pb.Js, pb.Je, pb.Ks)
	}
}

// duplicateDegenerateFaces copies the single face plane of a collapsed
// dimension to its upper plane so both bounding faces carry the field.
func duplicateDegenerateFaces(pb *MeshBlock, is, ie, js, je, ks int) {
	if pb.Size.NX2 == 1 {
		for i := is; i <= ie; i++ {
			pb.B.X2.Set(ks, js+1, i, pb.B.X2.At(ks, js, i))
		}
	}
	if pb.Size.NX3 == 1 {
		for j := js; j <= je; j++ {
			for i := is; i <= ie; i++ {
				pb.B.X3.Set(ks+1, j, i, pb.B.X3.At(ks, j, i))
			}
		}
	}
}

// c2fRanges computes the fine-index region of pb (the coarse parent) that
// covers the child at lloc, with the one-cell halo for the prolongation
// stencil.
func c2fRanges(pb *MeshBlock, lloc tree.LogicalLocation, f2, f3 int) (is, ie, js, je, ks, ke int) {
	if lloc.LX1&1 == 0 {
		is, ie = pb.Is-1, pb.Is+pb.Size.NX1/2
	} else {
		is, ie = pb.Is+pb.Size.NX1/2-1, pb.Ie+1
	}
	if lloc.LX2&1 == 0 {
		js, je = pb.Js-f2, pb.Js+pb.Size.NX2/2
	} else {
		js, je = pb.Js+pb.Size.NX2/2-f2, pb.Je+f2
	}
	if lloc.LX3&1 == 0 {
		ks, ke = pb.Ks-f3, pb.Ks+pb.Size.NX3/2
	} else {
		ks, ke = pb.Ks+pb.Size.NX3/2-f3, pb.Ke+f3
	}
	return
}

// packCoarseToFine packs, from the coarse parent, the half covering one new
// fine child plus the halo.
func (m *Mesh) packCoarseToFine(pb *MeshBlock, lloc tree.LogicalLocation, f2, f3 int) []float64 {
	is, ie, js, je, ks, ke := c2fRanges(pb, lloc, f2, f3)
	n := m.NHydro * rangeCount(is, ie, js, je, ks, ke)
	if m.Magnetic {
		n += rangeCount(is, ie+1, js, je, ks, ke)
		n += rangeCount(is, ie, js, je+f2, ks, ke)
		n += rangeCount(is, ie, js, je, ks, ke+f3)
	}
	buf := make([]float64, n)
	p := 0
	array.Pack4D(pb.U, buf, 0, m.NHydro-1, is, ie, js, je, ks, ke, &p)
	if m.Magnetic {
		array.Pack3D(pb.B.X1, buf, is, ie+1, js, je, ks, ke, &p)
		array.Pack3D(pb.B.X2, buf, is, ie, js, je+f2, ks, ke, &p)
		array.Pack3D(pb.B.X3, buf, is, ie, js, je, ks, ke+f3, &p)
	}
	return buf
}

// unpackAndProlong receives a coarse-to-fine payload into the coarse buffer
// of the new fine block and prolongates it into the fine storage.
func (m *Mesh) unpackAndProlong(pb *MeshBlock, buf []float64, f2, f3 int) {
	is, ie := pb.Cis-1, pb.Cie+1
	js, je := pb.Cjs-f2, pb.Cje+f2
	ks, ke := pb.Cks-f3, pb.Cke+f3
	p := 0
	array.Unpack4D(buf, pb.CU, 0, m.NHydro-1, is, ie, js, je, ks, ke, &p)
	pb.Ref.ProlongateCellCentered(pb.CU, pb.U, 0, m.NHydro-1, is, ie, js, je, ks, ke)
	if m.Magnetic {
		array.Unpack3D(buf, pb.CB.X1, is, ie+1, js, je, ks, ke, &p)
		array.Unpack3D(buf, pb.CB.X2, is, ie, js, je+f2, ks, ke, &p)
		array.Unpack3D(buf, pb.CB.X3, is, ie, js, je, ks, ke+f3, &p)
		pb.Ref.ProlongateSharedFieldX1(pb.CB.X1, pb.B.X1, is, ie+1, js, je, ks, ke)
		pb.Ref.ProlongateSharedFieldX2(pb.CB.X2, pb.B.X2, is, ie, js, je+f2, ks, ke)
		pb.Ref.ProlongateSharedFieldX3(pb.CB.X3, pb.B.X3, is, ie, js, je, ks, ke+f3)
		pb.Ref.ProlongateInternalField(pb.B, is, ie, js, je, ks, ke)
		duplicateDegenerateFaces(pb, pb.Is-2, pb.Ie+2, pb.Js, pb.Je, pb.Ks)
	}
}

// packFineToCoarse restricts the whole child block to half resolution and
// packs it; the receiver deposits it into one octant.
func (m *Mesh) packFineToCoarse(pb *MeshBlock, f2, f3 int) []float64 {
	pb.Ref.RestrictCellCentered(pb.U, pb.CU, 0, m.NHydro-1,
		pb.Cis, pb.Cie, pb.Cjs, pb.Cje, pb.Cks, pb.Cke)
	n := m.NHydro * rangeCount(pb.Cis, pb.Cie, pb.Cjs, pb.Cje, pb.Cks, pb.Cke)
	if m.Magnetic {
		n += rangeCount(pb.Cis, pb.Cie+1, pb.Cjs, pb.Cje, pb.Cks, pb.Cke)
		n += rangeCount(pb.Cis, pb.Cie, pb.Cjs, pb.Cje+f2, pb.Cks, pb.Cke)
		n += rangeCount(pb.Cis, pb.Cie, pb.Cjs, pb.Cje, pb.Cks, pb.Cke+f3)
	}
	buf := make([]float64, n)
	p := 0
	array.Pack4D(pb.CU, buf, 0, m.NHydro-1, pb.Cis, pb.Cie, pb.Cjs, pb.Cje, pb.Cks, pb.Cke, &p)
	if m.Magnetic {
		pb.Ref.RestrictFieldX1(pb.B.X1, pb.CB.X1, pb.Cis, pb.Cie+1, pb.Cjs, pb.Cje, pb.Cks, pb.Cke)
		pb.Ref.RestrictFieldX2(pb.B.X2, pb.CB.X2, pb.Cis, pb.Cie, pb.Cjs, pb.Cje+f2, pb.Cks, pb.Cke)
		pb.Ref.RestrictFieldX3(pb.B.X3, pb.CB.X3, pb.Cis, pb.Cie, pb.Cjs, pb.Cje, pb.Cks, pb.Cke+f3)
		array.Pack3D(pb.CB.X1, buf, pb.Cis, pb.Cie+1, pb.Cjs, pb.Cje, pb.Cks, pb.Cke, &p)
		array.Pack3D(pb.CB.X2, buf, pb.Cis, pb.Cie, pb.Cjs, pb.Cje+f2, pb.Cks, pb.Cke, &p)
		array.Pack3D(pb.CB.X3, buf, pb.Cis, pb.Cie, pb.Cjs, pb.Cje, pb.Cks, pb.Cke+f3, &p)
	}
	return buf
}

// octantRanges gives the region of the new coarse block covered by the old
// child at lloc.
func octantRanges(pb *MeshBlock, lloc tree.LogicalLocation, f2, f3 int) (is, ie, js, je, ks, ke int) {
	if lloc.LX1&1 == 0 {
		is, ie = pb.Is, pb.Is+pb.Size.NX1/2-1
	} else {
		is, ie = pb.Is+pb.Size.NX1/2, pb.Ie
	}
	if lloc.LX2&1 == 0 {
		js, je = pb.Js, pb.Js+pb.Size.NX2/2-f2
	} else {
		js, je = pb.Js+pb.Size.NX2/2, pb.Je
	}
	if lloc.LX3&1 == 0 {
		ks, ke = pb.Ks, pb.Ks+pb.Size.NX3/2-f3
	} else {
		ks, ke = pb.Ks+pb.Size.NX3/2, pb.Ke
	}
	return
}

// unpackIntoOctant deposits one restricted child payload into its octant of
// the new coarse block.
func (m *Mesh) unpackIntoOctant(pb *MeshBlock, buf []float64, lloc tree.LogicalLocation, f2, f3 int) {
	is, ie, js, je, ks, ke := octantRanges(pb, lloc, f2, f3)
	p := 0
	array.Unpack4D(buf, pb.U, 0, m.NHydro-1, is, ie, js, je, ks, ke, &p)
	if m.Magnetic {
		array.Unpack3D(buf, pb.B.X1, is, ie+1, js, je, ks, ke, &p)
		array.Unpack3D(buf, pb.B.X2, is, ie, js, je+f2, ks, ke, &p)
		array.Unpack3D(buf, pb.B.X3, is, ie, js, je, ks, ke+f3, &p)
		duplicateDegenerateFaces(pb, is, ie, js, je, ks)
	}
}

// restrictIntoOctant handles the fine-to-coarse path when the child lives
// on the same rank: restrict it and copy into the octant directly.
func (m *Mesh) restrictIntoOctant(pob, pmb *MeshBlock, lloc tree.LogicalLocation, f2, f3 int) {
	is, ie, js, je, ks, ke := octantRanges(pmb, lloc, f2, f3)
	pob.Ref.RestrictCellCentered(pob.U, pob.CU, 0, m.NHydro-1,
		pob.Cis, pob.Cie, pob.Cjs, pob.Cje, pob.Cks, pob.Cke)
	for n := 0; n < m.NHydro; n++ {
		for k, fk := ks, pob.Cks; k <= ke; k, fk = k+1, fk+1 {
			for j, fj := js, pob.Cjs; j <= je; j, fj = j+1, fj+1 {
				for i, fi := is, pob.Cis; i <= ie; i, fi = i+1, fi+1 {
					pmb.U.Set(n, k, j, i, pob.CU.At(n, fk, fj, fi))
				}
			}
		}
	}
	if m.Magnetic {
		pob.Ref.RestrictFieldX1(pob.B.X1, pob.CB.X1,
			pob.Cis, pob.Cie+1, pob.Cjs, pob.Cje, pob.Cks, pob.Cke)
		pob.Ref.RestrictFieldX2(pob.B.X2, pob.CB.X2,
			pob.Cis, pob.Cie, pob.Cjs, pob.Cje+f2, pob.Cks, pob.Cke)
		pob.Ref.RestrictFieldX3(pob.B.X3, pob.CB.X3,
			pob.Cis, pob.Cie, pob.Cjs, pob.Cje, pob.Cks, pob.Cke+f3)
		for k, fk := ks, pob.Cks; k <= ke; k, fk = k+1, fk+1 {
			for j, fj := js, pob.Cjs; j <= je; j, fj = j+1, fj+1 {
				for i, fi := is, pob.Cis; i <= ie+1; i, fi = i+1, fi+1 {
					pmb.B.X1.Set(k, j, i, pob.CB.X1.At(fk, fj, fi))
				}
			}
		}
		for k, fk := ks, pob.Cks; k <= ke; k, fk = k+1, fk+1 {
			for j, fj := js, pob.Cjs; j <= je+f2; j, fj = j+1, fj+1 {
				for i, fi := is, pob.Cis; i <= ie; i, fi = i+1, fi+1 {
					pmb.B.X2.Set(k, j, i, pob.CB.X2.At(fk, fj, fi))
				}
			}
		}
		for k, fk := ks, pob.Cks; k <= ke+f3; k, fk = k+1, fk+1 {
			for j, fj := js, pob.Cjs; j <= je; j, fj = j+1, fj+1 {
				for i, fi := is, pob.Cis; i <= ie; i, fi = i+1, fi+1 {
					pmb.B.X3.Set(k, j, i, pob.CB.X3.At(fk, fj, fi))
				}
			}
		}
		duplicateDegenerateFaces(pmb, is, ie, js, je, ks)
	}
}

// prolongFromCoarse handles the coarse-to-fine path when the parent lives
// on the same rank: the parent's covering region, including the halo, is
// copied into the child's coarse buffer and prolongated.
func (m *Mesh) prolongFromCoarse(pob, pmb *MeshBlock, f2, f3 int) {
	is, ie := pob.Cis-1, pob.Cie+1
	js, je := pob.Cjs-f2, pob.Cje+f2
	ks, ke := pob.Cks-f3, pob.Cke+f3
	ci0 := int(pmb.Loc.LX1&1)*pob.Size.NX1/2 - pob.Cis + pob.Is
	cj0 := int(pmb.Loc.LX2&1)*pob.Size.NX2/2 - pob.Cjs + pob.Js
	ck0 := int(pmb.Loc.LX3&1)*pob.Size.NX3/2 - pob.Cks + pob.Ks
	for n := 0; n < m.NHydro; n++ {
		for k := ks; k <= ke; k++ {
			for j := js; j <= je; j++ {
				for i := is; i <= ie; i++ {
					pmb.CU.Set(n, k, j, i, pob.U.At(n, k+ck0, j+cj0, i+ci0))
				}
			}
		}
	}
	pmb.Ref.ProlongateCellCentered(pmb.CU, pmb.U, 0, m.NHydro-1, is, ie, js, je, ks, ke)
	if m.Magnetic {
		for k := ks; k <= ke; k++ {
			for j := js; j <= je; j++ {
				for i := is; i <= ie+1; i++ {
					pmb.CB.X1.Set(k, j, i, pob.B.X1.At(k+ck0, j+cj0, i+ci0))
				}
			}
		}
		for k := ks; k <= ke; k++ {
			for j := js; j <= je+f2; j++ {
				for i := is; i <= ie; i++ {
					pmb.CB.X2.Set(k, j, i, pob.B.X2.At(k+ck0, j+cj0, i+ci0))
				}
			}
		}
		for k := ks; k <= ke+f3; k++ {
			for j := js; j <= je; j++ {
				for i := is; i <= ie; i++ {
					pmb.CB.X3.Set(k, j, i, pob.B.X3.At(k+ck0, j+cj0, i+ci0))
				}
			}
		}
		pmb.Ref.ProlongateSharedFieldX1(pmb.CB.X1, pmb.B.X1, is, ie+1, js, je, ks, ke)
		pmb.Ref.ProlongateSharedFieldX2(pmb.CB.X2, pmb.B.X2, is, ie, js, je+f2, ks, ke)
		pmb.Ref.ProlongateSharedFieldX3(pmb.CB.X3, pmb.B.X3, is, ie, js, je, ks, ke+f3)
		pmb.Ref.ProlongateInternalField(pmb.B, is, ie, js, je, ks, ke)
		duplicateDegenerateFaces(pmb, pmb.Is-2, pmb.Ie+2, pmb.Js, pmb.Je, pmb.Ks)
	}
}
