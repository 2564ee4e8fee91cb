package mesh

import (
	"github.com/amitseta90/athena/array"
	"github.com/amitseta90/athena/transport"
)

// Ghost exchange. Each neighbor leg deposits into a pre-assigned buffer
// slot, so a receiver posts every receive before any send completes and
// accepts arrivals in any order. Tags encode the receiving block and slot;
// the stream bit separates cell-centered from face-field messages.

const (
	bvalsTagShift = 7
	bvalsFieldBit = 1 << 6
)

func bvalsTag(lid, bufid int, field bool) int {
	t := lid<<bvalsTagShift | bufid
	if field {
		t |= bvalsFieldBit
	}
	return t
}

// fiForAxis returns the fine-subdivision index the neighbor record applies
// to the given axis (0=x1), or -1 when that axis is not subdivided. The
// first direction axis with zero offset carries FI1, the second FI2.
func fiForAxis(nb *NeighborBlock, axis int) int {
	ord := 0
	for a := 0; a < 3; a++ {
		ox := [3]int{nb.OX1, nb.OX2, nb.OX3}[a]
		if ox != 0 {
			continue
		}
		if a == axis {
			if ord == 0 {
				return nb.FI1
			}
			return nb.FI2
		}
		ord++
	}
	return -1
}

// sameLevelRanges computes the cell ranges of the slab adjacent to a
// same-level neighbor; send=true selects the sender's active-zone slab,
// send=false the receiver's ghost slab.
func sameLevelRanges(mb *MeshBlock, ox1, ox2, ox3 int, send bool) (si, ei, sj, ej, sk, ek int) {
	pick := func(ox, s, e int) (int, int) {
		if send {
			switch {
			case ox > 0:
				return e - NGhost + 1, e
			case ox < 0:
				return s, s + NGhost - 1
			}
			return s, e
		}
		switch {
		case ox > 0:
			return e + 1, e + NGhost
		case ox < 0:
			return s - NGhost, s - 1
		}
		return s, e
	}
	si, ei = pick(ox1, mb.Is, mb.Ie)
	sj, ej = pick(ox2, mb.Js, mb.Je)
	sk, ek = pick(ox3, mb.Ks, mb.Ke)
	return
}

// toCoarserRanges gives the coarse-buffer ranges a fine block restricts and
// sends toward a coarser neighbor.
func toCoarserRanges(mb *MeshBlock, ox1, ox2, ox3 int) (si, ei, sj, ej, sk, ek int) {
	pick := func(ox, s, e int) (int, int) {
		switch {
		case ox > 0:
			return e - NGhost + 1, e
		case ox < 0:
			return s, s + NGhost - 1
		}
		return s, e
	}
	si, ei = pick(ox1, mb.Cis, mb.Cie)
	sj, ej = pick(ox2, mb.Cjs, mb.Cje)
	sk, ek = pick(ox3, mb.Cks, mb.Cke)
	return
}

// fromFinerRanges gives the ghost-slab ranges a coarse block fills from one
// finer neighbor, offset into the matching half along shared axes.
func fromFinerRanges(mb *MeshBlock, nb *NeighborBlock) (si, ei, sj, ej, sk, ek int) {
	pick := func(axis, ox, s, e, nx int) (int, int) {
		switch {
		case ox > 0:
			return e + 1, e + NGhost
		case ox < 0:
			return s - NGhost, s - 1
		}
		lo, hi := s, e
		if fi := fiForAxis(nb, axis); fi >= 0 && nx > 1 {
			if fi == 1 {
				lo += nx / 2
			} else {
				hi -= nx / 2
			}
		}
		return lo, hi
	}
	si, ei = pick(0, nb.OX1, mb.Is, mb.Ie, mb.Size.NX1)
	sj, ej = pick(1, nb.OX2, mb.Js, mb.Je, mb.Size.NX2)
	sk, ek = pick(2, nb.OX3, mb.Ks, mb.Ke, mb.Size.NX3)
	return
}

// toFinerRanges gives the active-zone ranges a coarse block sends toward a
// finer neighbor: the matching half plus a coarse-ghost overlap for the
// prolongation stencil.
func toFinerRanges(mb *MeshBlock, nb *NeighborBlock) (si, ei, sj, ej, sk, ek int) {
	cn := mb.CNGhost - 1
	pick := func(axis, ox, s, e, nx int) (int, int) {
		switch {
		case ox > 0:
			return e - cn, e
		case ox < 0:
			return s, s + cn
		}
		lo, hi := s, e
		if fi := fiForAxis(nb, axis); fi >= 0 && nx > 1 {
			if fi == 1 {
				lo += nx/2 - mb.CNGhost
			} else {
				hi -= nx/2 - mb.CNGhost
			}
		}
		return lo, hi
	}
	si, ei = pick(0, nb.OX1, mb.Is, mb.Ie, mb.Size.NX1)
	sj, ej = pick(1, nb.OX2, mb.Js, mb.Je, mb.Size.NX2)
	sk, ek = pick(2, nb.OX3, mb.Ks, mb.Ke, mb.Size.NX3)
	return
}

// fromCoarserRanges gives the coarse-buffer ranges a fine block fills from
// its coarser neighbor, extended away from its own half for stencil
// support. Axes with a single cell are not extended.
func fromCoarserRanges(mb *MeshBlock, nb *NeighborBlock) (si, ei, sj, ej, sk, ek int) {
	cng := mb.CNGhost
	pick := func(ox, s, e int, fx int64, nx int) (int, int) {
		switch {
		case ox > 0:
			return e + 1, e + cng
		case ox < 0:
			return s - cng, s - 1
		}
		if nx == 1 {
			return s, e
		}
		if fx&1 == 0 {
			return s, e + cng
		}
		return s - cng, e
	}
	si, ei = pick(nb.OX1, mb.Cis, mb.Cie, mb.Loc.LX1, mb.Size.NX1)
	sj, ej = pick(nb.OX2, mb.Cjs, mb.Cje, mb.Loc.LX2, mb.Size.NX2)
	sk, ek = pick(nb.OX3, mb.Cks, mb.Cke, mb.Loc.LX3, mb.Size.NX3)
	return
}

func rangeCount(si, ei, sj, ej, sk, ek int) int {
	return (ei - si + 1) * (ej - sj + 1) * (ek - sk + 1)
}

// boundaryRequests holds this block's outstanding ghost receives, indexed
// like the neighbor list.
type boundaryRequests struct {
	hydro []*transport.Request
	field []*transport.Request
}

// StartReceivingBoundaries posts every ghost receive for this block.
func (mb *MeshBlock) StartReceivingBoundaries() {
	m := mb.mesh
	br := &boundaryRequests{
		hydro: make([]*transport.Request, len(mb.Neighbors)),
		field: make([]*transport.Request, len(mb.Neighbors)),
	}
	for i := range mb.Neighbors {
		nb := &mb.Neighbors[i]
		br.hydro[i] = m.Comm.Irecv(nb.Rank, bvalsTag(mb.LID, nb.BufID, false))
		if m.Magnetic && nb.Level == mb.Loc.Level {
			br.field[i] = m.Comm.Irecv(nb.Rank, bvalsTag(mb.LID, nb.BufID, true))
		}
	}
	mb.bvals = br
}

// SendBoundaryBuffers packs and posts every outgoing ghost message.
func (mb *MeshBlock) SendBoundaryBuffers() {
	m := mb.mesh
	for i := range mb.Neighbors {
		nb := &mb.Neighbors[i]
		var buf []float64
		switch {
		case nb.Level == mb.Loc.Level:
			si, ei, sj, ej, sk, ek := sameLevelRanges(mb, nb.OX1, nb.OX2, nb.OX3, true)
			buf = make([]float64, m.NHydro*rangeCount(si, ei, sj, ej, sk, ek))
			p := 0
			array.Pack4D(mb.U, buf, 0, m.NHydro-1, si, ei, sj, ej, sk, ek, &p)
		case nb.Level < mb.Loc.Level:
			csi, cei, csj, cej, csk, cek := toCoarserRanges(mb, nb.OX1, nb.OX2, nb.OX3)
			mb.Ref.RestrictCellCentered(mb.U, mb.CU, 0, m.NHydro-1, csi, cei, csj, cej, csk, cek)
			buf = make([]float64, m.NHydro*rangeCount(csi, cei, csj, cej, csk, cek))
			p := 0
			array.Pack4D(mb.CU, buf, 0, m.NHydro-1, csi, cei, csj, cej, csk, cek, &p)
		default:
			si, ei, sj, ej, sk, ek := toFinerRanges(mb, nb)
			buf = make([]float64, m.NHydro*rangeCount(si, ei, sj, ej, sk, ek))
			p := 0
			array.Pack4D(mb.U, buf, 0, m.NHydro-1, si, ei, sj, ej, sk, ek, &p)
		}
		m.Comm.Isend(nb.Rank, bvalsTag(nb.LID, nb.TargetID, false), buf)

		if m.Magnetic && nb.Level == mb.Loc.Level {
			m.Comm.Isend(nb.Rank, bvalsTag(nb.LID, nb.TargetID, true), mb.packFieldSlab(nb))
		}
	}
}

// packFieldSlab packs the three face components of the slab adjacent to a
// same-level neighbor. Along each component's own axis the slab includes
// the bounding faces; across it, the cell ranges.
func (mb *MeshBlock) packFieldSlab(nb *NeighborBlock) []float64 {
	si, ei, sj, ej, sk, ek := sameLevelRanges(mb, nb.OX1, nb.OX2, nb.OX3, true)
	x1si, x1ei := faceAxisRange(nb.OX1, mb.Is, mb.Ie, true)
	x2sj, x2ej := faceAxisRange(nb.OX2, mb.Js, mb.Je, true)
	x3sk, x3ek := faceAxisRange(nb.OX3, mb.Ks, mb.Ke, true)

	n := rangeCount(x1si, x1ei, sj, ej, sk, ek) +
		rangeCount(si, ei, x2sj, x2ej, sk, ek) +
		rangeCount(si, ei, sj, ej, x3sk, x3ek)
	buf := make([]float64, n)
	p := 0
	array.Pack3D(mb.B.X1, buf, x1si, x1ei, sj, ej, sk, ek, &p)
	array.Pack3D(mb.B.X2, buf, si, ei, x2sj, x2ej, sk, ek, &p)
	array.Pack3D(mb.B.X3, buf, si, ei, sj, ej, x3sk, x3ek, &p)
	return buf
}

// faceAxisRange is the slab range along a face component's own axis.
func faceAxisRange(ox, s, e int, send bool) (int, int) {
	if send {
		switch {
		case ox > 0:
			return e - NGhost + 1, e + 1
		case ox < 0:
			return s, s + NGhost
		}
		return s, e + 1
	}
	switch {
	case ox > 0:
		return e + 1, e + NGhost + 1
	case ox < 0:
		return s - NGhost, s
	}
	return s, e + 1
}

// ReceiveAndSetBoundariesWithWait blocks on every posted receive and
// deposits the payloads: ghost slabs for same-level and finer neighbors,
// the coarse buffer for coarser ones. Coarse data is prolongated into the
// fine ghosts afterwards by ProlongateGhosts.
func (mb *MeshBlock) ReceiveAndSetBoundariesWithWait() {
	m := mb.mesh
	br := mb.bvals
	for i := range mb.Neighbors {
		nb := &mb.Neighbors[i]
		buf := br.hydro[i].Wait()
		p := 0
		switch {
		case nb.Level == mb.Loc.Level:
			si, ei, sj, ej, sk, ek := sameLevelRanges(mb, nb.OX1, nb.OX2, nb.OX3, false)
			array.Unpack4D(buf, mb.U, 0, m.NHydro-1, si, ei, sj, ej, sk, ek, &p)
		case nb.Level > mb.Loc.Level:
			si, ei, sj, ej, sk, ek := fromFinerRanges(mb, nb)
			array.Unpack4D(buf, mb.U, 0, m.NHydro-1, si, ei, sj, ej, sk, ek, &p)
		default:
			csi, cei, csj, cej, csk, cek := fromCoarserRanges(mb, nb)
			array.Unpack4D(buf, mb.CU, 0, m.NHydro-1, csi, cei, csj, cej, csk, cek, &p)
		}
		if br.field[i] != nil {
			fbuf := br.field[i].Wait()
			fp := 0
			si, ei, sj, ej, sk, ek := sameLevelRanges(mb, nb.OX1, nb.OX2, nb.OX3, false)
			x1si, x1ei := faceAxisRange(nb.OX1, mb.Is, mb.Ie, false)
			x2sj, x2ej := faceAxisRange(nb.OX2, mb.Js, mb.Je, false)
			x3sk, x3ek := faceAxisRange(nb.OX3, mb.Ks, mb.Ke, false)
			array.Unpack3D(fbuf, mb.B.X1, x1si, x1ei, sj, ej, sk, ek, &fp)
			array.Unpack3D(fbuf, mb.B.X2, si, ei, x2sj, x2ej, sk, ek, &fp)
			array.Unpack3D(fbuf, mb.B.X3, si, ei, sj, ej, x3sk, x3ek, &fp)
		}
	}
}

// ProlongateGhosts reconstructs the fine ghost zones adjacent to coarser
// neighbors from the coarse buffer. The block's own interior is restricted
// into the buffer first so the limited slopes see valid data on both sides
// of the jump.
func (mb *MeshBlock) ProlongateGhosts() {
	m := mb.mesh
	hasCoarser := false
	for i := range mb.Neighbors {
		if mb.Neighbors[i].Level < mb.Loc.Level {
			hasCoarser = true
			break
		}
	}
	if !hasCoarser {
		return
	}
	mb.Ref.RestrictCellCentered(mb.U, mb.CU, 0, m.NHydro-1,
		mb.Cis, mb.Cie, mb.Cjs, mb.Cje, mb.Cks, mb.Cke)

	seen := map[[3]int]bool{}
	for i := range mb.Neighbors {
		nb := &mb.Neighbors[i]
		if nb.Level >= mb.Loc.Level {
			continue
		}
		dir := [3]int{nb.OX1, nb.OX2, nb.OX3}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		pick := func(ox, s, e int) (int, int) {
			switch {
			case ox > 0:
				return e + 1, e + 1
			case ox < 0:
				return s - 1, s - 1
			}
			return s, e
		}
		csi, cei := pick(nb.OX1, mb.Cis, mb.Cie)
		csj, cej := pick(nb.OX2, mb.Cjs, mb.Cje)
		csk, cek := pick(nb.OX3, mb.Cks, mb.Cke)
		mb.Ref.ProlongateCellCentered(mb.CU, mb.U, 0, m.NHydro-1, csi, cei, csj, cej, csk, cek)
	}
}

// ClearBoundary drops the request bookkeeping after a completed round.
func (mb *MeshBlock) ClearBoundary() {
	mb.bvals = nil
}
