package mesh

import (
	"github.com/amitseta90/athena/tree"
)

// NeighborKind classifies the contact between two blocks.
type NeighborKind int

const (
	NeighborFace NeighborKind = iota
	NeighborEdge
	NeighborCorner
)

// NeighborBlock is one entry of a block's neighbor list.
type NeighborBlock struct {
	Rank, Level, GID, LID int
	OX1, OX2, OX3         int
	Kind                  NeighborKind

	// BufID is the local slot this neighbor's data arrives in; TargetID is
	// the slot the neighbor files us under, i.e. the id to address
	// outgoing messages with.
	BufID, TargetID int

	// FI1, FI2 select the sub-face when the neighbor is finer.
	FI1, FI2 int
}

func (nb *NeighborBlock) set(rank, level, gid, lid, ox1, ox2, ox3 int, kind NeighborKind, bufid, targetid, fi1, fi2 int) {
	nb.Rank, nb.Level, nb.GID, nb.LID = rank, level, gid, lid
	nb.OX1, nb.OX2, nb.OX3 = ox1, ox2, ox3
	nb.Kind = kind
	nb.BufID, nb.TargetID = bufid, targetid
	nb.FI1, nb.FI2 = fi1, fi2
}

// SearchAndSetNeighbors rebuilds the block's neighbor list from the tree:
// six faces, then edges, then corners. Buffer ids are advanced even for
// absent neighbors so slot assignment is purely positional. An edge or
// corner against a coarser neighbor is recorded only when the block's own
// fine indices point along the direction, which books each exchange
// exactly once; same-level and finer neighbors are always recorded.
func (mb *MeshBlock) SearchAndSetNeighbors(t *tree.Tree, ranklist, nslist []int) {
	m := mb.mesh
	cat := m.catalog

	myfx1 := int(mb.Loc.LX1 & 1)
	myfx2 := int(mb.Loc.LX2 & 1)
	myfx3 := int(mb.Loc.LX3 & 1)
	myox1 := myfx1*2 - 1
	myox2, myox3 := 0, 0
	if mb.Size.NX2 > 1 {
		myox2 = myfx2*2 - 1
	}
	if mb.Size.NX3 > 1 {
		myox3 = myfx3*2 - 1
	}

	nf1, nf2 := 1, 1
	if m.Multilevel {
		if mb.Size.NX2 > 1 {
			nf1 = 2
		}
		if mb.Size.NX3 > 1 {
			nf2 = 2
		}
	}

	mb.Neighbors = make([]NeighborBlock, 0, cat.MaxNeighbor())
	for k := 0; k < 3; k++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				mb.NBLevel[k][j][i] = -1
			}
		}
	}
	mb.NBLevel[1][1][1] = mb.Loc.Level

	bufid := 0
	push := func() *NeighborBlock {
		mb.Neighbors = append(mb.Neighbors, NeighborBlock{})
		return &mb.Neighbors[len(mb.Neighbors)-1]
	}

	// x1 faces
	for n := -1; n <= 1; n += 2 {
		nt := t.FindNeighbor(mb.Loc, int64(n), 0, 0)
		if nt == nil {
			bufid += nf1 * nf2
			continue
		}
		if !nt.IsLeaf() { // finer
			fface := 1 - (n+1)/2
			mb.NBLevel[1][1][n+1] = nt.Loc().Level + 1
			for f2 := 0; f2 < nf2; f2++ {
				for f1 := 0; f1 < nf1; f1++ {
					nf := nt.Leaf(fface, f1, f2)
					fid := nf.GID()
					tbid := cat.FindBufferID(-n, 0, 0, 0, 0)
					push().set(ranklist[fid], nf.Loc().Level, fid,
						fid-nslist[ranklist[fid]], n, 0, 0, NeighborFace, bufid, tbid, f1, f2)
					bufid++
				}
			}
		} else {
			nlevel := nt.Loc().Level
			nid := nt.GID()
			mb.NBLevel[1][1][n+1] = nlevel
			var tbid int
			if nlevel == mb.Loc.Level {
				tbid = cat.FindBufferID(-n, 0, 0, 0, 0)
			} else {
				tbid = cat.FindBufferID(-n, 0, 0, myfx2, myfx3)
			}
			push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
				n, 0, 0, NeighborFace, bufid, tbid, 0, 0)
			bufid += nf1 * nf2
		}
	}
	if mb.Size.NX2 == 1 {
		return
	}

	// x2 faces
	for n := -1; n <= 1; n += 2 {
		nt := t.FindNeighbor(mb.Loc, 0, int64(n), 0)
		if nt == nil {
			bufid += nf1 * nf2
			continue
		}
		if !nt.IsLeaf() {
			fface := 1 - (n+1)/2
			mb.NBLevel[1][n+1][1] = nt.Loc().Level + 1
			for f2 := 0; f2 < nf2; f2++ {
				for f1 := 0; f1 < nf1; f1++ {
					nf := nt.Leaf(f1, fface, f2)
					fid := nf.GID()
					tbid := cat.FindBufferID(0, -n, 0, 0, 0)
					push().set(ranklist[fid], nf.Loc().Level, fid,
						fid-nslist[ranklist[fid]], 0, n, 0, NeighborFace, bufid, tbid, f1, f2)
					bufid++
				}
			}
		} else {
			nlevel := nt.Loc().Level
			nid := nt.GID()
			mb.NBLevel[1][n+1][1] = nlevel
			var tbid int
			if nlevel == mb.Loc.Level {
				tbid = cat.FindBufferID(0, -n, 0, 0, 0)
			} else {
				tbid = cat.FindBufferID(0, -n, 0, myfx1, myfx3)
			}
			push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
				0, n, 0, NeighborFace, bufid, tbid, 0, 0)
			bufid += nf1 * nf2
		}
	}

	if mb.Size.NX3 > 1 {
		// x3 faces
		for n := -1; n <= 1; n += 2 {
			nt := t.FindNeighbor(mb.Loc, 0, 0, int64(n))
			if nt == nil {
				bufid += nf1 * nf2
				continue
			}
			if !nt.IsLeaf() {
				fface := 1 - (n+1)/2
				mb.NBLevel[n+1][1][1] = nt.Loc().Level + 1
				for f2 := 0; f2 < nf2; f2++ {
					for f1 := 0; f1 < nf1; f1++ {
						nf := nt.Leaf(f1, f2, fface)
						fid := nf.GID()
						tbid := cat.FindBufferID(0, 0, -n, 0, 0)
						push().set(ranklist[fid], nf.Loc().Level, fid,
							fid-nslist[ranklist[fid]], 0, 0, n, NeighborFace, bufid, tbid, f1, f2)
						bufid++
					}
				}
			} else {
				nlevel := nt.Loc().Level
				nid := nt.GID()
				mb.NBLevel[n+1][1][1] = nlevel
				var tbid int
				if nlevel == mb.Loc.Level {
					tbid = cat.FindBufferID(0, 0, -n, 0, 0)
				} else {
					tbid = cat.FindBufferID(0, 0, -n, myfx1, myfx2)
				}
				push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
					0, 0, n, NeighborFace, bufid, tbid, 0, 0)
				bufid += nf1 * nf2
			}
		}
	}
	if m.FaceOnly {
		return
	}

	// x1x2 edges
	for mo := -1; mo <= 1; mo += 2 {
		for n := -1; n <= 1; n += 2 {
			nt := t.FindNeighbor(mb.Loc, int64(n), int64(mo), 0)
			if nt == nil {
				bufid += nf2
				continue
			}
			if !nt.IsLeaf() {
				ff1 := 1 - (n+1)/2
				ff2 := 1 - (mo+1)/2
				mb.NBLevel[1][mo+1][n+1] = nt.Loc().Level + 1
				for f1 := 0; f1 < nf2; f1++ {
					nf := nt.Leaf(ff1, ff2, f1)
					fid := nf.GID()
					tbid := cat.FindBufferID(-n, -mo, 0, 0, 0)
					push().set(ranklist[fid], nf.Loc().Level, fid,
						fid-nslist[ranklist[fid]], n, mo, 0, NeighborEdge, bufid, tbid, f1, 0)
					bufid++
				}
			} else {
				nlevel := nt.Loc().Level
				nid := nt.GID()
				mb.NBLevel[1][mo+1][n+1] = nlevel
				var tbid int
				if nlevel == mb.Loc.Level {
					tbid = cat.FindBufferID(-n, -mo, 0, 0, 0)
				} else {
					tbid = cat.FindBufferID(-n, -mo, 0, myfx3, 0)
				}
				if nlevel >= mb.Loc.Level || (myox1 == n && myox2 == mo) {
					push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
						n, mo, 0, NeighborEdge, bufid, tbid, 0, 0)
				}
				bufid += nf2
			}
		}
	}
	if mb.Size.NX3 == 1 {
		return
	}

	// x1x3 edges
	for mo := -1; mo <= 1; mo += 2 {
		for n := -1; n <= 1; n += 2 {
			nt := t.FindNeighbor(mb.Loc, int64(n), 0, int64(mo))
			if nt == nil {
				bufid += nf1
				continue
			}
			if !nt.IsLeaf() {
				ff1 := 1 - (n+1)/2
				ff2 := 1 - (mo+1)/2
				mb.NBLevel[mo+1][1][n+1] = nt.Loc().Level + 1
				for f1 := 0; f1 < nf1; f1++ {
					nf := nt.Leaf(ff1, f1, ff2)
					fid := nf.GID()
					tbid := cat.FindBufferID(-n, 0, -mo, 0, 0)
					push().set(ranklist[fid], nf.Loc().Level, fid,
						fid-nslist[ranklist[fid]], n, 0, mo, NeighborEdge, bufid, tbid, f1, 0)
					bufid++
				}
			} else {
				nlevel := nt.Loc().Level
				nid := nt.GID()
				mb.NBLevel[mo+1][1][n+1] = nlevel
				var tbid int
				if nlevel == mb.Loc.Level {
					tbid = cat.FindBufferID(-n, 0, -mo, 0, 0)
				} else {
					tbid = cat.FindBufferID(-n, 0, -mo, myfx2, 0)
				}
				if nlevel >= mb.Loc.Level || (myox1 == n && myox3 == mo) {
					push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
						n, 0, mo, NeighborEdge, bufid, tbid, 0, 0)
				}
				bufid += nf1
			}
		}
	}

	// x2x3 edges
	for mo := -1; mo <= 1; mo += 2 {
		for n := -1; n <= 1; n += 2 {
			nt := t.FindNeighbor(mb.Loc, 0, int64(n), int64(mo))
			if nt == nil {
				bufid += nf1
				continue
			}
			if !nt.IsLeaf() {
				ff1 := 1 - (n+1)/2
				ff2 := 1 - (mo+1)/2
				mb.NBLevel[mo+1][n+1][1] = nt.Loc().Level + 1
				for f1 := 0; f1 < nf1; f1++ {
					nf := nt.Leaf(f1, ff1, ff2)
					fid := nf.GID()
					tbid := cat.FindBufferID(0, -n, -mo, 0, 0)
					push().set(ranklist[fid], nf.Loc().Level, fid,
						fid-nslist[ranklist[fid]], 0, n, mo, NeighborEdge, bufid, tbid, f1, 0)
					bufid++
				}
			} else {
				nlevel := nt.Loc().Level
				nid := nt.GID()
				mb.NBLevel[mo+1][n+1][1] = nlevel
				var tbid int
				if nlevel == mb.Loc.Level {
					tbid = cat.FindBufferID(0, -n, -mo, 0, 0)
				} else {
					tbid = cat.FindBufferID(0, -n, -mo, myfx1, 0)
				}
				if nlevel >= mb.Loc.Level || (myox2 == n && myox3 == mo) {
					push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
						0, n, mo, NeighborEdge, bufid, tbid, 0, 0)
				}
				bufid += nf1
			}
		}
	}

	// corners
	for l := -1; l <= 1; l += 2 {
		for mo := -1; mo <= 1; mo += 2 {
			for n := -1; n <= 1; n += 2 {
				nt := t.FindNeighbor(mb.Loc, int64(n), int64(mo), int64(l))
				if nt == nil {
					bufid++
					continue
				}
				if !nt.IsLeaf() {
					ff1 := 1 - (n+1)/2
					ff2 := 1 - (mo+1)/2
					ff3 := 1 - (l+1)/2
					nt = nt.Leaf(ff1, ff2, ff3)
				}
				nlevel := nt.Loc().Level
				mb.NBLevel[l+1][mo+1][n+1] = nlevel
				if nlevel >= mb.Loc.Level || (myox1 == n && myox2 == mo && myox3 == l) {
					nid := nt.GID()
					tbid := cat.FindBufferID(-n, -mo, -l, 0, 0)
					push().set(ranklist[nid], nlevel, nid, nid-nslist[ranklist[nid]],
						n, mo, l, NeighborCorner, bufid, tbid, 0, 0)
				}
				bufid++
			}
		}
	}
}
