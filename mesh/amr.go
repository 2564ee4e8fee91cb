package mesh

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/amitseta90/athena/transport"
	"github.com/amitseta90/athena/tree"
)

// The AMR cycle. Phase A mutates the replicated tree identically on every
// rank from the gathered flags; phase B propagates costs; phase C
// rebalances; phase D migrates block data across levels and ranks; phase E
// re-resolves neighbors and re-initializes. Any transport failure inside
// phase D leaves the new mesh half-built, so errors here are fatal to the
// step and are never retried.

const amrTagBit = 1 << 30

func amrTag(lid, ox1, ox2, ox3 int) int {
	return amrTagBit | lid<<3 | ox1<<2 | ox2<<1 | ox3
}

// AdaptiveMeshRefinement applies the refinement flags collected since the
// last cycle: it rebuilds the tree, rebalances, migrates data, and
// re-initializes the mesh. A no-op when nothing is flagged.
func (m *Mesh) AdaptiveMeshRefinement() error {
	rank := m.Comm.Rank()
	nlbl := m.tree.NLeaf()

	// refresh the replicated cost list from the locally owned blocks
	localCost := make([]float64, m.nblist[rank])
	m.forEachBlock(func(mb *MeshBlock) { localCost[mb.LID] = mb.Cost })
	for r, v := range m.Comm.Exchange(localCost) {
		copy(m.costlist[m.nslist[r]:], v.([]float64))
	}

	// Phase A: gather the flagged locations so every rank derives the
	// same tree mutation.
	var lrefLocal, lderefLocal []tree.LogicalLocation
	m.forEachBlock(func(mb *MeshBlock) {
		switch m.refineFlags[mb.GID] {
		case 1:
			lrefLocal = append(lrefLocal, mb.Loc)
		case -1:
			lderefLocal = append(lderefLocal, mb.Loc)
		}
	})
	m.refineFlags = nil

	var lref, lderef []tree.LogicalLocation
	for _, v := range m.Comm.Exchange(lrefLocal) {
		if v != nil {
			lref = append(lref, v.([]tree.LogicalLocation)...)
		}
	}
	for _, v := range m.Comm.Exchange(lderefLocal) {
		if v != nil {
			lderef = append(lderef, v.([]tree.LogicalLocation)...)
		}
	}
	if len(lref) == 0 && len(lderef) == 0 {
		return nil
	}

	// A parent is derefined only when all of its children are flagged;
	// flagged siblings are adjacent in the gathered list because sibling
	// ids are consecutive. Deepest parents are processed first so earlier
	// collapses cannot invalidate later ones.
	var clderef []tree.LogicalLocation
	if len(lderef) >= nlbl {
		lj, lk := int64(0), int64(0)
		if m.dim >= 2 {
			lj = 1
		}
		if m.dim == 3 {
			lk = 1
		}
		for n := 0; n+nlbl <= len(lderef); n++ {
			if lderef[n].LX1&1 != 0 || lderef[n].LX2&1 != 0 || lderef[n].LX3&1 != 0 {
				continue
			}
			r, rr := n, 0
			for k := int64(0); k <= lk; k++ {
				for j := int64(0); j <= lj; j++ {
					for i := int64(0); i <= 1; i++ {
						if lderef[n].LX1+i == lderef[r].LX1 &&
							lderef[n].LX2+j == lderef[r].LX2 &&
							lderef[n].LX3+k == lderef[r].LX3 &&
							lderef[n].Level == lderef[r].Level {
							rr++
						}
						r++
					}
				}
			}
			if rr == nlbl {
				clderef = append(clderef, tree.LogicalLocation{
					Level: lderef[n].Level - 1,
					LX1:   lderef[n].LX1 >> 1,
					LX2:   lderef[n].LX2 >> 1,
					LX3:   lderef[n].LX3 >> 1,
				})
			}
		}
		sort.Slice(clderef, func(a, b int) bool { return tree.Greater(clderef[a], clderef[b]) })
	}

	nnew, ndel := 0, 0
	for _, loc := range lref {
		n := m.tree.FindLeaf(loc)
		if err := m.tree.Refine(n, &nnew); err != nil {
			return fmt.Errorf("mesh: refinement failed: %w", err)
		}
	}
	for _, loc := range clderef {
		n := m.tree.FindLeaf(loc)
		if n != nil && !n.IsLeaf() {
			m.tree.Derefine(n, &ndel)
		}
	}
	ntot := m.NBTotal + nnew - ndel
	if nnew == 0 && ndel == 0 {
		return nil
	}
	m.log.Debug("amr tree update",
		zap.Int("rank", rank), zap.Int("nnew", nnew), zap.Int("ndel", ndel), zap.Int("ntot", ntot))

	newloc := make([]tree.LogicalLocation, ntot)
	newtoold := make([]int, ntot)
	m.tree.EnumerateLeaves(newloc, newtoold)

	// map each old id to its new id; the last entries fix up a trailing
	// derefined group
	oldtonew := make([]int, m.NBTotal)
	k := 1
	for n := 1; n < ntot; n++ {
		switch newtoold[n] {
		case newtoold[n-1] + 1: // normal
			oldtonew[k] = n
			k++
		case newtoold[n-1] + nlbl: // derefined group before this block
			for j := 0; j < nlbl-1; j++ {
				oldtonew[k] = n - 1
				k++
			}
			oldtonew[k] = n
			k++
		}
	}
	for ; k < m.NBTotal; k++ {
		oldtonew[k] = ntot - 1
	}

	// Phase B: cost propagation
	newcost := make([]float64, ntot)
	for n := 0; n < ntot; n++ {
		pg := newtoold[n]
		if newloc[n].Level >= m.loclist[pg].Level { // same or refined
			newcost[n] = m.costlist[pg]
		} else {
			acost := 0.0
			for l := 0; l < nlbl; l++ {
				acost += m.costlist[pg+l]
			}
			newcost[n] = acost / float64(nlbl)
		}
	}

	// Phase C: new balance
	onbs := m.nslist[rank]
	onbe := onbs + m.nblist[rank] - 1
	oldloc := m.loclist
	oldrank := m.ranklist

	m.NBTotal = ntot
	m.costlist = newcost
	if err := m.loadBalance(); err != nil {
		return err
	}
	newrank := m.ranklist
	nbs := m.nslist[rank]
	nbe := nbs + m.nblist[rank] - 1

	f2, f3 := 0, 0
	if m.MeshSize.NX2 > 1 {
		f2 = 1
	}
	if m.MeshSize.NX3 > 1 {
		f3 = 1
	}

	// Phase D: post every receive before any send
	type pendingRecv struct {
		req   *transport.Request
		newid int
		child int // contributing child index for f2c, else -1
	}
	var recvs []pendingRecv
	for n := nbs; n <= nbe; n++ {
		on := newtoold[n]
		if oldloc[on].Level > newloc[n].Level { // f2c
			for l := 0; l < nlbl; l++ {
				if oldrank[on+l] == rank {
					continue
				}
				lloc := oldloc[on+l]
				ox1, ox2, ox3 := int(lloc.LX1&1), int(lloc.LX2&1), int(lloc.LX3&1)
				req := m.Comm.Irecv(oldrank[on+l], amrTag(n-nbs, ox1, ox2, ox3))
				recvs = append(recvs, pendingRecv{req, n, l})
			}
		} else { // same or c2f
			if oldrank[on] == rank {
				continue
			}
			req := m.Comm.Irecv(oldrank[on], amrTag(n-nbs, 0, 0, 0))
			recvs = append(recvs, pendingRecv{req, n, -1})
		}
	}

	// pack and send everything leaving this rank
	for n := onbs; n <= onbe; n++ {
		nn := oldtonew[n]
		oloc := oldloc[n]
		nloc := newloc[nn]
		pb := m.FindMeshBlock(n)
		switch {
		case nloc.Level == oloc.Level: // same
			if newrank[nn] == rank {
				continue
			}
			m.Comm.Isend(newrank[nn], amrTag(nn-m.nslist[newrank[nn]], 0, 0, 0), m.packSameLevel(pb))
		case nloc.Level > oloc.Level: // c2f
			for l := 0; l < nlbl; l++ {
				if newrank[nn+l] == rank {
					continue
				}
				lloc := newloc[nn+l]
				m.Comm.Isend(newrank[nn+l], amrTag(nn+l-m.nslist[newrank[nn+l]], 0, 0, 0),
					m.packCoarseToFine(pb, lloc, f2, f3))
			}
		default: // f2c
			if newrank[nn] == rank {
				continue
			}
			ox1, ox2, ox3 := int(oloc.LX1&1), int(oloc.LX2&1), int(oloc.LX3&1)
			m.Comm.Isend(newrank[nn], amrTag(nn-m.nslist[newrank[nn]], ox1, ox2, ox3),
				m.packFineToCoarse(pb, f2, f3))
		}
	}

	// construct the new block list, moving or rebuilding local data
	var newFirst, newLast *MeshBlock
	link := func(mb *MeshBlock) {
		if newFirst == nil {
			newFirst = mb
			newLast = mb
			return
		}
		newLast.next = mb
		mb.prev = newLast
		newLast = mb
	}

	for n := nbs; n <= nbe; n++ {
		on := newtoold[n]
		if oldrank[on] == rank && oldloc[on].Level == newloc[n].Level {
			// same rank, same level: splice the existing block across
			pob := m.FindMeshBlock(on)
			m.detachBlock(pob)
			pob.GID = n
			pob.LID = n - nbs
			pob.Cost = newcost[n]
			link(pob)
			continue
		}
		// different level or different rank: build a fresh block
		size, bcs := m.setBlockSizeAndBoundaries(newloc[n])
		pmb := NewMeshBlock(n, n-nbs, newloc[n], size, bcs, m)
		pmb.Cost = newcost[n]
		link(pmb)

		if oldloc[on].Level > newloc[n].Level { // f2c: local children restrict in place
			for l := 0; l < nlbl; l++ {
				if oldrank[on+l] != rank {
					continue
				}
				pob := m.FindMeshBlock(on + l)
				m.restrictIntoOctant(pob, pmb, oldloc[on+l], f2, f3)
			}
		} else if oldloc[on].Level < newloc[n].Level && oldrank[on] == rank { // c2f local
			pob := m.FindMeshBlock(on)
			m.prolongFromCoarse(pob, pmb, f2, f3)
		}
	}

	// old blocks that did not move across are dropped here
	m.first, m.last = newFirst, newLast

	// drain the receives
	for _, pr := range recvs {
		buf := pr.req.Wait()
		pb := m.FindMeshBlock(pr.newid)
		on := newtoold[pr.newid]
		oloc := oldloc[on]
		nloc := newloc[pr.newid]
		switch {
		case oloc.Level == nloc.Level:
			m.unpackSameLevel(pb, buf, f2, f3)
		case oloc.Level > nloc.Level: // f2c
			m.unpackIntoOctant(pb, buf, oldloc[on+pr.child], f2, f3)
		default: // c2f
			m.unpackAndProlong(pb, buf, f2, f3)
		}
	}

	// Phase E: install the new lists and re-initialize
	m.loclist = newloc
	m.CurrentLevel = m.RootLevel
	for _, loc := range newloc {
		if loc.Level > m.CurrentLevel {
			m.CurrentLevel = loc.Level
		}
	}
	m.forEachBlock(func(mb *MeshBlock) {
		mb.SearchAndSetNeighbors(m.tree, m.ranklist, m.nslist)
	})
	if err := m.VerifyReplication(); err != nil {
		return err
	}
	return m.Initialize(InitPostAMR)
}
