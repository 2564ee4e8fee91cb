package mesh

import (
	"golang.org/x/sync/errgroup"
)

// Restart flags passed to Initialize.
const (
	InitFresh   = 0 // fresh start: run the problem generator
	InitRestart = 1 // restart: field data already loaded
	InitPostAMR = 2 // after AMR: skip the generator, redo primitives and dt
)

// eachBlockParallel runs fn over the local blocks on the worker pool.
// Blocks are disjoint and the shared tables are read-only, so per-block
// work needs no locking.
func (m *Mesh) eachBlockParallel(fn func(*MeshBlock)) {
	if m.NumThreads <= 1 {
		m.forEachBlock(fn)
		return
	}
	var g errgroup.Group
	g.SetLimit(m.NumThreads)
	for mb := m.first; mb != nil; mb = mb.next {
		mb := mb
		g.Go(func() error {
			fn(mb)
			return nil
		})
	}
	_ = g.Wait() // fn never returns an error
}

// Initialize prepares the mesh for the main loop: problem generation on a
// fresh start, one round of ghost exchange with prolongation across jumps,
// the conserved-to-primitive map, physical boundaries, and the initial
// timestep. On a fresh adaptive start the whole procedure repeats until the
// refinement criterion stops changing the tree.
func (m *Mesh) Initialize(resFlag int) error {
	inb := m.NBTotal
	for {
		if resFlag == InitFresh && m.ProblemGenerator != nil {
			m.eachBlockParallel(func(mb *MeshBlock) { m.ProblemGenerator(mb) })
		}

		// one round of ghost exchange; all receives are posted first
		m.forEachBlock(func(mb *MeshBlock) { mb.StartReceivingBoundaries() })
		m.forEachBlock(func(mb *MeshBlock) { mb.SendBoundaryBuffers() })
		m.forEachBlock(func(mb *MeshBlock) {
			mb.ReceiveAndSetBoundariesWithWait()
			mb.ClearBoundary()
			if m.Multilevel {
				mb.ProlongateGhosts()
			}
		})

		m.eachBlockParallel(func(mb *MeshBlock) {
			if m.ConservedToPrim != nil {
				m.ConservedToPrim(mb)
			}
			for f := 0; f < 6; f++ {
				if m.PhysicalBoundary[f] != nil && mb.BCs[f] > 0 {
					m.PhysicalBoundary[f](mb)
				}
			}
		})

		if resFlag != InitFresh || !m.Adaptive || m.RefinementCriterion == nil {
			break
		}
		onb := m.NBTotal
		m.forEachBlock(func(mb *MeshBlock) {
			m.setRefineFlag(mb, m.RefinementCriterion(mb))
		})
		if err := m.AdaptiveMeshRefinement(); err != nil {
			return err
		}
		if m.NBTotal == onb {
			break
		}
		if m.NBTotal < onb && m.Comm.Rank() == 0 {
			m.log.Warn("the number of blocks decreased during AMR grid initialization; " +
				"possibly the refinement criteria have a problem")
		}
		if m.NBTotal > 2*inb && m.Comm.Rank() == 0 {
			m.log.Warn("the number of blocks increased more than twice during initialization; " +
				"more computing power than you expected may be required")
		}
	}

	if resFlag == InitFresh || resFlag == InitPostAMR {
		if m.BlockTimeStep != nil {
			m.eachBlockParallel(func(mb *MeshBlock) { mb.NewBlockDt = m.BlockTimeStep(mb) })
			m.NewTimeStep()
		}
	}
	return nil
}

// setRefineFlag records the criterion's verdict for one local block.
func (m *Mesh) setRefineFlag(mb *MeshBlock, flag int) {
	if m.refineFlags == nil {
		m.refineFlags = make(map[int]int)
	}
	if flag > 0 && mb.Loc.Level >= m.MaxLevel {
		flag = 0
	}
	if flag < 0 && mb.Loc.Level <= m.RootLevel {
		flag = 0
	}
	m.refineFlags[mb.GID] = flag
}

// SetRefineFlag lets the external criterion flag a block directly between
// steps: +1 refine, -1 derefine, 0 keep.
func (m *Mesh) SetRefineFlag(mb *MeshBlock, flag int) { m.setRefineFlag(mb, flag) }

// UpdateOneStep runs the external task list over the local blocks until all
// of them report completion. A block whose next task cannot run yet is
// skipped, not waited on, so one stalled exchange never blocks the rank.
func (m *Mesh) UpdateOneStep() {
	if m.Tasks == nil || m.Tasks.NTasks() == 0 {
		return
	}
	nb := m.nblist[m.Comm.Rank()]
	m.forEachBlock(func(mb *MeshBlock) { mb.StartReceivingBoundaries() })

	for nb > 0 {
		for mb := m.first; mb != nil; mb = mb.next {
			if m.Tasks.DoOneTask(mb) == TaskListComplete {
				nb--
			}
		}
	}
	m.forEachBlock(func(mb *MeshBlock) { mb.ClearBoundary() })
}

// Step advances time bookkeeping after a completed task-list pass and runs
// the AMR cycle when the mesh is adaptive.
func (m *Mesh) Step() error {
	m.Time += m.Dt
	m.NCycle++
	if m.Adaptive && m.RefinementCriterion != nil {
		m.forEachBlock(func(mb *MeshBlock) {
			m.setRefineFlag(mb, m.RefinementCriterion(mb))
		})
		if err := m.AdaptiveMeshRefinement(); err != nil {
			return err
		}
	}
	if m.BlockTimeStep != nil {
		m.eachBlockParallel(func(mb *MeshBlock) { mb.NewBlockDt = m.BlockTimeStep(mb) })
		m.NewTimeStep()
	}
	return nil
}
