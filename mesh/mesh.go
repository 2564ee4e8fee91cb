package mesh

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/amitseta90/athena/partitions"
	"github.com/amitseta90/athena/transport"
	"github.com/amitseta90/athena/tree"
)

// RefinementRegion asks for a static refinement of everything inside the
// given physical bounds up to the given physical level (1 = one level above
// the root grid).
type RefinementRegion struct {
	X1Min, X1Max float64
	X2Min, X2Max float64
	X3Min, X3Max float64
	Level        int
}

// Parameters collects the validated inputs of mesh construction. The config
// package produces one from an input file; tests build them directly.
type Parameters struct {
	StartTime float64
	TLim      float64
	CFL       float64
	NLim      int

	NumThreads int

	MeshSize RegionSize
	MeshBCs  [6]int

	BlockNX1, BlockNX2, BlockNX3 int

	Refinement string // "static" or "adaptive"
	NumLevel   int    // levels counting the root level, adaptive only (finest = root + NumLevel - 1)
	Regions    []RefinementRegion

	NHydro   int
	Magnetic bool
	GR       bool
}

// TaskStatus is returned by the external task list for one block.
type TaskStatus int

const (
	TaskListRunning TaskStatus = iota
	TaskListComplete
)

// TaskList is the external per-step work description. The driver only
// round-robins it over blocks; what the tasks compute is opaque here.
type TaskList interface {
	NTasks() int
	DoOneTask(*MeshBlock) TaskStatus
}

// Mesh is the top-level driver: it owns the block tree, the replicated
// rank assignment lists, and this rank's MeshBlocks.
type Mesh struct {
	Comm *transport.Comm
	log  *zap.Logger

	MeshSize RegionSize
	MeshBCs  [6]int

	StartTime float64
	TLim      float64
	CFL       float64
	Time, Dt  float64
	NCycle    int
	NLim      int

	NumThreads int

	RootLevel    int
	CurrentLevel int
	MaxLevel     int

	Multilevel bool
	Adaptive   bool
	FaceOnly   bool

	NHydro   int
	Magnetic bool
	GR       bool

	nrbx1, nrbx2, nrbx3 int64
	dim                 int

	tree    *tree.Tree
	catalog *BufferCatalog

	NBTotal  int
	loclist  []tree.LogicalLocation
	ranklist []int
	costlist []float64
	nslist   []int
	nblist   []int

	blockSize RegionSize

	first, last *MeshBlock

	// nranks is the number of ranks blocks are balanced over. It equals
	// Comm.Size() except in mesh-test mode, where it is the tested count.
	nranks   int
	testMode bool

	// Capabilities supplied by the physics layers. The core invokes these
	// and never implements them.
	ProblemGenerator    func(*MeshBlock)
	ConservedToPrim     func(*MeshBlock)
	PhysicalBoundary    [6]func(*MeshBlock)
	RefinementCriterion func(*MeshBlock) int
	BlockTimeStep       func(*MeshBlock) float64
	Tasks               TaskList

	// refineFlags holds the per-block AMR flags gathered each cycle,
	// keyed by gid for the local blocks.
	refineFlags map[int]int
}

// NewMesh validates the parameters and builds the mesh: tree, static
// refinement regions, the block-to-rank balance, this rank's MeshBlocks,
// and their neighbor lists. testRanks > 0 selects mesh-test mode: blocks
// are not materialized and the balance is computed for that many ranks.
func NewMesh(par *Parameters, comm *transport.Comm, logger *zap.Logger, testRanks int) (*Mesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mesh{
		Comm:       comm,
		log:        logger,
		MeshSize:   par.MeshSize,
		MeshBCs:    par.MeshBCs,
		StartTime:  par.StartTime,
		TLim:       par.TLim,
		CFL:        par.CFL,
		Time:       par.StartTime,
		Dt:         0.4 * math.MaxFloat32,
		NLim:       par.NLim,
		NumThreads: par.NumThreads,
		NHydro:     par.NHydro,
		Magnetic:   par.Magnetic,
		GR:         par.GR,
		nranks:     comm.Size(),
	}
	if testRanks > 0 {
		m.nranks = testRanks
		m.testMode = true
	}
	if m.NHydro <= 0 {
		m.NHydro = 5
	}
	if m.NumThreads < 1 {
		return nil, fmt.Errorf("mesh: number of threads must be >= 1, got %d", m.NumThreads)
	}

	ms := &m.MeshSize
	if ms.NX1 < 4 {
		return nil, fmt.Errorf("mesh: nx1 must be >= 4, got %d", ms.NX1)
	}
	if ms.NX2 < 1 || ms.NX3 < 1 {
		return nil, fmt.Errorf("mesh: nx2 and nx3 must be >= 1, got %d, %d", ms.NX2, ms.NX3)
	}
	if ms.NX2 == 1 && ms.NX3 > 1 {
		return nil, fmt.Errorf("mesh: 2D problems in the x1-x3 plane are not supported (nx2=1, nx3=%d)", ms.NX3)
	}
	m.dim = 1
	if ms.NX2 > 1 {
		m.dim = 2
	}
	if ms.NX3 > 1 {
		m.dim = 3
	}
	if m.CFL > 1.0 && m.dim == 1 {
		return nil, fmt.Errorf("mesh: the CFL number must be <= 1.0 in 1D, got %g", m.CFL)
	}
	if m.CFL > 0.5 && m.dim > 1 {
		return nil, fmt.Errorf("mesh: the CFL number must be <= 0.5 in 2D/3D, got %g", m.CFL)
	}
	if ms.X1Max <= ms.X1Min || ms.X2Max <= ms.X2Min || ms.X3Max <= ms.X3Min {
		return nil, fmt.Errorf("mesh: physical maxima must exceed minima")
	}
	if ms.X1Rat == 0 {
		ms.X1Rat = 1.0
	}
	if ms.X2Rat == 0 {
		ms.X2Rat = 1.0
	}
	if ms.X3Rat == 0 {
		ms.X3Rat = 1.0
	}
	if math.Abs(ms.X1Rat-1.0) > 0.1 || math.Abs(ms.X2Rat-1.0) > 0.1 || math.Abs(ms.X3Rat-1.0) > 0.1 {
		return nil, fmt.Errorf("mesh: cell size ratios must lie in [0.9, 1.1]")
	}

	// block geometry
	bs := RegionSize{
		X1Rat: ms.X1Rat, X2Rat: ms.X2Rat, X3Rat: ms.X3Rat,
		NX1: par.BlockNX1, NX2: par.BlockNX2, NX3: par.BlockNX3,
	}
	if bs.NX1 <= 0 {
		bs.NX1 = ms.NX1
	}
	if m.dim >= 2 {
		if bs.NX2 <= 0 {
			bs.NX2 = ms.NX2
		}
	} else {
		bs.NX2 = ms.NX2
	}
	if m.dim == 3 {
		if bs.NX3 <= 0 {
			bs.NX3 = ms.NX3
		}
	} else {
		bs.NX3 = ms.NX3
	}
	if ms.NX1%bs.NX1 != 0 || ms.NX2%bs.NX2 != 0 || ms.NX3%bs.NX3 != 0 {
		return nil, fmt.Errorf("mesh: the mesh must be evenly divisible by the meshblock")
	}
	if bs.NX1 < 4 || (bs.NX2 < 4 && m.dim >= 2) || (bs.NX3 < 4 && m.dim == 3) {
		return nil, fmt.Errorf("mesh: block size must be at least 4 cells per active dimension")
	}
	m.blockSize = bs

	m.nrbx1 = int64(ms.NX1 / bs.NX1)
	m.nrbx2 = int64(ms.NX2 / bs.NX2)
	m.nrbx3 = int64(ms.NX3 / bs.NX3)
	nbmax := m.nrbx1
	if m.nrbx2 > nbmax {
		nbmax = m.nrbx2
	}
	if m.nrbx3 > nbmax {
		nbmax = m.nrbx3
	}
	if comm.Rank() == 0 {
		m.log.Info("root grid",
			zap.Int64("nrbx1", m.nrbx1), zap.Int64("nrbx2", m.nrbx2), zap.Int64("nrbx3", m.nrbx3))
	}
	for m.RootLevel = 0; int64(1)<<uint(m.RootLevel) < nbmax; m.RootLevel++ {
	}
	m.CurrentLevel = m.RootLevel

	m.Adaptive = par.Refinement == "adaptive"
	m.Multilevel = m.Adaptive
	if m.Adaptive {
		m.MaxLevel = par.NumLevel + m.RootLevel - 1
		if m.MaxLevel > 63 {
			return nil, fmt.Errorf("mesh: the number of refinement levels must be smaller than %d", 64-m.RootLevel+1)
		}
	} else {
		m.MaxLevel = 63
	}

	m.tree = tree.NewTree(m.nrbx1, m.nrbx2, m.nrbx3, m.RootLevel, m.MaxLevel, m.dim, m.MeshBCs)

	if err := m.addRefinementRegions(par.Regions); err != nil {
		return nil, err
	}

	if m.Multilevel {
		if bs.NX1%2 == 1 || (bs.NX2%2 == 1 && bs.NX2 > 1) || (bs.NX3%2 == 1 && bs.NX3 > 1) {
			return nil, fmt.Errorf("mesh: block size must be divisible by 2 with SMR or AMR")
		}
	}

	m.FaceOnly = !m.Magnetic && !m.Multilevel
	m.catalog = NewBufferCatalog(m.dim, m.Multilevel, m.FaceOnly)

	m.NBTotal = m.tree.CountLeaves()
	m.loclist = make([]tree.LogicalLocation, m.NBTotal)
	m.tree.EnumerateLeaves(m.loclist, nil)

	if m.NBTotal < m.nranks {
		if !m.testMode {
			return nil, fmt.Errorf("mesh: too few blocks: nbtotal (%d) < nranks (%d)", m.NBTotal, m.nranks)
		}
		m.log.Warn("too few blocks for the rank count",
			zap.Int("nbtotal", m.NBTotal), zap.Int("nranks", m.nranks))
		return m, nil
	}

	m.costlist = make([]float64, m.NBTotal)
	for i := range m.costlist {
		m.costlist[i] = 1.0 // the simplest estimate; all blocks are equal
	}
	if err := m.loadBalance(); err != nil {
		return nil, err
	}

	if m.testMode {
		return m, nil
	}

	// materialize this rank's blocks and wire their neighbors
	nbs := m.nslist[comm.Rank()]
	nbe := nbs + m.nblist[comm.Rank()] - 1
	for i := nbs; i <= nbe; i++ {
		size, bcs := m.setBlockSizeAndBoundaries(m.loclist[i])
		mb := NewMeshBlock(i, i-nbs, m.loclist[i], size, bcs, m)
		m.appendBlock(mb)
	}
	m.forEachBlock(func(mb *MeshBlock) {
		mb.SearchAndSetNeighbors(m.tree, m.ranklist, m.nslist)
	})
	return m, nil
}

// addRefinementRegions grows the tree over every requested static region.
func (m *Mesh) addRefinementRegions(regions []RefinementRegion) error {
	ms := m.MeshSize
	for _, reg := range regions {
		if m.dim < 2 {
			reg.X2Min, reg.X2Max = ms.X2Min, ms.X2Max
		}
		if m.dim < 3 {
			reg.X3Min, reg.X3Max = ms.X3Min, ms.X3Max
		}
		if reg.Level < 1 {
			return fmt.Errorf("mesh: refinement level must be larger than 0 (root level = 0)")
		}
		lrlev := reg.Level + m.RootLevel
		if lrlev > m.MaxLevel {
			return fmt.Errorf("mesh: refinement level exceeds the maximum level")
		}
		if reg.X1Min > reg.X1Max || reg.X2Min > reg.X2Max || reg.X3Min > reg.X3Max {
			return fmt.Errorf("mesh: invalid refinement region")
		}
		if reg.X1Min < ms.X1Min || reg.X1Max > ms.X1Max ||
			reg.X2Min < ms.X2Min || reg.X2Max > ms.X2Max ||
			reg.X3Min < ms.X3Min || reg.X3Max > ms.X3Max {
			return fmt.Errorf("mesh: refinement region must lie inside the mesh")
		}
		if lrlev > m.CurrentLevel {
			m.CurrentLevel = lrlev
		}
		if lrlev != m.RootLevel {
			m.Multilevel = true
		}

		// find the logical index range covering the region at ref level
		lx1min, lx1max := logicalRange(reg.X1Min, reg.X1Max, m.nrbx1, reg.Level, ms, MeshGenX1)
		var lx2min, lx2max, lx3min, lx3max int64
		if m.dim >= 2 {
			lx2min, lx2max = logicalRange(reg.X2Min, reg.X2Max, m.nrbx2, reg.Level, ms, MeshGenX2)
		}
		if m.dim == 3 {
			lx3min, lx3max = logicalRange(reg.X3Min, reg.X3Max, m.nrbx3, reg.Level, ms, MeshGenX3)
		}

		m.log.Info("static refinement",
			zap.Int("level", lrlev),
			zap.Int64("lx1min", lx1min), zap.Int64("lx1max", lx1max),
			zap.Int64("lx2min", lx2min), zap.Int64("lx2max", lx2max),
			zap.Int64("lx3min", lx3min), zap.Int64("lx3max", lx3max))

		nnew := 0
		k3, k2 := int64(2), int64(2)
		if m.dim < 3 {
			lx3max = lx3min + 2
			k3 = 2
		}
		if m.dim < 2 {
			lx2max = lx2min + 2
			k2 = 2
		}
		for k := lx3min; k < lx3max; k += k3 {
			for j := lx2min; j < lx2max; j += k2 {
				for i := lx1min; i < lx1max; i += 2 {
					loc := tree.LogicalLocation{Level: lrlev, LX1: i, LX2: j, LX3: k}
					if m.dim < 2 {
						loc.LX2 = 0
					}
					if m.dim < 3 {
						loc.LX3 = 0
					}
					if err := m.tree.AddLeaf(loc, &nnew); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// logicalRange converts a physical interval to the even-aligned logical
// index range at the given physical refinement level.
func logicalRange(xmin, xmax float64, nrbx int64, level int, ms RegionSize,
	gen func(float64, RegionSize) float64) (int64, int64) {

	lxmax := nrbx << uint(level)
	var lmin, lmax int64
	for lmin = 0; lmin < lxmax; lmin++ {
		if gen(float64(lmin+1)/float64(lxmax), ms) > xmin {
			break
		}
	}
	for lmax = lmin; lmax < lxmax; lmax++ {
		if gen(float64(lmax+1)/float64(lxmax), ms) >= xmax {
			break
		}
	}
	if lmin%2 == 1 {
		lmin--
	}
	if lmax%2 == 0 {
		lmax++
	}
	return lmin, lmax
}

// loadBalance distributes the current cost list and installs the rank
// views. The warning for uneven uniform distributions comes from here.
func (m *Mesh) loadBalance() error {
	b := &partitions.Balancer{NumRanks: m.nranks, Adaptive: m.Adaptive}
	layout, err := b.Balance(m.costlist)
	if err != nil {
		return fmt.Errorf("mesh: load balancing failed: %w", err)
	}
	if layout.Uneven && m.Comm.Rank() == 0 && m.nranks > 1 {
		m.log.Warn("the number of blocks cannot be divided evenly; this will cause a poor load balance",
			zap.Int("nbtotal", m.NBTotal), zap.Int("nranks", m.nranks))
	}
	m.ranklist = layout.Ranklist
	m.nslist = layout.Nslist
	m.nblist = layout.Nblist
	return nil
}

// setBlockSizeAndBoundaries derives the physical extents and face boundary
// codes of the block at loc. Interior faces get the internal code.
func (m *Mesh) setBlockSizeAndBoundaries(loc tree.LogicalLocation) (RegionSize, [6]int) {
	bs := m.blockSize
	var bcs [6]int
	sh := uint(loc.Level - m.RootLevel)

	if loc.LX1 == 0 {
		bs.X1Min = m.MeshSize.X1Min
		bcs[tree.InnerX1] = m.MeshBCs[tree.InnerX1]
	} else {
		rx := float64(loc.LX1) / float64(m.nrbx1<<sh)
		bs.X1Min = MeshGenX1(rx, m.MeshSize)
		bcs[tree.InnerX1] = tree.BCInternal
	}
	if loc.LX1 == m.nrbx1<<sh-1 {
		bs.X1Max = m.MeshSize.X1Max
		bcs[tree.OuterX1] = m.MeshBCs[tree.OuterX1]
	} else {
		rx := float64(loc.LX1+1) / float64(m.nrbx1<<sh)
		bs.X1Max = MeshGenX1(rx, m.MeshSize)
		bcs[tree.OuterX1] = tree.BCInternal
	}

	if m.MeshSize.NX2 == 1 {
		bs.X2Min, bs.X2Max = m.MeshSize.X2Min, m.MeshSize.X2Max
		bcs[tree.InnerX2] = m.MeshBCs[tree.InnerX2]
		bcs[tree.OuterX2] = m.MeshBCs[tree.OuterX2]
	} else {
		if loc.LX2 == 0 {
			bs.X2Min = m.MeshSize.X2Min
			bcs[tree.InnerX2] = m.MeshBCs[tree.InnerX2]
		} else {
			rx := float64(loc.LX2) / float64(m.nrbx2<<sh)
			bs.X2Min = MeshGenX2(rx, m.MeshSize)
			bcs[tree.InnerX2] = tree.BCInternal
		}
		if loc.LX2 == m.nrbx2<<sh-1 {
			bs.X2Max = m.MeshSize.X2Max
			bcs[tree.OuterX2] = m.MeshBCs[tree.OuterX2]
		} else {
			rx := float64(loc.LX2+1) / float64(m.nrbx2<<sh)
			bs.X2Max = MeshGenX2(rx, m.MeshSize)
			bcs[tree.OuterX2] = tree.BCInternal
		}
	}

	if m.MeshSize.NX3 == 1 {
		bs.X3Min, bs.X3Max = m.MeshSize.X3Min, m.MeshSize.X3Max
		bcs[tree.InnerX3] = m.MeshBCs[tree.InnerX3]
		bcs[tree.OuterX3] = m.MeshBCs[tree.OuterX3]
	} else {
		if loc.LX3 == 0 {
			bs.X3Min = m.MeshSize.X3Min
			bcs[tree.InnerX3] = m.MeshBCs[tree.InnerX3]
		} else {
			rx := float64(loc.LX3) / float64(m.nrbx3<<sh)
			bs.X3Min = MeshGenX3(rx, m.MeshSize)
			bcs[tree.InnerX3] = tree.BCInternal
		}
		if loc.LX3 == m.nrbx3<<sh-1 {
			bs.X3Max = m.MeshSize.X3Max
			bcs[tree.OuterX3] = m.MeshBCs[tree.OuterX3]
		} else {
			rx := float64(loc.LX3+1) / float64(m.nrbx3<<sh)
			bs.X3Max = MeshGenX3(rx, m.MeshSize)
			bcs[tree.OuterX3] = tree.BCInternal
		}
	}
	return bs, bcs
}

// NewTimeStep reduces the per-block timesteps to the mesh timestep:
// the CFL-scaled global minimum, limited to twice the previous step, and
// clamped so the run ends exactly at the time limit.
func (m *Mesh) NewTimeStep() {
	minDt := math.MaxFloat64
	m.forEachBlock(func(mb *MeshBlock) {
		if mb.NewBlockDt < minDt {
			minDt = mb.NewBlockDt
		}
	})
	minDt = m.Comm.AllReduceMin(minDt)
	m.Dt = math.Min(minDt*m.CFL, 2.0*m.Dt)
	if m.Time < m.TLim && m.TLim-m.Time < m.Dt {
		m.Dt = m.TLim - m.Time
	}
}

// TotalConserved returns the volume integral of every conservative
// variable, reduced over all ranks.
func (m *Mesh) TotalConserved() []float64 {
	tcons := make([]float64, m.NHydro)
	m.forEachBlock(func(mb *MeshBlock) {
		mb.IntegrateConservative(tcons)
	})
	m.Comm.AllReduceSum(tcons)
	return tcons
}

// GetTotalCells returns the total active cell count for performance
// accounting.
func (m *Mesh) GetTotalCells() int64 {
	return int64(m.NBTotal) * int64(m.blockSize.NX1) * int64(m.blockSize.NX2) * int64(m.blockSize.NX3)
}

// Tree exposes the block tree for tests and tooling.
func (m *Mesh) Tree() *tree.Tree { return m.tree }

// LocList returns the replicated location list (do not mutate).
func (m *Mesh) LocList() []tree.LogicalLocation { return m.loclist }

// RankList returns the replicated rank list (do not mutate).
func (m *Mesh) RankList() []int { return m.ranklist }

// CostList returns the replicated cost list (do not mutate).
func (m *Mesh) CostList() []float64 { return m.costlist }

// BlockSize returns the per-block cell geometry.
func (m *Mesh) BlockSize() RegionSize { return m.blockSize }

// Dim returns the mesh dimensionality.
func (m *Mesh) Dim() int { return m.dim }
