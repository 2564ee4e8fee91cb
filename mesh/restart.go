package mesh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/amitseta90/athena/transport"
	"github.com/amitseta90/athena/tree"
)

// Restart layout (fixed little-endian):
//
//	header:  nbtotal(i32), root_level(i32), mesh_size(RegionSize),
//	         mesh_bcs[6](i32), time(f64), dt(f64), ncycle(i32)
//	id list: nbtotal x { gid(i32), location(4x i64), cost(f64), offset(u64) }
//	blocks:  at each offset { RegionSize, bcs[6](i32), u, [w, w1], [b] }
//
// RegionSize serializes as nine f64 extents/ratios followed by three i32
// cell counts. Every value is written little-endian whatever the host byte
// order, so the layout is byte-stable across hosts.

const regionSizeBytes = 9*8 + 3*4

var bo = binary.LittleEndian

func putRegionSize(b *bytes.Buffer, rs RegionSize) {
	for _, f := range []float64{rs.X1Min, rs.X2Min, rs.X3Min, rs.X1Max, rs.X2Max, rs.X3Max,
		rs.X1Rat, rs.X2Rat, rs.X3Rat} {
		var x [8]byte
		bo.PutUint64(x[:], math.Float64bits(f))
		b.Write(x[:])
	}
	for _, n := range []int{rs.NX1, rs.NX2, rs.NX3} {
		var x [4]byte
		bo.PutUint32(x[:], uint32(n))
		b.Write(x[:])
	}
}

type byteReader struct {
	data []byte
	pos  int
	err  error
}

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *byteReader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(bo.Uint64(b))
}

func (r *byteReader) i32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(bo.Uint32(b))
}

func (r *byteReader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(bo.Uint64(b))
}

func (r *byteReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return bo.Uint64(b)
}

func (r *byteReader) regionSize() RegionSize {
	var rs RegionSize
	rs.X1Min, rs.X2Min, rs.X3Min = r.f64(), r.f64(), r.f64()
	rs.X1Max, rs.X2Max, rs.X3Max = r.f64(), r.f64(), r.f64()
	rs.X1Rat, rs.X2Rat, rs.X3Rat = r.f64(), r.f64(), r.f64()
	rs.NX1, rs.NX2, rs.NX3 = int(r.i32()), int(r.i32()), int(r.i32())
	return rs
}

func (r *byteReader) floats(dst []float64) {
	b := r.take(8 * len(dst))
	if b == nil {
		return
	}
	for i := range dst {
		dst[i] = math.Float64frombits(bo.Uint64(b[8*i:]))
	}
}

func putFloats(b *bytes.Buffer, src []float64) {
	var x [8]byte
	for _, f := range src {
		bo.PutUint64(x[:], math.Float64bits(f))
		b.Write(x[:])
	}
}

// blockPayload serializes one block's restart record.
func (mb *MeshBlock) blockPayload() []byte {
	var b bytes.Buffer
	putRegionSize(&b, mb.Size)
	var x [4]byte
	for _, c := range mb.BCs {
		bo.PutUint32(x[:], uint32(c))
		b.Write(x[:])
	}
	putFloats(&b, mb.U.Data())
	if mb.mesh.GR {
		putFloats(&b, mb.W.Data())
		putFloats(&b, mb.W1.Data())
	}
	if mb.mesh.Magnetic {
		putFloats(&b, mb.B.X1.Data())
		putFloats(&b, mb.B.X2.Data())
		putFloats(&b, mb.B.X3.Data())
	}
	return b.Bytes()
}

func (mb *MeshBlock) loadPayload(r *byteReader) error {
	mb.Size = r.regionSize()
	for f := 0; f < 6; f++ {
		mb.BCs[f] = int(r.i32())
	}
	r.floats(mb.U.Data())
	if mb.mesh.GR {
		r.floats(mb.W.Data())
		r.floats(mb.W1.Data())
	}
	if mb.mesh.Magnetic {
		r.floats(mb.B.X1.Data())
		r.floats(mb.B.X2.Data())
		r.floats(mb.B.X3.Data())
	}
	if r.err != nil {
		return fmt.Errorf("mesh: the restart file is broken: %w", r.err)
	}
	return nil
}

// WriteRestart serializes the whole mesh. Block payloads are gathered from
// their owning ranks; rank 0 writes the stream and the other ranks write
// nothing. The call is collective.
func (m *Mesh) WriteRestart(w io.Writer) error {
	// gather every rank's payloads in gid order
	local := make([][]byte, 0, m.NumLocalBlocks())
	m.forEachBlock(func(mb *MeshBlock) { local = append(local, mb.blockPayload()) })
	parts := m.Comm.Exchange(local)
	if m.Comm.Rank() != 0 {
		return nil
	}

	payloads := make([][]byte, 0, m.NBTotal)
	for _, v := range parts {
		payloads = append(payloads, v.([][]byte)...)
	}
	if len(payloads) != m.NBTotal {
		return fmt.Errorf("mesh: restart write gathered %d blocks, want %d", len(payloads), m.NBTotal)
	}

	var b bytes.Buffer
	var x4 [4]byte
	var x8 [8]byte
	bo.PutUint32(x4[:], uint32(m.NBTotal))
	b.Write(x4[:])
	bo.PutUint32(x4[:], uint32(m.RootLevel))
	b.Write(x4[:])
	putRegionSize(&b, m.MeshSize)
	for _, c := range m.MeshBCs {
		bo.PutUint32(x4[:], uint32(c))
		b.Write(x4[:])
	}
	bo.PutUint64(x8[:], math.Float64bits(m.Time))
	b.Write(x8[:])
	bo.PutUint64(x8[:], math.Float64bits(m.Dt))
	b.Write(x8[:])
	bo.PutUint32(x4[:], uint32(m.NCycle))
	b.Write(x4[:])

	headerSize := b.Len() + m.NBTotal*(4+4*8+8+8)
	offset := uint64(headerSize)
	for i := 0; i < m.NBTotal; i++ {
		bo.PutUint32(x4[:], uint32(i))
		b.Write(x4[:])
		loc := m.loclist[i]
		for _, v := range []int64{int64(loc.Level), loc.LX1, loc.LX2, loc.LX3} {
			bo.PutUint64(x8[:], uint64(v))
			b.Write(x8[:])
		}
		bo.PutUint64(x8[:], math.Float64bits(m.costlist[i]))
		b.Write(x8[:])
		bo.PutUint64(x8[:], offset)
		b.Write(x8[:])
		offset += uint64(len(payloads[i]))
	}
	for _, p := range payloads {
		b.Write(p)
	}
	_, err := w.Write(b.Bytes())
	return err
}

// NewMeshFromRestart rebuilds a mesh from a restart stream. Block size and
// physics switches come from par exactly as on a fresh start; the mesh size,
// boundary codes, tree, time state, costs, and field data come from the
// stream. Every rank parses
// the whole stream and loads only its own blocks.
func NewMeshFromRestart(par *Parameters, rd io.Reader, comm *transport.Comm, logger *zap.Logger, testRanks int) (*Mesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("mesh: reading restart: %w", err)
	}
	r := &byteReader{data: data}

	m := &Mesh{
		Comm:       comm,
		log:        logger,
		StartTime:  par.StartTime,
		TLim:       par.TLim,
		CFL:        par.CFL,
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

	m.NBTotal = int(r.i32())
	m.RootLevel = int(r.i32())
	m.CurrentLevel = m.RootLevel
	m.MeshSize = r.regionSize()
	for f := 0; f < 6; f++ {
		m.MeshBCs[f] = int(r.i32())
	}
	m.Time = r.f64()
	m.Dt = r.f64()
	m.NCycle = int(r.i32())
	if r.err != nil || m.NBTotal <= 0 {
		return nil, fmt.Errorf("mesh: the restart file is broken")
	}

	m.dim = 1
	if m.MeshSize.NX2 > 1 {
		m.dim = 2
	}
	if m.MeshSize.NX3 > 1 {
		m.dim = 3
	}
	if m.CFL > 1.0 && m.dim == 1 {
		return nil, fmt.Errorf("mesh: the CFL number must be <= 1.0 in 1D, got %g", m.CFL)
	}
	if m.CFL > 0.5 && m.dim > 1 {
		return nil, fmt.Errorf("mesh: the CFL number must be <= 0.5 in 2D/3D, got %g", m.CFL)
	}

	bs := RegionSize{
		X1Rat: m.MeshSize.X1Rat, X2Rat: m.MeshSize.X2Rat, X3Rat: m.MeshSize.X3Rat,
		NX1: par.BlockNX1, NX2: par.BlockNX2, NX3: par.BlockNX3,
	}
	if bs.NX1 <= 0 {
		bs.NX1 = m.MeshSize.NX1
	}
	if bs.NX2 <= 0 {
		bs.NX2 = m.MeshSize.NX2
	}
	if bs.NX3 <= 0 {
		bs.NX3 = m.MeshSize.NX3
	}
	m.blockSize = bs
	m.nrbx1 = int64(m.MeshSize.NX1 / bs.NX1)
	m.nrbx2 = int64(m.MeshSize.NX2 / bs.NX2)
	m.nrbx3 = int64(m.MeshSize.NX3 / bs.NX3)

	// id list
	m.loclist = make([]tree.LogicalLocation, m.NBTotal)
	m.costlist = make([]float64, m.NBTotal)
	offsets := make([]uint64, m.NBTotal)
	m.Multilevel = false
	for i := 0; i < m.NBTotal; i++ {
		r.i32() // stored gid; regenerated by enumeration
		loc := tree.LogicalLocation{
			Level: int(r.i64()), LX1: r.i64(), LX2: r.i64(), LX3: r.i64(),
		}
		m.loclist[i] = loc
		if loc.Level != m.RootLevel {
			m.Multilevel = true
		}
		if loc.Level > m.CurrentLevel {
			m.CurrentLevel = loc.Level
		}
		m.costlist[i] = r.f64()
		offsets[i] = r.u64()
	}
	if r.err != nil {
		return nil, fmt.Errorf("mesh: the restart file is broken")
	}

	m.Adaptive = par.Refinement == "adaptive"
	if m.Adaptive {
		m.Multilevel = true
		m.MaxLevel = par.NumLevel + m.RootLevel - 1
	} else {
		m.MaxLevel = 63
	}
	m.FaceOnly = !m.Magnetic && !m.Multilevel
	m.catalog = NewBufferCatalog(m.dim, m.Multilevel, m.FaceOnly)

	// rebuild the tree and re-derive ids
	m.tree = tree.NewTree(m.nrbx1, m.nrbx2, m.nrbx3, m.RootLevel, m.MaxLevel, m.dim, m.MeshBCs)
	for i := 0; i < m.NBTotal; i++ {
		if err := m.tree.AddLeafNoRefine(m.loclist[i]); err != nil {
			return nil, err
		}
	}
	if nnb := m.tree.CountLeaves(); nnb != m.NBTotal {
		return nil, fmt.Errorf("mesh: tree reconstruction failed: %d != %d blocks", nnb, m.NBTotal)
	}
	m.tree.EnumerateLeaves(m.loclist, nil)

	if m.NBTotal < m.nranks {
		if !m.testMode {
			return nil, fmt.Errorf("mesh: too few blocks: nbtotal (%d) < nranks (%d)", m.NBTotal, m.nranks)
		}
		m.log.Warn("too few blocks for the rank count",
			zap.Int("nbtotal", m.NBTotal), zap.Int("nranks", m.nranks))
		return m, nil
	}

	if err := m.loadBalance(); err != nil {
		return nil, err
	}
	if m.testMode {
		return m, nil
	}

	nbs := m.nslist[comm.Rank()]
	nbe := nbs + m.nblist[comm.Rank()] - 1
	for i := nbs; i <= nbe; i++ {
		size, bcs := m.setBlockSizeAndBoundaries(m.loclist[i])
		mb := NewMeshBlock(i, i-nbs, m.loclist[i], size, bcs, m)
		mb.Cost = m.costlist[i]
		br := &byteReader{data: data, pos: int(offsets[i])}
		if int(offsets[i]) > len(data) {
			return nil, fmt.Errorf("mesh: the restart file is broken")
		}
		if err := mb.loadPayload(br); err != nil {
			return nil, err
		}
		m.appendBlock(mb)
	}
	m.forEachBlock(func(mb *MeshBlock) {
		mb.SearchAndSetNeighbors(m.tree, m.ranklist, m.nslist)
	})
	return m, nil
}
