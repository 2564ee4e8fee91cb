package mesh

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/amitseta90/athena/transport"
	"github.com/amitseta90/athena/tree"
)

func outflow() [6]int {
	return [6]int{tree.BCOutflow, tree.BCOutflow, tree.BCOutflow,
		tree.BCOutflow, tree.BCOutflow, tree.BCOutflow}
}

func params1D() *Parameters {
	return &Parameters{
		TLim:       1.0,
		CFL:        0.3,
		NumThreads: 1,
		MeshSize: RegionSize{
			X1Min: 0, X1Max: 1, X2Min: 0, X2Max: 1, X3Min: 0, X3Max: 1,
			X1Rat: 1, X2Rat: 1, X3Rat: 1,
			NX1: 16, NX2: 1, NX3: 1,
		},
		MeshBCs:    outflow(),
		BlockNX1:   4,
		Refinement: "static",
	}
}

func params2D(nx, block int) *Parameters {
	return &Parameters{
		TLim:       1.0,
		CFL:        0.4,
		NumThreads: 1,
		MeshSize: RegionSize{
			X1Min: 0, X1Max: 1, X2Min: 0, X2Max: 1, X3Min: 0, X3Max: 1,
			X1Rat: 1, X2Rat: 1, X3Rat: 1,
			NX1: nx, NX2: nx, NX3: 1,
		},
		MeshBCs:    outflow(),
		BlockNX1:   block,
		BlockNX2:   block,
		Refinement: "static",
	}
}

// runSingle builds a one-rank mesh and hands it to fn.
func runSingle(t *testing.T, par *Parameters, fn func(*Mesh)) {
	t.Helper()
	err := transport.Run(1, func(c *transport.Comm) error {
		m, err := NewMesh(par, c, zap.NewNop(), 0)
		if err != nil {
			return err
		}
		fn(m)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStaticRefinement1D(t *testing.T) {
	par := params1D()
	par.Regions = []RefinementRegion{{X1Min: 0.25, X1Max: 0.5, Level: 1}}
	runSingle(t, par, func(m *Mesh) {
		// one root block splits into two level-1 blocks
		if m.NBTotal != 5 {
			t.Fatalf("NBTotal = %d, want 5", m.NBTotal)
		}
		nFine := 0
		for _, loc := range m.LocList() {
			if loc.Level == m.RootLevel+1 {
				nFine++
			}
		}
		if nFine != 2 {
			t.Fatalf("%d level-1 blocks, want 2", nFine)
		}

		// the leftmost fine block sees one coarser neighbor toward -x
		var fine *MeshBlock
		m.forEachBlock(func(mb *MeshBlock) {
			if mb.Loc.Level == m.RootLevel+1 && mb.Loc.LX1 == 2 {
				fine = mb
			}
		})
		if fine == nil {
			t.Fatal("fine block not found")
		}
		coarser := 0
		for _, nb := range fine.Neighbors {
			if nb.OX1 == -1 {
				if nb.Level != m.RootLevel {
					t.Fatalf("-x neighbor level = %d, want %d", nb.Level, m.RootLevel)
				}
				coarser++
			}
		}
		if coarser != 1 {
			t.Fatalf("%d records toward -x, want 1", coarser)
		}
	})
}

func TestConstructionValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Parameters)
	}{
		{"nx1 too small", func(p *Parameters) { p.MeshSize.NX1 = 2; p.BlockNX1 = 2 }},
		{"cfl too large 1D", func(p *Parameters) { p.CFL = 1.5 }},
		{"bad extents", func(p *Parameters) { p.MeshSize.X1Max = -1 }},
		{"bad ratio", func(p *Parameters) { p.MeshSize.X1Rat = 1.2 }},
		{"block does not divide mesh", func(p *Parameters) { p.BlockNX1 = 5 }},
		{"threads", func(p *Parameters) { p.NumThreads = 0 }},
		{"x1-x3 plane", func(p *Parameters) { p.MeshSize.NX3 = 8 }},
		{"region outside mesh", func(p *Parameters) {
			p.Regions = []RefinementRegion{{X1Min: 0.5, X1Max: 2.0, Level: 1}}
		}},
		{"region level zero", func(p *Parameters) {
			p.Regions = []RefinementRegion{{X1Min: 0.25, X1Max: 0.5, Level: 0}}
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			par := params1D()
			c.mutate(par)
			err := transport.Run(1, func(comm *transport.Comm) error {
				_, err := NewMesh(par, comm, zap.NewNop(), 0)
				if err == nil {
					t.Errorf("%s: construction should fail", c.name)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCFLValidation2D(t *testing.T) {
	par := params2D(8, 4)
	par.CFL = 0.6
	err := transport.Run(1, func(c *transport.Comm) error {
		_, err := NewMesh(par, c, zap.NewNop(), 0)
		if err == nil {
			t.Error("CFL 0.6 should be rejected in 2D")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAdaptiveRequiresEvenBlocks(t *testing.T) {
	par := &Parameters{
		TLim: 1, CFL: 0.3, NumThreads: 1,
		MeshSize: RegionSize{
			X1Min: 0, X1Max: 1, X2Min: 0, X2Max: 1, X3Min: 0, X3Max: 1,
			X1Rat: 1, X2Rat: 1, X3Rat: 1, NX1: 25, NX2: 1, NX3: 1,
		},
		MeshBCs: outflow(), BlockNX1: 5, Refinement: "adaptive", NumLevel: 2,
	}
	err := transport.Run(1, func(c *transport.Comm) error {
		_, err := NewMesh(par, c, zap.NewNop(), 0)
		if err == nil {
			t.Error("odd block size with AMR should be rejected")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMeshTestModeBalance(t *testing.T) {
	par := params2D(8, 4) // 4 blocks
	err := transport.Run(1, func(c *transport.Comm) error {
		m, err := NewMesh(par, c, zap.NewNop(), 3)
		if err != nil {
			return err
		}
		// master-light: the residue block pair lands on the last rank
		nb := make([]int, 3)
		for _, r := range m.RankList() {
			nb[r]++
		}
		if nb[0] != 1 || nb[1] != 1 || nb[2] != 2 {
			t.Errorf("rank counts = %v, want [1 1 2]", nb)
		}

		var out, dat bytes.Buffer
		m.MeshTest(&out, &dat)
		if !strings.Contains(out.String(), "Total : 4 MeshBlocks") {
			t.Errorf("report missing total:\n%s", out.String())
		}
		if dat.Len() == 0 {
			t.Error("2D mesh test should emit block corner polylines")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMeshTestModeTooFewBlocksWarns(t *testing.T) {
	par := params2D(8, 4) // 4 blocks, 8 tested ranks
	err := transport.Run(1, func(c *transport.Comm) error {
		_, err := NewMesh(par, c, zap.NewNop(), 8)
		return err
	})
	if err != nil {
		t.Fatalf("mesh-test mode must warn, not fail: %v", err)
	}
}

func TestNewTimeStep(t *testing.T) {
	par := params1D()
	par.BlockNX1 = 16 // single block
	runSingle(t, par, func(m *Mesh) {
		mb := m.FirstBlock()
		mb.NewBlockDt = 1.0

		m.Dt = 1e30
		m.NewTimeStep()
		if m.Dt != 0.3 {
			t.Fatalf("dt = %g, want cfl*min_dt = 0.3", m.Dt)
		}

		// growth is limited to a factor of two
		m.Dt = 0.1
		m.NewTimeStep()
		if m.Dt != 0.2 {
			t.Fatalf("dt = %g, want 2*dt_prev = 0.2", m.Dt)
		}

		// the final step clamps to the time limit
		m.Dt = 0.3
		m.Time = m.TLim - 0.03
		m.NewTimeStep()
		if d := m.Dt - 0.03; d > 1e-15 || d < -1e-15 {
			t.Fatalf("dt = %g, want clamp to %g", m.Dt, 0.03)
		}
	})
}

func TestGetTotalCells(t *testing.T) {
	par := params2D(8, 4)
	runSingle(t, par, func(m *Mesh) {
		if got := m.GetTotalCells(); got != 4*4*4 {
			t.Fatalf("GetTotalCells = %d, want 64", got)
		}
	})
}

func TestFindMeshBlock(t *testing.T) {
	par := params2D(8, 4)
	runSingle(t, par, func(m *Mesh) {
		if mb := m.FindMeshBlock(2); mb == nil || mb.GID != 2 {
			t.Fatal("FindMeshBlock(2) failed")
		}
		if mb := m.FindMeshBlock(99); mb != nil {
			t.Fatal("FindMeshBlock(99) should be nil")
		}
	})
}
