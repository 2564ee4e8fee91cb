package mesh

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
)

// MeshTest writes the mesh structure report: every block with its location,
// levels, cost and rank, per-level and per-rank totals, and the cost
// extrema over blocks. In 2D and 3D it also emits the block-corner
// polylines to dat for external plotting, one polyline per block.
func (m *Mesh) MeshTest(out, dat io.Writer) {
	fmt.Fprintf(out, "Logical level of the physical root grid = %d\n", m.RootLevel)
	fmt.Fprintf(out, "Logical level of maximum refinement = %d\n", m.CurrentLevel)
	fmt.Fprintln(out, "List of MeshBlocks")

	nb := make([]int, m.CurrentLevel-m.RootLevel+1)
	for lev := m.RootLevel; lev <= m.CurrentLevel; lev++ {
		dx := 1.0 / float64(int64(1)<<uint(lev))
		for j := 0; j < m.NBTotal; j++ {
			loc := m.loclist[j]
			if loc.Level != lev {
				continue
			}
			fmt.Fprintf(out, "MeshBlock %d, lx1 = %d, lx2 = %d, lx3 = %d, "+
				"logical level = %d, physical level = %d, cost = %g, rank = %d\n",
				j, loc.LX1, loc.LX2, loc.LX3, lev, lev-m.RootLevel, m.costlist[j], m.ranklist[j])
			nb[lev-m.RootLevel]++
			if dat == nil {
				continue
			}
			x, y, z := float64(loc.LX1)*dx, float64(loc.LX2)*dx, float64(loc.LX3)*dx
			r := m.ranklist[j]
			switch m.dim {
			case 2:
				fmt.Fprintf(dat, "#MeshBlock %d at %d %d %d %d\n", j, loc.LX1, loc.LX2, loc.LX3, lev)
				fmt.Fprintf(dat, "%g %g %d %d\n", x, y, lev, r)
				fmt.Fprintf(dat, "%g %g %d %d\n", x+dx, y, lev, r)
				fmt.Fprintf(dat, "%g %g %d %d\n", x+dx, y+dx, lev, r)
				fmt.Fprintf(dat, "%g %g %d %d\n", x, y+dx, lev, r)
				fmt.Fprintf(dat, "%g %g %d %d\n\n\n", x, y, lev, r)
			case 3:
				fmt.Fprintf(dat, "#MeshBlock %d at %d %d %d %d\n", j, loc.LX1, loc.LX2, loc.LX3, lev)
				corners := [][3]float64{
					{x, y, z}, {x + dx, y, z}, {x + dx, y + dx, z}, {x, y + dx, z},
					{x, y, z}, {x, y, z + dx}, {x + dx, y, z + dx}, {x + dx, y, z},
					{x + dx, y, z + dx}, {x + dx, y + dx, z + dx}, {x + dx, y + dx, z},
					{x + dx, y + dx, z + dx}, {x, y + dx, z + dx}, {x, y + dx, z},
					{x, y + dx, z + dx}, {x, y, z + dx}, {x, y, z},
				}
				for i, c := range corners {
					if i == len(corners)-1 {
						fmt.Fprintf(dat, "%g %g %g %d %d\n\n\n", c[0], c[1], c[2], lev, r)
					} else {
						fmt.Fprintf(dat, "%g %g %g %d %d\n", c[0], c[1], c[2], lev, r)
					}
				}
			}
		}
	}
	fmt.Fprintln(out)

	for lev := m.RootLevel; lev <= m.CurrentLevel; lev++ {
		if nb[lev-m.RootLevel] != 0 {
			fmt.Fprintf(out, "Level %d (logical level %d) : %d MeshBlocks\n",
				lev-m.RootLevel, lev, nb[lev-m.RootLevel])
		}
	}
	fmt.Fprintf(out, "Total : %d MeshBlocks\n\n", m.NBTotal)

	fmt.Fprintln(out, "Load Balance :")
	fmt.Fprintf(out, "Minimum cost = %g, Maximum cost = %g, Average cost = %g\n",
		floats.Min(m.costlist), floats.Max(m.costlist), floats.Sum(m.costlist)/float64(m.NBTotal))
	j, nbt, mycost := 0, 0, 0.0
	for i := 0; i < m.NBTotal; i++ {
		if m.ranklist[i] == j {
			mycost += m.costlist[i]
			nbt++
		} else {
			fmt.Fprintf(out, "Rank %d: %d MeshBlocks, cost = %g\n", j, nbt, mycost)
			mycost = m.costlist[i]
			nbt = 1
			j++
		}
	}
	fmt.Fprintf(out, "Rank %d: %d MeshBlocks, cost = %g\n", j, nbt, mycost)
}
