// Package config parses run input files into mesh parameters. Inputs are
// INI-style sections: [time], [mesh], [meshblock], and any number of
// [refinement "N"] subsections describing static refinement regions.
package config

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"gopkg.in/gcfg.v1"

	"github.com/amitseta90/athena/mesh"
)

// Input mirrors the input file layout.
type Input struct {
	Time struct {
		StartTime float64 `gcfg:"start_time"`
		TLim      float64 `gcfg:"tlim"`
		CFLNumber float64 `gcfg:"cfl_number"`
		NLim      int     `gcfg:"nlim"`
	}
	Mesh struct {
		NX1        int     `gcfg:"nx1"`
		NX2        int     `gcfg:"nx2"`
		NX3        int     `gcfg:"nx3"`
		X1Min      float64 `gcfg:"x1min"`
		X1Max      float64 `gcfg:"x1max"`
		X2Min      float64 `gcfg:"x2min"`
		X2Max      float64 `gcfg:"x2max"`
		X3Min      float64 `gcfg:"x3min"`
		X3Max      float64 `gcfg:"x3max"`
		X1Rat      float64 `gcfg:"x1rat"`
		X2Rat      float64 `gcfg:"x2rat"`
		X3Rat      float64 `gcfg:"x3rat"`
		IX1BC      int     `gcfg:"ix1_bc"`
		OX1BC      int     `gcfg:"ox1_bc"`
		IX2BC      int     `gcfg:"ix2_bc"`
		OX2BC      int     `gcfg:"ox2_bc"`
		IX3BC      int     `gcfg:"ix3_bc"`
		OX3BC      int     `gcfg:"ox3_bc"`
		Refinement string  `gcfg:"refinement"`
		NumLevel   int     `gcfg:"numlevel"`
		NumThreads int     `gcfg:"num_threads"`
	}
	Meshblock struct {
		NX1 int `gcfg:"nx1"`
		NX2 int `gcfg:"nx2"`
		NX3 int `gcfg:"nx3"`
	}
	Refinement map[string]*Region
}

// Region is one [refinement "N"] subsection.
type Region struct {
	X1Min float64 `gcfg:"x1min"`
	X1Max float64 `gcfg:"x1max"`
	X2Min float64 `gcfg:"x2min"`
	X2Max float64 `gcfg:"x2max"`
	X3Min float64 `gcfg:"x3min"`
	X3Max float64 `gcfg:"x3max"`
	Level int     `gcfg:"level"`
}

func defaults() *Input {
	in := &Input{}
	in.Time.NLim = -1
	in.Mesh.X1Rat = 1.0
	in.Mesh.X2Rat = 1.0
	in.Mesh.X3Rat = 1.0
	in.Mesh.Refinement = "static"
	in.Mesh.NumLevel = 1
	in.Mesh.NumThreads = 1
	return in
}

// Load parses an input stream.
func Load(r io.Reader) (*Input, error) {
	in := defaults()
	if err := gcfg.ReadInto(in, r); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return in, nil
}

// LoadFile parses an input file.
func LoadFile(path string) (*Input, error) {
	in := defaults()
	if err := gcfg.ReadFileInto(in, path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return in, nil
}

// Parameters converts the raw input into the mesh parameter set.
// Refinement regions are applied in subsection-name order, numeric names
// first.
func (in *Input) Parameters() *mesh.Parameters {
	par := &mesh.Parameters{
		StartTime: in.Time.StartTime,
		TLim:      in.Time.TLim,
		CFL:       in.Time.CFLNumber,
		NLim:      in.Time.NLim,

		NumThreads: in.Mesh.NumThreads,

		MeshSize: mesh.RegionSize{
			X1Min: in.Mesh.X1Min, X1Max: in.Mesh.X1Max,
			X2Min: in.Mesh.X2Min, X2Max: in.Mesh.X2Max,
			X3Min: in.Mesh.X3Min, X3Max: in.Mesh.X3Max,
			X1Rat: in.Mesh.X1Rat, X2Rat: in.Mesh.X2Rat, X3Rat: in.Mesh.X3Rat,
			NX1: in.Mesh.NX1, NX2: in.Mesh.NX2, NX3: in.Mesh.NX3,
		},
		MeshBCs: [6]int{
			in.Mesh.IX1BC, in.Mesh.OX1BC,
			in.Mesh.IX2BC, in.Mesh.OX2BC,
			in.Mesh.IX3BC, in.Mesh.OX3BC,
		},

		BlockNX1: in.Meshblock.NX1,
		BlockNX2: in.Meshblock.NX2,
		BlockNX3: in.Meshblock.NX3,

		Refinement: in.Mesh.Refinement,
		NumLevel:   in.Mesh.NumLevel,
	}

	names := make([]string, 0, len(in.Refinement))
	for name := range in.Refinement {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		na, ea := strconv.Atoi(names[a])
		nb, eb := strconv.Atoi(names[b])
		if ea == nil && eb == nil {
			return na < nb
		}
		return names[a] < names[b]
	})
	for _, name := range names {
		reg := in.Refinement[name]
		par.Regions = append(par.Regions, mesh.RefinementRegion{
			X1Min: reg.X1Min, X1Max: reg.X1Max,
			X2Min: reg.X2Min, X2Max: reg.X2Max,
			X3Min: reg.X3Min, X3Max: reg.X3Max,
			Level: reg.Level,
		})
	}
	return par
}
