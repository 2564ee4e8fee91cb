// meshtest builds the mesh for an input file without materializing block
// data and reports the resulting block layout and load balance. In 2D and
// 3D it also writes meshtest.dat, a polyline file of block corners for
// external plotting.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/amitseta90/athena/config"
	"github.com/amitseta90/athena/mesh"
	"github.com/amitseta90/athena/transport"
)

func main() {
	input := flag.String("i", "", "input file")
	nranks := flag.Int("m", 1, "number of ranks to test the balance for")
	datPath := flag.String("d", "meshtest.dat", "block corner output (2D/3D)")
	debug := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: meshtest -i <input file> [-m nranks]")
		os.Exit(2)
	}

	var logger *zap.Logger
	var err error
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	in, err := config.LoadFile(*input)
	if err != nil {
		logger.Fatal("reading input", zap.Error(err))
	}
	par := in.Parameters()

	err = transport.Run(1, func(c *transport.Comm) error {
		m, err := mesh.NewMesh(par, c, logger, *nranks)
		if err != nil {
			return err
		}
		var dat *os.File
		if m.Dim() >= 2 {
			dat, err = os.Create(*datPath)
			if err != nil {
				return err
			}
			defer dat.Close()
		}
		if dat != nil {
			m.MeshTest(os.Stdout, dat)
		} else {
			m.MeshTest(os.Stdout, nil)
		}
		return nil
	})
	if err != nil {
		logger.Fatal("mesh test failed", zap.Error(err))
	}
}
