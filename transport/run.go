package transport

import (
	"golang.org/x/sync/errgroup"
)

// Run executes fn once per rank of a fresh n-rank world, each rank on its
// own goroutine, and waits for all of them, returning the first error.
// Errors of the kind the mesh raises are deterministic and replicated, so
// every rank fails the same way rather than leaving peers blocked.
func Run(n int, fn func(*Comm) error) error {
	comms := NewWorld(n)
	var g errgroup.Group
	for _, c := range comms {
		c := c
		g.Go(func() error {
			return fn(c)
		})
	}
	return g.Wait()
}
