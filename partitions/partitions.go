// Package partitions assigns blocks to ranks. The layout keeps the three
// replicated rank-keyed views used everywhere else in the mesh: the
// per-block rank list and, per rank, the first owned block id and the count
// of owned blocks. Block ids owned by one rank are always contiguous.
package partitions

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Layout is the complete block-to-rank decomposition.
type Layout struct {
	// Ranklist holds, for every block id, the owning rank.
	Ranklist []int

	// Nslist holds, per rank, the first block id owned by that rank.
	Nslist []int

	// Nblist holds, per rank, the number of blocks owned by that rank.
	Nblist []int

	NumRanks    int
	TotalBlocks int

	// Uneven is set when the block count does not divide evenly over the
	// ranks under uniform costs. The caller decides whether to warn.
	Uneven bool
}

// Validate checks layout consistency: every rank owns at least one block,
// counts cover every block exactly once, and each rank's blocks are the
// contiguous id range starting at its Nslist entry.
func (l *Layout) Validate() error {
	if len(l.Nslist) != l.NumRanks || len(l.Nblist) != l.NumRanks {
		return fmt.Errorf("rank lists sized %d/%d, want %d",
			len(l.Nslist), len(l.Nblist), l.NumRanks)
	}
	total := 0
	for r := 0; r < l.NumRanks; r++ {
		if l.Nblist[r] < 1 {
			return fmt.Errorf("rank %d owns no blocks", r)
		}
		for i := l.Nslist[r]; i < l.Nslist[r]+l.Nblist[r]; i++ {
			if l.Ranklist[i] != r {
				return fmt.Errorf("block %d listed for rank %d but assigned to rank %d",
					i, r, l.Ranklist[i])
			}
		}
		total += l.Nblist[r]
	}
	if total != l.TotalBlocks {
		return fmt.Errorf("rank counts sum to %d, want %d blocks", total, l.TotalBlocks)
	}
	return nil
}

// Stats summarizes the cost balance of a layout.
type Stats struct {
	MinCost   float64
	MaxCost   float64
	AvgCost   float64
	TotalCost float64

	// Imbalance is the heaviest rank's cost over the average rank cost.
	Imbalance float64
}

// Statistics computes per-block cost extrema and the rank-level imbalance
// for the given cost list.
func (l *Layout) Statistics(cost []float64) Stats {
	s := Stats{
		MinCost:   floats.Min(cost),
		MaxCost:   floats.Max(cost),
		TotalCost: floats.Sum(cost),
	}
	s.AvgCost = s.TotalCost / float64(len(cost))

	rankCost := make([]float64, l.NumRanks)
	for i, r := range l.Ranklist {
		rankCost[r] += cost[i]
	}
	avgRank := s.TotalCost / float64(l.NumRanks)
	s.Imbalance = floats.Max(rankCost) / avgRank
	return s
}

// RankCost sums the cost assigned to rank r.
func (l *Layout) RankCost(cost []float64, r int) float64 {
	return floats.Sum(cost[l.Nslist[r] : l.Nslist[r]+l.Nblist[r]])
}
