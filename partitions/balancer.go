package partitions

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Strategy selects how blocks are grouped onto ranks.
type Strategy int

const (
	// CostGreedy is the production policy: a greedy running sum against the
	// per-rank cost target, assigned from the high-id end downward so that
	// rank 0 receives the residue. The master rank does extra bookkeeping,
	// so it gets the lighter load.
	CostGreedy Strategy = iota

	// Block assigns consecutive equal-sized id ranges, ignoring costs.
	Block

	// RoundRobin is unsupported for mesh layouts: it breaks the contiguous
	// id invariant. It exists for the balancer tests only.
	RoundRobin
)

// Balancer partitions blocks onto ranks by cost.
type Balancer struct {
	NumRanks int
	Strategy Strategy

	// Adaptive suppresses the uneven-count warning; an adaptive mesh
	// changes its block count every cycle anyway.
	Adaptive bool
}

// ErrEmptyRank is wrapped by Balance when a rank would receive no blocks.
var ErrEmptyRank = fmt.Errorf("at least one rank has no block")

// Balance assigns the blocks described by cost to ranks and returns the
// layout. It fails when any rank would be left without a block; decrease
// the number of ranks or use smaller blocks.
func (b *Balancer) Balance(cost []float64) (*Layout, error) {
	nb := len(cost)
	l := &Layout{
		Ranklist:    make([]int, nb),
		Nslist:      make([]int, b.NumRanks),
		Nblist:      make([]int, b.NumRanks),
		NumRanks:    b.NumRanks,
		TotalBlocks: nb,
	}
	if nb < b.NumRanks {
		return nil, fmt.Errorf("too few blocks: %d blocks < %d ranks: %w", nb, b.NumRanks, ErrEmptyRank)
	}

	switch b.Strategy {
	case Block:
		per := (nb + b.NumRanks - 1) / b.NumRanks
		for i := 0; i < nb; i++ {
			r := i / per
			if r >= b.NumRanks {
				r = b.NumRanks - 1
			}
			l.Ranklist[i] = r
		}
	case RoundRobin:
		for i := 0; i < nb; i++ {
			l.Ranklist[i] = i % b.NumRanks
		}
	default:
		if err := b.costGreedy(cost, l.Ranklist); err != nil {
			return nil, err
		}
	}

	if b.Strategy != RoundRobin {
		compact(l)
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("invalid balance: %w", err)
		}
	}

	mincost := floats.Min(cost)
	maxcost := floats.Max(cost)
	if nb%b.NumRanks != 0 && !b.Adaptive && maxcost == mincost {
		l.Uneven = true
	}
	return l, nil
}

// costGreedy walks the cost list from the last block toward the first,
// filling the highest rank to its target before moving down.
func (b *Balancer) costGreedy(cost []float64, ranklist []int) error {
	totalcost := floats.Sum(cost)
	j := b.NumRanks - 1
	targetcost := totalcost / float64(b.NumRanks)
	mycost := 0.0
	for i := len(cost) - 1; i >= 0; i-- {
		if targetcost == 0.0 {
			return fmt.Errorf("cost exhausted before rank 0: %w", ErrEmptyRank)
		}
		mycost += cost[i]
		ranklist[i] = j
		if mycost >= targetcost && j > 0 {
			j--
			totalcost -= mycost
			mycost = 0.0
			targetcost = totalcost / float64(j+1)
		}
	}
	return nil
}

// compact derives the contiguous (start, count) views from the rank list.
func compact(l *Layout) {
	l.Nslist[0] = 0
	j := 0
	for i := 1; i < l.TotalBlocks; i++ {
		if l.Ranklist[i] != l.Ranklist[i-1] {
			l.Nblist[j] = i - l.Nslist[j]
			j++
			l.Nslist[j] = i
		}
	}
	l.Nblist[j] = l.TotalBlocks - l.Nslist[j]
}
