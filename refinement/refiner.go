// Package refinement implements the data operators used across a one-level
// resolution jump: volume-weighted restriction and limited linear
// prolongation of cell-centered variables, area-weighted restriction of
// face-centered fields, and the two-phase divergence-preserving face
// prolongation (shared faces first, then the internal-face solve).
package refinement

import (
	"github.com/amitseta90/athena/array"
)

// Refiner carries the index geometry of one block: the active ranges of its
// fine grid and of its half-resolution coarse buffer. A fine index is
// derived from a coarse one by fi = (ci-Cis)*2 + Is; inactive dimensions
// map straight through.
type Refiner struct {
	Is, Js, Ks    int
	Cis, Cjs, Cks int
	Nx2, Nx3      bool // dimensions with more than one cell

	// Fine cell widths, used by the internal-field solve. Uniform within a
	// block; geometric stretching below the 10% cap is treated as uniform
	// here, consistent with the second-order operators.
	Dx1, Dx2, Dx3 float64
}

func minmod(a, b float64) float64 {
	if a > 0 && b > 0 {
		if a < b {
			return a
		}
		return b
	}
	if a < 0 && b < 0 {
		if a > b {
			return a
		}
		return b
	}
	return 0
}

// fineIndex maps a coarse cell index to the first of its fine cells.
func (r *Refiner) fineIndex(ci, cj, ck int) (fi, fj, fk int) {
	fi = (ci-r.Cis)*2 + r.Is
	fj, fk = cj, ck
	if r.Nx2 {
		fj = (cj-r.Cjs)*2 + r.Js
	}
	if r.Nx3 {
		fk = (ck-r.Cks)*2 + r.Ks
	}
	return
}

// RestrictCellCentered volume-averages fine cells into the coarse buffer
// over the inclusive coarse ranges, for variables sn..en.
func (r *Refiner) RestrictCellCentered(fine, coarse *array.Array4, sn, en, csi, cei, csj, cej, csk, cek int) {
	jr, kr := 0, 0
	if r.Nx2 {
		jr = 1
	}
	if r.Nx3 {
		kr = 1
	}
	w := 1.0 / float64((1+jr)*(1+kr)*2)
	for n := sn; n <= en; n++ {
		for ck := csk; ck <= cek; ck++ {
			for cj := csj; cj <= cej; cj++ {
				for ci := csi; ci <= cei; ci++ {
					fi, fj, fk := r.fineIndex(ci, cj, ck)
					sum := 0.0
					for dk := 0; dk <= kr; dk++ {
						for dj := 0; dj <= jr; dj++ {
							sum += fine.At(n, fk+dk, fj+dj, fi) + fine.At(n, fk+dk, fj+dj, fi+1)
						}
					}
					coarse.Set(n, ck, cj, ci, sum*w)
				}
			}
		}
	}
}

// ProlongateCellCentered reconstructs fine cells from the coarse buffer
// using minmod-limited linear slopes. The reconstruction preserves the mean
// over each coarse cell, so restriction inverts it exactly.
func (r *Refiner) ProlongateCellCentered(coarse, fine *array.Array4, sn, en, csi, cei, csj, cej, csk, cek int) {
	for n := sn; n <= en; n++ {
		for ck := csk; ck <= cek; ck++ {
			for cj := csj; cj <= cej; cj++ {
				for ci := csi; ci <= cei; ci++ {
					c := coarse.At(n, ck, cj, ci)
					dx := 0.5 * minmod(coarse.At(n, ck, cj, ci+1)-c, c-coarse.At(n, ck, cj, ci-1))
					dy, dz := 0.0, 0.0
					if r.Nx2 {
						dy = 0.5 * minmod(coarse.At(n, ck, cj+1, ci)-c, c-coarse.At(n, ck, cj-1, ci))
					}
					if r.Nx3 {
						dz = 0.5 * minmod(coarse.At(n, ck+1, cj, ci)-c, c-coarse.At(n, ck-1, cj, ci))
					}
					fi, fj, fk := r.fineIndex(ci, cj, ck)
					jr, kr := 0, 0
					if r.Nx2 {
						jr = 1
					}
					if r.Nx3 {
						kr = 1
					}
					for dk := 0; dk <= kr; dk++ {
						sz := dz * (float64(dk) - 0.5)
						if !r.Nx3 {
							sz = 0
						}
						for dj := 0; dj <= jr; dj++ {
							sy := dy * (float64(dj) - 0.5)
							if !r.Nx2 {
								sy = 0
							}
							fine.Set(n, fk+dk, fj+dj, fi, c-0.5*dx+sy+sz)
							fine.Set(n, fk+dk, fj+dj, fi+1, c+0.5*dx+sy+sz)
						}
					}
				}
			}
		}
	}
}

// RestrictFieldX1 area-averages fine x1 faces onto coarse x1 faces. The
// range indices address faces along i and cells along j, k; the sum of the
// fine faces making up one coarse face is conserved by construction.
func (r *Refiner) RestrictFieldX1(fine, coarse *array.Array3, csi, cei, csj, cej, csk, cek int) {
	jr, kr := 0, 0
	if r.Nx2 {
		jr = 1
	}
	if r.Nx3 {
		kr = 1
	}
	w := 1.0 / float64((1+jr)*(1+kr))
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				sum := 0.0
				for dk := 0; dk <= kr; dk++ {
					for dj := 0; dj <= jr; dj++ {
						sum += fine.At(fk+dk, fj+dj, fi)
					}
				}
				coarse.Set(ck, cj, ci, sum*w)
			}
		}
	}
}

// RestrictFieldX2 area-averages fine x2 faces onto coarse x2 faces; face
// index along j.
func (r *Refiner) RestrictFieldX2(fine, coarse *array.Array3, csi, cei, csj, cej, csk, cek int) {
	kr := 0
	if r.Nx3 {
		kr = 1
	}
	w := 1.0 / float64(2*(1+kr))
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				sum := 0.0
				for dk := 0; dk <= kr; dk++ {
					sum += fine.At(fk+dk, fj, fi) + fine.At(fk+dk, fj, fi+1)
				}
				coarse.Set(ck, cj, ci, sum*w)
			}
		}
	}
}

// RestrictFieldX3 area-averages fine x3 faces onto coarse x3 faces; face
// index along k.
func (r *Refiner) RestrictFieldX3(fine, coarse *array.Array3, csi, cei, csj, cej, csk, cek int) {
	jr := 0
	if r.Nx2 {
		jr = 1
	}
	w := 1.0 / float64(2*(1+jr))
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				sum := 0.0
				for dj := 0; dj <= jr; dj++ {
					sum += fine.At(fk, fj+dj, fi) + fine.At(fk, fj+dj, fi+1)
				}
				coarse.Set(ck, cj, ci, sum*w)
			}
		}
	}
}

// ProlongateSharedFieldX1 fills the fine x1 faces lying on coarse x1-face
// planes. Transverse slopes are limited; the mean over the fine faces of
// one coarse face equals the coarse value, so flux sums are preserved.
func (r *Refiner) ProlongateSharedFieldX1(coarse, fine *array.Array3, csi, cei, csj, cej, csk, cek int) {
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				c := coarse.At(ck, cj, ci)
				dy, dz := 0.0, 0.0
				if r.Nx2 {
					dy = 0.5 * minmod(coarse.At(ck, cj+1, ci)-c, c-coarse.At(ck, cj-1, ci))
				}
				if r.Nx3 {
					dz = 0.5 * minmod(coarse.At(ck+1, cj, ci)-c, c-coarse.At(ck-1, cj, ci))
				}
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				if r.Nx3 {
					fine.Set(fk, fj, fi, c-0.5*dy-0.5*dz)
					fine.Set(fk, fj+1, fi, c+0.5*dy-0.5*dz)
					fine.Set(fk+1, fj, fi, c-0.5*dy+0.5*dz)
					fine.Set(fk+1, fj+1, fi, c+0.5*dy+0.5*dz)
				} else if r.Nx2 {
					fine.Set(fk, fj, fi, c-0.5*dy)
					fine.Set(fk, fj+1, fi, c+0.5*dy)
				} else {
					fine.Set(fk, fj, fi, c)
				}
			}
		}
	}
}

// ProlongateSharedFieldX2 fills fine x2 faces on coarse x2-face planes.
func (r *Refiner) ProlongateSharedFieldX2(coarse, fine *array.Array3, csi, cei, csj, cej, csk, cek int) {
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				c := coarse.At(ck, cj, ci)
				dx := 0.5 * minmod(coarse.At(ck, cj, ci+1)-c, c-coarse.At(ck, cj, ci-1))
				dz := 0.0
				if r.Nx3 {
					dz = 0.5 * minmod(coarse.At(ck+1, cj, ci)-c, c-coarse.At(ck-1, cj, ci))
				}
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				if r.Nx3 {
					fine.Set(fk, fj, fi, c-0.5*dx-0.5*dz)
					fine.Set(fk, fj, fi+1, c+0.5*dx-0.5*dz)
					fine.Set(fk+1, fj, fi, c-0.5*dx+0.5*dz)
					fine.Set(fk+1, fj, fi+1, c+0.5*dx+0.5*dz)
				} else {
					fine.Set(fk, fj, fi, c-0.5*dx)
					fine.Set(fk, fj, fi+1, c+0.5*dx)
				}
			}
		}
	}
}

// ProlongateSharedFieldX3 fills fine x3 faces on coarse x3-face planes.
func (r *Refiner) ProlongateSharedFieldX3(coarse, fine *array.Array3, csi, cei, csj, cej, csk, cek int) {
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				c := coarse.At(ck, cj, ci)
				dx := 0.5 * minmod(coarse.At(ck, cj, ci+1)-c, c-coarse.At(ck, cj, ci-1))
				dy := 0.0
				if r.Nx2 {
					dy = 0.5 * minmod(coarse.At(ck, cj+1, ci)-c, c-coarse.At(ck, cj-1, ci))
				}
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				if r.Nx2 {
					fine.Set(fk, fj, fi, c-0.5*dx-0.5*dy)
					fine.Set(fk, fj, fi+1, c+0.5*dx-0.5*dy)
					fine.Set(fk, fj+1, fi, c-0.5*dx+0.5*dy)
					fine.Set(fk, fj+1, fi+1, c+0.5*dx+0.5*dy)
				} else {
					fine.Set(fk, fj, fi, c-0.5*dx)
					fine.Set(fk, fj, fi+1, c+0.5*dx)
				}
			}
		}
	}
}
