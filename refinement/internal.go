package refinement

import (
	"gonum.org/v1/gonum/mat"

	"github.com/amitseta90/athena/array"
)

// ProlongateInternalField computes the fine faces interior to each coarse
// cell from the shared faces on its boundary. The internal faces solve the
// per-cell divergence system, so a divergence-free coarse field prolongates
// to a divergence-free fine field. A nonzero coarse divergence is spread
// evenly over the fine cells in 1D and 3D; in 2D it is carried entirely by
// the upper (+x, +y) fine cell.
//
// The shared-face pass must have run over the same coarse ranges first.
func (r *Refiner) ProlongateInternalField(b array.FaceField, csi, cei, csj, cej, csk, cek int) {
	for ck := csk; ck <= cek; ck++ {
		for cj := csj; cj <= cej; cj++ {
			for ci := csi; ci <= cei; ci++ {
				fi, fj, fk := r.fineIndex(ci, cj, ck)
				switch {
				case r.Nx3:
					r.internal3D(b, fi, fj, fk)
				case r.Nx2:
					r.internal2D(b, fi, fj, fk)
				default:
					// 1D: the single internal face carries the mean of the
					// two shared faces (equal when the field is
					// divergence-free).
					b.X1.Set(fk, fj, fi+1, 0.5*(b.X1.At(fk, fj, fi)+b.X1.At(fk, fj, fi+2)))
				}
			}
		}
	}
}

// internal2D solves the four fine-cell divergence relations for the four
// internal faces of one refined cell. The one free degree of freedom is
// fixed by linear transverse interpolation of the x2 mid-faces.
func (r *Refiner) internal2D(b array.FaceField, fi, fj, fk int) {
	ax, ay := 1.0/r.Dx1, 1.0/r.Dx2

	xl0, xl1 := b.X1.At(fk, fj, fi), b.X1.At(fk, fj+1, fi)
	xr0, _ := b.X1.At(fk, fj, fi+2), b.X1.At(fk, fj+1, fi+2)
	yb0, yb1 := b.X2.At(fk, fj, fi), b.X2.At(fk, fj, fi+1)
	yt0, yt1 := b.X2.At(fk, fj+2, fi), b.X2.At(fk, fj+2, fi+1)

	s := yb0 + yb1 - (ax/ay)*(xr0-xl0)
	d := 0.5 * ((yb0 + yt0) - (yb1 + yt1))
	ym0 := 0.5 * (s + d)
	ym1 := 0.5 * (s - d)
	xm0 := xl0 - (ay/ax)*(ym0-yb0)
	xm1 := xl1 - (ay/ax)*(yt0-ym0)

	b.X2.Set(fk, fj+1, fi, ym0)
	b.X2.Set(fk, fj+1, fi+1, ym1)
	b.X1.Set(fk, fj, fi+1, xm0)
	b.X1.Set(fk, fj+1, fi+1, xm1)
}

// internal3D solves the eight-cell divergence system for the twelve
// internal faces of one refined cell: the averaged-face guess is corrected
// by the least-norm update satisfying the constraints, obtained from the
// cell-adjacency normal equations (one redundant row dropped).
func (r *Refiner) internal3D(b array.FaceField, fi, fj, fk int) {
	ax, ay, az := 1.0/r.Dx1, 1.0/r.Dx2, 1.0/r.Dx3

	// Boundary fine faces, indexed by the transverse cell offsets.
	var xl, xr [2][2]float64 // [j][k]
	var yl, yr [2][2]float64 // [i][k]
	var zl, zr [2][2]float64 // [i][j]
	for a := 0; a < 2; a++ {
		for c := 0; c < 2; c++ {
			xl[a][c] = b.X1.At(fk+c, fj+a, fi)
			xr[a][c] = b.X1.At(fk+c, fj+a, fi+2)
			yl[a][c] = b.X2.At(fk+c, fj, fi+a)
			yr[a][c] = b.X2.At(fk+c, fj+2, fi+a)
			zl[a][c] = b.X3.At(fk, fj+c, fi+a)
			zr[a][c] = b.X3.At(fk+2, fj+c, fi+a)
		}
	}

	// Averaged-face prior for the internal unknowns.
	var xm, ym, zm [2][2]float64
	for a := 0; a < 2; a++ {
		for c := 0; c < 2; c++ {
			xm[a][c] = 0.5 * (xl[a][c] + xr[a][c])
			ym[a][c] = 0.5 * (yl[a][c] + yr[a][c])
			zm[a][c] = 0.5 * (zl[a][c] + zr[a][c])
		}
	}

	// Residual divergence of each fine cell under the prior.
	div := func(i, j, k int) float64 {
		var xlo, xhi, ylo, yhi, zlo, zhi float64
		if i == 0 {
			xlo, xhi = xl[j][k], xm[j][k]
		} else {
			xlo, xhi = xm[j][k], xr[j][k]
		}
		if j == 0 {
			ylo, yhi = yl[i][k], ym[i][k]
		} else {
			ylo, yhi = ym[i][k], yr[i][k]
		}
		if k == 0 {
			zlo, zhi = zl[i][j], zm[i][j]
		} else {
			zlo, zhi = zm[i][j], zr[i][j]
		}
		return ax*(xhi-xlo) + ay*(yhi-ylo) + az*(zhi-zlo)
	}

	res := make([]float64, 8)
	mean := 0.0
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				res[i+2*j+4*k] = div(i, j, k)
				mean += res[i+2*j+4*k]
			}
		}
	}
	mean /= 8

	// Normal-equation matrix: the weighted adjacency Laplacian of the
	// 2x2x2 cell lattice. The system is rank 7; the last multiplier is
	// gauged to zero and the leading 7x7 block solved.
	ax2, ay2, az2 := ax*ax, ay*ay, az*az
	full := mat.NewDense(8, 8, nil)
	for c := 0; c < 8; c++ {
		full.Set(c, c, ax2+ay2+az2)
		full.Set(c, c^1, -ax2)
		full.Set(c, c^2, -ay2)
		full.Set(c, c^4, -az2)
	}
	a7 := mat.NewDense(7, 7, nil)
	for i := 0; i < 7; i++ {
		for j := 0; j < 7; j++ {
			a7.Set(i, j, full.At(i, j))
		}
	}
	rhs := mat.NewVecDense(7, nil)
	for i := 0; i < 7; i++ {
		rhs.SetVec(i, mean-res[i])
	}

	var lu mat.LU
	lu.Factorize(a7)
	lam := mat.NewVecDense(7, nil)
	if err := lu.SolveVecTo(lam, false, rhs); err != nil {
		// The leading block of the Laplacian is nonsingular; a failure
		// here means non-finite field data, which the caller propagates.
		return
	}
	l := make([]float64, 8)
	for i := 0; i < 7; i++ {
		l[i] = lam.AtVec(i)
	}

	// Apply the correction u += C^T lambda.
	for a := 0; a < 2; a++ {
		for c := 0; c < 2; c++ {
			xm[a][c] += ax * (l[0+2*a+4*c] - l[1+2*a+4*c])
			ym[a][c] += ay * (l[a+0+4*c] - l[a+2+4*c])
			zm[a][c] += az * (l[a+2*c+0] - l[a+2*c+4])
		}
	}

	for a := 0; a < 2; a++ {
		for c := 0; c < 2; c++ {
			b.X1.Set(fk+c, fj+a, fi+1, xm[a][c])
			b.X2.Set(fk+c, fj+1, fi+a, ym[a][c])
			b.X3.Set(fk+1, fj+c, fi+a, zm[a][c])
		}
	}
}
