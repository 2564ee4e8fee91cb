package refinement

import (
	"math"
	"testing"

	"github.com/amitseta90/athena/array"
)

// newRefiner3D builds the geometry of a 4x4x4 block with 2 ghost cells and
// a half-resolution coarse buffer with 2 coarse ghosts.
func newRefiner3D() *Refiner {
	return &Refiner{
		Is: 2, Js: 2, Ks: 2,
		Cis: 2, Cjs: 2, Cks: 2,
		Nx2: true, Nx3: true,
		Dx1: 0.25, Dx2: 0.25, Dx3: 0.25,
	}
}

func newRefiner2D() *Refiner {
	return &Refiner{
		Is: 2, Js: 2, Ks: 0,
		Cis: 2, Cjs: 2, Cks: 0,
		Nx2: true, Nx3: false,
		Dx1: 0.25, Dx2: 0.25, Dx3: 1.0,
	}
}

// pseudo-random but deterministic cell data
func cellValue(n, k, j, i int) float64 {
	return math.Sin(float64(n+1)*0.7+float64(i)*1.3+float64(j)*2.1+float64(k)*0.9) + 2.0
}

func TestProlongThenRestrictIsIdentity(t *testing.T) {
	r := newRefiner3D()
	coarse := array.NewArray4(2, 6, 6, 6)
	fine := array.NewArray4(2, 8, 8, 8)
	back := array.NewArray4(2, 6, 6, 6)

	for n := 0; n < 2; n++ {
		for k := 0; k < 6; k++ {
			for j := 0; j < 6; j++ {
				for i := 0; i < 6; i++ {
					coarse.Set(n, k, j, i, cellValue(n, k, j, i))
				}
			}
		}
	}

	r.ProlongateCellCentered(coarse, fine, 0, 1, r.Cis, r.Cis+1, r.Cjs, r.Cjs+1, r.Cks, r.Cks+1)
	r.RestrictCellCentered(fine, back, 0, 1, r.Cis, r.Cis+1, r.Cjs, r.Cjs+1, r.Cks, r.Cks+1)

	for n := 0; n < 2; n++ {
		for k := r.Cks; k <= r.Cks+1; k++ {
			for j := r.Cjs; j <= r.Cjs+1; j++ {
				for i := r.Cis; i <= r.Cis+1; i++ {
					want := coarse.At(n, k, j, i)
					got := back.At(n, k, j, i)
					if math.Abs(got-want) > 1e-13 {
						t.Fatalf("restrict(prolong) at (%d,%d,%d,%d): got %g, want %g", n, k, j, i, got, want)
					}
				}
			}
		}
	}
}

func TestRestrictConservesVolumeSum(t *testing.T) {
	r := newRefiner3D()
	fine := array.NewArray4(1, 8, 8, 8)
	coarse := array.NewArray4(1, 6, 6, 6)
	for k := 0; k < 8; k++ {
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				fine.Set(0, k, j, i, cellValue(0, k, j, i))
			}
		}
	}
	r.RestrictCellCentered(fine, coarse, 0, 0, r.Cis, r.Cis+1, r.Cjs, r.Cjs+1, r.Cks, r.Cks+1)

	// eight fine cells carry the same total as their coarse cell
	fineSum := 0.0
	for k := r.Ks; k < r.Ks+4; k++ {
		for j := r.Js; j < r.Js+4; j++ {
			for i := r.Is; i < r.Is+4; i++ {
				fineSum += fine.At(0, k, j, i)
			}
		}
	}
	coarseSum := 0.0
	for k := r.Cks; k <= r.Cks+1; k++ {
		for j := r.Cjs; j <= r.Cjs+1; j++ {
			for i := r.Cis; i <= r.Cis+1; i++ {
				coarseSum += coarse.At(0, k, j, i) * 8 // each coarse cell is 8 fine volumes
			}
		}
	}
	if math.Abs(fineSum-coarseSum) > 1e-12 {
		t.Fatalf("volume sum not conserved: fine %g, coarse %g", fineSum, coarseSum)
	}
}

// edge-centered potential components for the divergence-free tests
func ax(k, j, i int) float64 { return math.Sin(1.1*float64(i) + 2.3*float64(j) + 0.7*float64(k)) }
func ay(k, j, i int) float64 { return math.Cos(0.9*float64(i) + 1.7*float64(j) + 1.3*float64(k)) }
func az(k, j, i int) float64 { return math.Sin(2.1*float64(i) + 0.5*float64(j) + 1.9*float64(k)) }

func TestDivergencePreservation2D(t *testing.T) {
	r := newRefiner2D()
	cb := array.FaceField{
		X1: array.NewArray3(1, 6, 7),
		X2: array.NewArray3(1, 7, 6),
		X3: array.NewArray3(2, 6, 6),
	}
	fb := array.NewFaceField(1, 8, 8)

	dxc, dyc := 2*r.Dx1, 2*r.Dx2
	// Bx = dAz/dy, By = -dAz/dx: discretely divergence free on every cell
	for j := 0; j < 6; j++ {
		for i := 0; i < 7; i++ {
			cb.X1.Set(0, j, i, (az(0, j+1, i)-az(0, j, i))/dyc)
		}
	}
	for j := 0; j < 7; j++ {
		for i := 0; i < 6; i++ {
			cb.X2.Set(0, j, i, -(az(0, j, i+1)-az(0, j, i))/dxc)
		}
	}

	is, ie := r.Cis-1, r.Cis+2 // active 2x2 plus the one-cell halo
	js, je := r.Cjs-1, r.Cjs+2
	r.ProlongateSharedFieldX1(cb.X1, fb.X1, is, ie+1, js, je, 0, 0)
	r.ProlongateSharedFieldX2(cb.X2, fb.X2, is, ie, js, je+1, 0, 0)
	r.ProlongateInternalField(fb, is, ie, js, je, 0, 0)

	for cj := js; cj <= je; cj++ {
		for ci := is; ci <= ie; ci++ {
			fi := (ci-r.Cis)*2 + r.Is
			fj := (cj-r.Cjs)*2 + r.Js
			for dj := 0; dj < 2; dj++ {
				for di := 0; di < 2; di++ {
					div := (fb.X1.At(0, fj+dj, fi+di+1)-fb.X1.At(0, fj+dj, fi+di))/r.Dx1 +
						(fb.X2.At(0, fj+dj+1, fi+di)-fb.X2.At(0, fj+dj, fi+di))/r.Dx2
					if math.Abs(div) > 1e-12 {
						t.Fatalf("fine divergence %g at coarse (%d,%d) sub (%d,%d)", div, cj, ci, dj, di)
					}
				}
			}
		}
	}
}

func TestDivergencePreservation3D(t *testing.T) {
	r := newRefiner3D()
	cb := array.FaceField{
		X1: array.NewArray3(6, 6, 7),
		X2: array.NewArray3(6, 7, 6),
		X3: array.NewArray3(7, 6, 6),
	}
	fb := array.NewFaceField(8, 8, 8)

	dxc, dyc, dzc := 2*r.Dx1, 2*r.Dx2, 2*r.Dx3
	// B = curl A on the staggered grid
	for k := 0; k < 6; k++ {
		for j := 0; j < 6; j++ {
			for i := 0; i < 7; i++ {
				cb.X1.Set(k, j, i, (az(k, j+1, i)-az(k, j, i))/dyc-(ay(k+1, j, i)-ay(k, j, i))/dzc)
			}
		}
	}
	for k := 0; k < 6; k++ {
		for j := 0; j < 7; j++ {
			for i := 0; i < 6; i++ {
				cb.X2.Set(k, j, i, (ax(k+1, j, i)-ax(k, j, i))/dzc-(az(k, j, i+1)-az(k, j, i))/dxc)
			}
		}
	}
	for k := 0; k < 7; k++ {
		for j := 0; j < 6; j++ {
			for i := 0; i < 6; i++ {
				cb.X3.Set(k, j, i, (ay(k, j, i+1)-ay(k, j, i))/dxc-(ax(k, j+1, i)-ax(k, j, i))/dyc)
			}
		}
	}

	is, ie := r.Cis-1, r.Cis+2
	js, je := r.Cjs-1, r.Cjs+2
	ks, ke := r.Cks-1, r.Cks+2
	r.ProlongateSharedFieldX1(cb.X1, fb.X1, is, ie+1, js, je, ks, ke)
	r.ProlongateSharedFieldX2(cb.X2, fb.X2, is, ie, js, je+1, ks, ke)
	r.ProlongateSharedFieldX3(cb.X3, fb.X3, is, ie, js, je, ks, ke+1)
	r.ProlongateInternalField(fb, is, ie, js, je, ks, ke)

	for ck := ks; ck <= ke; ck++ {
		for cj := js; cj <= je; cj++ {
			for ci := is; ci <= ie; ci++ {
				fi := (ci-r.Cis)*2 + r.Is
				fj := (cj-r.Cjs)*2 + r.Js
				fk := (ck-r.Cks)*2 + r.Ks
				for dk := 0; dk < 2; dk++ {
					for dj := 0; dj < 2; dj++ {
						for di := 0; di < 2; di++ {
							div := (fb.X1.At(fk+dk, fj+dj, fi+di+1)-fb.X1.At(fk+dk, fj+dj, fi+di))/r.Dx1 +
								(fb.X2.At(fk+dk, fj+dj+1, fi+di)-fb.X2.At(fk+dk, fj+dj, fi+di))/r.Dx2 +
								(fb.X3.At(fk+dk+1, fj+dj, fi+di)-fb.X3.At(fk+dk, fj+dj, fi+di))/r.Dx3
							if math.Abs(div) > 1e-10 {
								t.Fatalf("fine divergence %g at coarse (%d,%d,%d)", div, ck, cj, ci)
							}
						}
					}
				}
			}
		}
	}
}

func TestFaceRestrictInvertsSharedProlongation(t *testing.T) {
	r := newRefiner2D()
	cb := array.NewArray3(1, 6, 7)
	fbX1 := array.NewArray3(1, 8, 9)
	back := array.NewArray3(1, 6, 7)

	for j := 0; j < 6; j++ {
		for i := 0; i < 7; i++ {
			cb.Set(0, j, i, cellValue(0, 0, j, i))
		}
	}
	r.ProlongateSharedFieldX1(cb, fbX1, r.Cis, r.Cis+2, r.Cjs, r.Cjs+1, 0, 0)
	r.RestrictFieldX1(fbX1, back, r.Cis, r.Cis+2, r.Cjs, r.Cjs+1, 0, 0)

	for j := r.Cjs; j <= r.Cjs+1; j++ {
		for i := r.Cis; i <= r.Cis+2; i++ {
			if math.Abs(back.At(0, j, i)-cb.At(0, j, i)) > 1e-13 {
				t.Fatalf("face restriction does not invert shared prolongation at (%d,%d)", j, i)
			}
		}
	}
}
