// Package array provides the flat-backed real arrays used for block field
// storage: cell-centered 4D arrays (variable, k, j, i) and face-centered 3D
// arrays, plus the pack/unpack helpers used to move sub-volumes through
// communication buffers.
package array

// Array3 is a dense 3D array of reals with the i index fastest.
type Array3 struct {
	NK, NJ, NI int
	data       []float64
}

// Array4 is a dense 4D array of reals; the leading index selects the
// variable, the trailing index is fastest.
type Array4 struct {
	NN, NK, NJ, NI int
	data           []float64
}

func NewArray3(nk, nj, ni int) *Array3 {
	return &Array3{NK: nk, NJ: nj, NI: ni, data: make([]float64, nk*nj*ni)}
}

func NewArray4(nn, nk, nj, ni int) *Array4 {
	return &Array4{NN: nn, NK: nk, NJ: nj, NI: ni, data: make([]float64, nn*nk*nj*ni)}
}

func (a *Array3) At(k, j, i int) float64 { return a.data[(k*a.NJ+j)*a.NI+i] }

func (a *Array3) Set(k, j, i int, v float64) { a.data[(k*a.NJ+j)*a.NI+i] = v }

func (a *Array3) Add(k, j, i int, v float64) { a.data[(k*a.NJ+j)*a.NI+i] += v }

func (a *Array4) At(n, k, j, i int) float64 { return a.data[((n*a.NK+k)*a.NJ+j)*a.NI+i] }

func (a *Array4) Set(n, k, j, i int, v float64) {
	a.data[((n*a.NK+k)*a.NJ+j)*a.NI+i] = v
}

// Data exposes the flat backing slice; the layout is the natural row-major
// order of the index tuple. Restart I/O depends on this layout being stable.
func (a *Array3) Data() []float64 { return a.data }
func (a *Array4) Data() []float64 { return a.data }

// Size returns the number of stored reals.
func (a *Array3) Size() int { return len(a.data) }
func (a *Array4) Size() int { return len(a.data) }

// Fill sets every element to v.
func (a *Array3) Fill(v float64) {
	for i := range a.data {
		a.data[i] = v
	}
}

func (a *Array4) Fill(v float64) {
	for i := range a.data {
		a.data[i] = v
	}
}

// CopyFrom copies the contents of src, which must have identical dimensions.
func (a *Array4) CopyFrom(src *Array4) {
	copy(a.data, src.data)
}

func (a *Array3) CopyFrom(src *Array3) {
	copy(a.data, src.data)
}

// FaceField bundles the three face-centered components of a vector field.
// X1 faces carry one extra plane along i, X2 along j, X3 along k.
type FaceField struct {
	X1, X2, X3 *Array3
}

// NewFaceField allocates face arrays for an (nk, nj, ni) cell volume.
func NewFaceField(nk, nj, ni int) FaceField {
	return FaceField{
		X1: NewArray3(nk, nj, ni+1),
		X2: NewArray3(nk, nj+1, ni),
		X3: NewArray3(nk+1, nj, ni),
	}
}

// Size returns the total number of stored reals across all three components.
func (f FaceField) Size() int {
	return f.X1.Size() + f.X2.Size() + f.X3.Size()
}
