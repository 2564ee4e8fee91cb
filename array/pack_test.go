package array

import "testing"

func TestPackUnpack4D(t *testing.T) {
	src := NewArray4(2, 4, 4, 4)
	for i := range src.Data() {
		src.Data()[i] = float64(i)
	}

	buf := make([]float64, 2*2*2*2)
	p := 0
	Pack4D(src, buf, 0, 1, 1, 2, 1, 2, 0, 0, &p)
	if p != 8 {
		t.Fatalf("packed %d values, want 8", p)
	}

	dst := NewArray4(2, 4, 4, 4)
	p = 0
	Unpack4D(buf, dst, 0, 1, 1, 2, 1, 2, 0, 0, &p)
	for n := 0; n < 2; n++ {
		for j := 1; j <= 2; j++ {
			for i := 1; i <= 2; i++ {
				if dst.At(n, 0, j, i) != src.At(n, 0, j, i) {
					t.Fatalf("mismatch at (%d,0,%d,%d)", n, j, i)
				}
			}
		}
	}
	// untouched cells stay zero
	if dst.At(0, 0, 0, 0) != 0 {
		t.Fatal("unpack wrote outside its range")
	}
}

func TestPackUnpack3DAppends(t *testing.T) {
	a := NewArray3(2, 3, 3)
	b := NewArray3(2, 3, 3)
	for i := range a.Data() {
		a.Data()[i] = float64(i + 1)
		b.Data()[i] = -float64(i + 1)
	}
	buf := make([]float64, 2*a.Size())
	p := 0
	Pack3D(a, buf, 0, 2, 0, 2, 0, 1, &p)
	Pack3D(b, buf, 0, 2, 0, 2, 0, 1, &p)
	if p != 2*a.Size() {
		t.Fatalf("position %d, want %d", p, 2*a.Size())
	}

	c := NewArray3(2, 3, 3)
	d := NewArray3(2, 3, 3)
	p = 0
	Unpack3D(buf, c, 0, 2, 0, 2, 0, 1, &p)
	Unpack3D(buf, d, 0, 2, 0, 2, 0, 1, &p)
	for i := range a.Data() {
		if c.Data()[i] != a.Data()[i] || d.Data()[i] != b.Data()[i] {
			t.Fatalf("append round trip failed at %d", i)
		}
	}
}

func TestFaceFieldDims(t *testing.T) {
	f := NewFaceField(4, 5, 6)
	if f.X1.NI != 7 || f.X2.NJ != 6 || f.X3.NK != 5 {
		t.Fatalf("face dims wrong: %d %d %d", f.X1.NI, f.X2.NJ, f.X3.NK)
	}
	if f.Size() != 4*5*7+4*6*6+5*5*6 {
		t.Fatalf("Size = %d", f.Size())
	}
}
