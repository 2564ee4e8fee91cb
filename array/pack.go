package array

// Buffer packing helpers. All index ranges are inclusive, matching the
// convention used throughout the mesh code. The position pointer p advances
// past the packed region so that successive calls append to the same buffer.

// Pack4D copies src[sn..en][sk..ek][sj..ej][si..ei] into buf starting at *p.
func Pack4D(src *Array4, buf []float64, sn, en, si, ei, sj, ej, sk, ek int, p *int) {
	q := *p
	for n := sn; n <= en; n++ {
		for k := sk; k <= ek; k++ {
			for j := sj; j <= ej; j++ {
				base := ((n*src.NK+k)*src.NJ + j) * src.NI
				q += copy(buf[q:], src.data[base+si:base+ei+1])
			}
		}
	}
	*p = q
}

// Unpack4D copies from buf starting at *p into dst over the given ranges.
func Unpack4D(buf []float64, dst *Array4, sn, en, si, ei, sj, ej, sk, ek int, p *int) {
	q := *p
	for n := sn; n <= en; n++ {
		for k := sk; k <= ek; k++ {
			for j := sj; j <= ej; j++ {
				base := ((n*dst.NK+k)*dst.NJ + j) * dst.NI
				q += copy(dst.data[base+si:base+ei+1], buf[q:])
			}
		}
	}
	*p = q
}

// Pack3D copies src[sk..ek][sj..ej][si..ei] into buf starting at *p.
func Pack3D(src *Array3, buf []float64, si, ei, sj, ej, sk, ek int, p *int) {
	q := *p
	for k := sk; k <= ek; k++ {
		for j := sj; j <= ej; j++ {
			base := (k*src.NJ + j) * src.NI
			q += copy(buf[q:], src.data[base+si:base+ei+1])
		}
	}
	*p = q
}

// Unpack3D copies from buf starting at *p into dst over the given ranges.
func Unpack3D(buf []float64, dst *Array3, si, ei, sj, ej, sk, ek int, p *int) {
	q := *p
	for k := sk; k <= ek; k++ {
		for j := sj; j <= ej; j++ {
			base := (k*dst.NJ + j) * dst.NI
			q += copy(dst.data[base+si:base+ei+1], buf[q:])
		}
	}
	*p = q
}
