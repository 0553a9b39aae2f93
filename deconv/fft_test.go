// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/curioloop/deconv/vector"
)

func randomData(rng *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}

// hermitian reports whether z is the transform of a real array.
func hermitian(shape []int, z []complex128, tol float64) bool {
	idx := make([]int, len(shape))
	for _, v := range z {
		j, stride := 0, 1
		for k, n := range shape {
			j += ((n - idx[k]) % n) * stride
			stride *= n
		}
		if cmplx.Abs(v-cmplx.Conj(z[j])) > tol {
			return false
		}
		for k := range idx {
			if idx[k]++; idx[k] < shape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return true
}

func TestFFTRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for _, shape := range [][]int{{16}, {16, 8}, {8, 1, 4}, {1}} {
		f, err := newFFTN(shape)
		if err != nil {
			t.Fatal("plan failed", shape, err)
		}
		x := randomData(rng, f.size)
		z := make([]complex128, f.size)
		if err = f.forwardReal(z, x); err != nil {
			t.Fatal(err)
		}
		if !hermitian(shape, z, 1e-10) {
			t.Fatal("spectrum of real array is not hermitian", shape)
		}
		y := make([]float64, f.size)
		if err = f.inverseReal(y, z); err != nil {
			t.Fatal(err)
		}
		for i := range x {
			if math.Abs(x[i]-y[i]) > 1e-12 {
				t.Fatalf("round trip mismatch %v at %d: %g != %g", shape, i, y[i], x[i])
			}
		}
	}
}

func TestFFTDC(t *testing.T) {
	f, err := newFFTN([]int{4, 8})
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 32)
	for i := range x {
		x[i] = 1
	}
	z := make([]complex128, 32)
	if err = f.forwardReal(z, x); err != nil {
		t.Fatal(err)
	}
	if cmplx.Abs(z[0]-32) > 1e-12 {
		t.Fatal("unexpected DC term", z[0])
	}
	for i := 1; i < len(z); i++ {
		if cmplx.Abs(z[i]) > 1e-12 {
			t.Fatal("unexpected non-DC term", i, z[i])
		}
	}
}

func TestFFTBadShape(t *testing.T) {
	if _, err := newFFTN([]int{4, 0}); err == nil {
		t.Fatal("expected shape error")
	}
}

func circularConvolve(x, h []float64) []float64 {
	n := len(x)
	y := make([]float64, n)
	for i := range y {
		for j, hj := range h {
			y[i] += hj * x[((i-j)%n+n)%n]
		}
	}
	return y
}

func TestConvolution(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 0))
	const n = 16
	sp := vector.NewSpace(n)
	psf := make([]float64, n)
	psf[0], psf[1], psf[2], psf[n-1] = 0.5, 0.2, 0.1, 0.2

	conv, err := NewConvolution(sp, psf)
	if err != nil {
		t.Fatal(err)
	}

	x := sp.Wrap(randomData(rng, n))
	y := sp.Wrap(randomData(rng, n))
	hx, hty := sp.Create(), sp.Create()
	if err = conv.Apply(hx, x, vector.Direct); err != nil {
		t.Fatal(err)
	}
	want := circularConvolve(x.Data(), psf)
	for i := range want {
		if math.Abs(hx.At(i)-want[i]) > 1e-12 {
			t.Fatalf("direct mismatch at %d: %g != %g", i, hx.At(i), want[i])
		}
	}

	if err = conv.Apply(hty, y, vector.Adjoint); err != nil {
		t.Fatal(err)
	}
	if l, r := sp.Dot(hx, y), sp.Dot(x, hty); math.Abs(l-r) > 1e-10 {
		t.Fatal("adjoint test failed", l, r)
	}

	// H⁻¹·H·x = x, in place
	if err = conv.Apply(hx, hx, vector.Inverse); err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if math.Abs(hx.At(i)-x.At(i)) > 1e-10 {
			t.Fatal("inverse mismatch", i)
		}
	}

	if err = conv.Apply(hx, x, vector.Job(9)); err == nil {
		t.Fatal("expected bad job")
	}

	// Moving average of even length has a zero at the Nyquist frequency.
	box := make([]float64, n)
	box[0], box[1] = 0.5, 0.5
	conv, err = NewConvolution(sp, box)
	if err != nil {
		t.Fatal(err)
	}
	if err = conv.Apply(hx, x, vector.Inverse); err == nil {
		t.Fatal("expected singular convolution")
	}

	if _, err = NewConvolution(sp, psf[:3]); err == nil {
		t.Fatal("expected PSF size error")
	}
}

func TestRegularizer(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 0))
	sp := vector.NewSpace(8, 4)
	reg, err := NewRegularizer(sp)
	if err != nil {
		t.Fatal(err)
	}

	q := reg.Spectrum()
	c := 4 * math.Pi * math.Pi
	for _, tc := range []struct {
		i0, i1 int
		want   float64
	}{
		{0, 0, 0},
		{1, 0, c / 64},
		{7, 0, c / 64},
		{4, 0, c / 4},
		{0, 1, c / 16},
		{3, 3, c * (9.0/64 + 1.0/16)},
	} {
		if got := q[tc.i0+8*tc.i1]; math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("q(%d,%d) = %g, want %g", tc.i0, tc.i1, got, tc.want)
		}
	}

	one, qx := sp.Create(), sp.Create()
	sp.Fill(one, 1)
	if err = reg.Apply(qx, one, vector.Direct); err != nil {
		t.Fatal(err)
	}
	if sp.NormInf(qx) > 1e-12 {
		t.Fatal("constant is not in the null space")
	}

	x, y := sp.Wrap(randomData(rng, 32)), sp.Wrap(randomData(rng, 32))
	qy := sp.Create()
	_ = reg.Apply(qx, x, vector.Direct)
	_ = reg.Apply(qy, y, vector.Adjoint)
	if l, r := sp.Dot(qx, y), sp.Dot(x, qy); math.Abs(l-r) > 1e-9 {
		t.Fatal("Q is not symmetric", l, r)
	}
	if sp.Dot(x, qx) <= 0 {
		t.Fatal("Q is not positive")
	}
	if err = reg.Apply(qx, x, vector.Inverse); err == nil {
		t.Fatal("expected singular regularizer")
	}
}
