// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// fftn computes multi-dimensional discrete Fourier transforms of arrays
// stored with the first dimension varying fastest, one axis at a time.
// The inverse transform is normalized so that inverse(forward(x)) = x.
type fftn struct {
	shape []int
	size  int
	plans []*algofft.Plan[complex128] // nil for axes of length 1
	scale float64
	line  []complex128
	work  []complex128
}

func newFFTN(shape []int) (*fftn, error) {
	size, maxLen := 1, 1
	for _, n := range shape {
		if n <= 0 {
			return nil, fmt.Errorf("deconv: invalid dimension %d in shape %v", n, shape)
		}
		size *= n
		maxLen = max(maxLen, n)
	}

	f := &fftn{
		shape: append([]int(nil), shape...),
		size:  size,
		plans: make([]*algofft.Plan[complex128], len(shape)),
		scale: 1,
		line:  make([]complex128, maxLen),
		work:  make([]complex128, maxLen),
	}

	for k, n := range shape {
		if n == 1 {
			continue
		}
		plan, err := algofft.NewPlan64(n)
		if err != nil {
			return nil, fmt.Errorf("deconv: failed to create FFT plan of length %d: %w", n, err)
		}
		f.plans[k] = plan

		// Calibrate the round trip of a unit impulse.
		line, work := f.line[:n], f.work[:n]
		clear(line)
		line[0] = 1
		if err = plan.Forward(work, line); err != nil {
			return nil, err
		}
		if err = plan.Inverse(line, work); err != nil {
			return nil, err
		}
		c := real(line[0])
		if !(c > 0) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("deconv: degenerate FFT round trip of length %d", n)
		}
		f.scale /= c
	}

	return f, nil
}

// transform applies the forward or the unnormalized inverse transform in place.
func (f *fftn) transform(z []complex128, inverse bool) error {
	if len(z) != f.size {
		panic("bound check error")
	}
	stride := 1
	for k, n := range f.shape {
		plan := f.plans[k]
		if plan == nil {
			stride *= n
			continue
		}
		line, work := f.line[:n], f.work[:n]
		for base := 0; base < f.size; base += stride * n {
			for inner := 0; inner < stride; inner++ {
				off := base + inner
				for j := range line {
					line[j] = z[off+j*stride]
				}
				var err error
				if inverse {
					err = plan.Inverse(work, line)
				} else {
					err = plan.Forward(work, line)
				}
				if err != nil {
					return err
				}
				for j, v := range work {
					z[off+j*stride] = v
				}
			}
		}
		stride *= n
	}
	return nil
}

// forwardReal stores the transform of the real array x into z.
func (f *fftn) forwardReal(z []complex128, x []float64) error {
	if len(x) != len(z) {
		panic("bound check error")
	}
	for i, v := range x {
		z[i] = complex(v, 0)
	}
	return f.transform(z, false)
}

// inverseReal stores the real part of the inverse transform of z into x.
// The content of z is destroyed.
func (f *fftn) inverseReal(x []float64, z []complex128) error {
	if len(x) != len(z) {
		panic("bound check error")
	}
	if err := f.transform(z, true); err != nil {
		return err
	}
	s := f.scale
	for i, v := range z {
		x[i] = s * real(v)
	}
	return nil
}

// frequencies returns the signed frequency indices of an axis of length n.
func frequencies(n int) []float64 {
	freq := make([]float64, n)
	for i := range freq {
		if i <= n/2 {
			freq[i] = float64(i)
		} else {
			freq[i] = float64(i - n)
		}
	}
	return freq
}
