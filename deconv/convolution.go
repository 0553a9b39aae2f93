// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/curioloop/deconv/vector"
)

var epsilon = math.Nextafter(1, 2) - 1

// Convolution is the circulant convolution by a point spread function,
// diagonalized by the discrete Fourier transform.
type Convolution struct {
	space    *vector.Space
	fft      *fftn
	mtf      []complex128
	singular bool
	z        []complex128
}

// NewConvolution returns the convolution by psf over arrays of the space.
// The psf has the shape of the space and its origin at index 0,
// negative offsets wrapping around.
func NewConvolution(space *vector.Space, psf []float64) (*Convolution, error) {
	if len(psf) != space.Size() {
		return nil, fmt.Errorf("deconv: PSF has %d entries, expected %d", len(psf), space.Size())
	}
	fft, err := newFFTN(space.Shape())
	if err != nil {
		return nil, err
	}
	c := &Convolution{
		space: space,
		fft:   fft,
		mtf:   make([]complex128, space.Size()),
		z:     make([]complex128, space.Size()),
	}
	if err = fft.forwardReal(c.mtf, psf); err != nil {
		return nil, err
	}
	// Zeros of the transfer function up to rounding errors.
	top := 0.0
	for _, h := range c.mtf {
		top = max(top, cmplx.Abs(h))
	}
	tiny := 64 * epsilon * top
	for _, h := range c.mtf {
		if cmplx.Abs(h) <= tiny {
			c.singular = true
			break
		}
	}
	return c, nil
}

// Space returns the space of the operator.
func (c *Convolution) Space() *vector.Space { return c.space }

// MTF returns the transfer function, the transform of the PSF.
func (c *Convolution) MTF() []complex128 { return c.mtf }

func (c *Convolution) Apply(dst, src *vector.Vector, job vector.Job) error {
	if !c.space.Equal(dst.Space()) || !c.space.Equal(src.Space()) {
		panic("deconv: vector does not belong to the operator space")
	}
	switch job {
	case vector.Direct, vector.Adjoint:
	case vector.Inverse, vector.InverseAdjoint:
		if c.singular {
			return fmt.Errorf("%w: transfer function has zeros", vector.ErrNotInvertible)
		}
	default:
		return vector.ErrBadJob
	}

	z, h := c.z, c.mtf
	if err := c.fft.forwardReal(z, src.Data()); err != nil {
		return err
	}
	switch job {
	case vector.Direct:
		for i := range z {
			z[i] *= h[i]
		}
	case vector.Adjoint:
		for i := range z {
			z[i] *= cmplx.Conj(h[i])
		}
	case vector.Inverse:
		for i := range z {
			z[i] /= h[i]
		}
	case vector.InverseAdjoint:
		for i := range z {
			z[i] /= cmplx.Conj(h[i])
		}
	}
	return c.fft.inverseReal(dst.Data(), z)
}

// Regularizer is the isotropic quadratic smoothness operator Q, the
// negative discrete Laplacian in the frequency domain:
//
//	q(k) = 4π² Σⱼ (kⱼ/Nⱼ)²
//
// with signed frequencies kⱼ.
type Regularizer struct {
	space *vector.Space
	fft   *fftn
	q     []float64
	z     []complex128
}

// NewRegularizer returns the regularization operator over arrays of the space.
func NewRegularizer(space *vector.Space) (*Regularizer, error) {
	fft, err := newFFTN(space.Shape())
	if err != nil {
		return nil, err
	}
	return &Regularizer{
		space: space,
		fft:   fft,
		q:     isotropicSpectrum(space.Shape()),
		z:     make([]complex128, space.Size()),
	}, nil
}

// Spectrum returns the frequency-domain diagonal q.
func (r *Regularizer) Spectrum() []float64 { return r.q }

// Apply applies Q. The operator is symmetric and singular (q(0) = 0),
// only the direct and adjoint jobs are supported.
func (r *Regularizer) Apply(dst, src *vector.Vector, job vector.Job) error {
	if !r.space.Equal(dst.Space()) || !r.space.Equal(src.Space()) {
		panic("deconv: vector does not belong to the operator space")
	}
	switch job {
	case vector.Direct, vector.Adjoint:
	case vector.Inverse, vector.InverseAdjoint:
		return vector.ErrNotInvertible
	default:
		return vector.ErrBadJob
	}
	z := r.z
	if err := r.fft.forwardReal(z, src.Data()); err != nil {
		return err
	}
	for i, q := range r.q {
		z[i] *= complex(q, 0)
	}
	return r.fft.inverseReal(dst.Data(), z)
}

func isotropicSpectrum(shape []int) []float64 {
	size := 1
	for _, n := range shape {
		size *= n
	}
	q := make([]float64, size)
	stride := 1
	for _, n := range shape {
		freq := frequencies(n)
		for i := range q {
			u := freq[(i/stride)%n] / float64(n)
			q[i] += u * u
		}
		stride *= n
	}
	c := 4 * math.Pi * math.Pi
	for i := range q {
		q[i] *= c
	}
	return q
}
