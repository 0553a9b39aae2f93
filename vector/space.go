// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vector provides the dense vector spaces and linear operators
// shared by the optimizers and the deconvolution solvers.
//
// Arrays of any rank are stored flat with the first dimension varying
// fastest:
//
//	index = i₀ + N₀×(i₁ + N₁×(i₂ + ...))
package vector

import (
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// Space is a vector space of real dense arrays with a fixed shape.
// A space is immutable and may be shared by any number of vectors.
type Space struct {
	shape []int
	size  int
}

// NewSpace creates a space for arrays of the given shape.
// A space without dimensions holds scalars.
// It panics if a dimension is not positive.
func NewSpace(shape ...int) *Space {
	size := 1
	for _, n := range shape {
		if n <= 0 {
			panic(fmt.Sprintf("vector: invalid dimension %d in shape %v", n, shape))
		}
		size *= n
	}
	return &Space{shape: slices.Clone(shape), size: size}
}

// Size returns the number of elements of the vectors of the space.
func (s *Space) Size() int { return s.size }

// Rank returns the number of dimensions.
func (s *Space) Rank() int { return len(s.shape) }

// Shape returns a copy of the dimensions.
func (s *Space) Shape() []int { return slices.Clone(s.shape) }

// Dim returns the length of the k-th dimension.
func (s *Space) Dim(k int) int { return s.shape[k] }

// Equal reports whether both spaces have the same shape.
func (s *Space) Equal(o *Space) bool {
	return s == o || (o != nil && slices.Equal(s.shape, o.shape))
}

// Create allocates a new zero-filled vector.
func (s *Space) Create() *Vector {
	return &Vector{space: s, data: make([]float64, s.size)}
}

// Wrap binds data to a vector of the space without copying.
func (s *Space) Wrap(data []float64) *Vector {
	if len(data) != s.size {
		panic(fmt.Sprintf("vector: cannot wrap %d values in a space of size %d", len(data), s.size))
	}
	return &Vector{space: s, data: data}
}

// Clone returns a new vector with the contents of v.
func (s *Space) Clone(v *Vector) *Vector {
	s.check(v)
	return &Vector{space: s, data: slices.Clone(v.data)}
}

// Copy copies src into dst.
func (s *Space) Copy(dst, src *Vector) {
	s.check(dst)
	s.check(src)
	if dst != src {
		copy(dst.data, src.data)
	}
}

// Fill sets all components of v to val.
func (s *Space) Fill(v *Vector, val float64) {
	s.check(v)
	for i := range v.data {
		v.data[i] = val
	}
}

// Zero sets all components of v to zero.
func (s *Space) Zero(v *Vector) { s.Fill(v, 0) }

// Dot returns the inner product xᵀy.
func (s *Space) Dot(x, y *Vector) float64 {
	s.check(x)
	s.check(y)
	return floats.Dot(x.data, y.data)
}

// Norm1 returns ‖x‖₁.
func (s *Space) Norm1(x *Vector) float64 {
	s.check(x)
	return floats.Norm(x.data, 1)
}

// Norm2 returns the Euclidean norm ‖x‖₂.
func (s *Space) Norm2(x *Vector) float64 {
	s.check(x)
	return floats.Norm(x.data, 2)
}

// NormInf returns ‖x‖∞.
func (s *Space) NormInf(x *Vector) float64 {
	s.check(x)
	return floats.Norm(x.data, math.Inf(1))
}

// Scale stores a·x into dst.
func (s *Space) Scale(dst *Vector, a float64, x *Vector) {
	s.check(dst)
	s.check(x)
	switch a {
	case 0:
		s.Zero(dst)
	case 1:
		s.Copy(dst, x)
	default:
		floats.ScaleTo(dst.data, a, x.data)
	}
}

// Axpby stores a·x + b·y into dst. Any of the operands may be the same vector.
func (s *Space) Axpby(dst *Vector, a float64, x *Vector, b float64, y *Vector) {
	s.check(dst)
	s.check(x)
	s.check(y)
	d, xd, yd := dst.data, x.data, y.data
	switch {
	case a == 0:
		s.Scale(dst, b, y)
	case b == 0:
		s.Scale(dst, a, x)
	case a == 1:
		floats.AddScaledTo(d, xd, b, yd)
	case b == 1:
		floats.AddScaledTo(d, yd, a, xd)
	default:
		for i := range d {
			d[i] = a*xd[i] + b*yd[i]
		}
	}
}

// Combine stores a·x + b·y + c·z into dst.
func (s *Space) Combine(dst *Vector, a float64, x *Vector, b float64, y *Vector, c float64, z *Vector) {
	if c == 0 {
		s.Axpby(dst, a, x, b, y)
		return
	}
	s.check(dst)
	s.check(x)
	s.check(y)
	s.check(z)
	d, xd, yd, zd := dst.data, x.data, y.data, z.data
	for i := range d {
		d[i] = a*xd[i] + b*yd[i] + c*zd[i]
	}
}

// Multiply stores the component-wise product of x and y into dst.
func (s *Space) Multiply(dst, x, y *Vector) {
	s.check(dst)
	s.check(x)
	s.check(y)
	switch {
	case dst == x:
		vecmath.MulBlockInPlace(dst.data, y.data)
	case dst == y:
		vecmath.MulBlockInPlace(dst.data, x.data)
	default:
		vecmath.MulBlock(dst.data, x.data, y.data)
	}
}

func (s *Space) check(v *Vector) {
	if v == nil || !s.Equal(v.space) {
		panic("vector: vector does not belong to this space")
	}
}

// Vector is a dense array of float64 bound to a Space.
type Vector struct {
	space *Space
	data  []float64
}

// Space returns the space the vector belongs to.
func (v *Vector) Space() *Space { return v.space }

// Data exposes the storage of the vector.
func (v *Vector) Data() []float64 { return v.data }

// Len returns the number of components.
func (v *Vector) Len() int { return len(v.data) }

// At returns the i-th component.
func (v *Vector) At(i int) float64 { return v.data[i] }

// Set assigns the i-th component.
func (v *Vector) Set(i int, val float64) { v.data[i] = val }
