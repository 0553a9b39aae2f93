// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vector

import (
	"errors"
	"fmt"
)

var (
	ErrNotInvertible = errors.New("vector: operator is not invertible")
	ErrBadJob        = errors.New("vector: unsupported job")
)

// Job selects which transform of a linear operator is applied.
type Job int

const (
	// Direct applies A.
	Direct Job = iota
	// Adjoint applies Aᵀ.
	Adjoint
	// Inverse applies A⁻¹.
	Inverse
	// InverseAdjoint applies A⁻ᵀ.
	InverseAdjoint
)

func (j Job) String() string {
	switch j {
	case Direct:
		return "direct"
	case Adjoint:
		return "adjoint"
	case Inverse:
		return "inverse"
	case InverseAdjoint:
		return "inverse adjoint"
	}
	return fmt.Sprintf("job(%d)", int(j))
}

// LinearOperator maps vectors of a space to vectors of the same space.
// Implementations must allow dst and src to be the same vector.
type LinearOperator interface {
	Apply(dst, src *Vector, job Job) error
}

// OperatorFunc adapts an ordinary function to a LinearOperator.
type OperatorFunc func(dst, src *Vector, job Job) error

func (f OperatorFunc) Apply(dst, src *Vector, job Job) error { return f(dst, src, job) }

// Identity is the identity operator.
type Identity struct{}

func (Identity) Apply(dst, src *Vector, job Job) error {
	if job < Direct || job > InverseAdjoint {
		return ErrBadJob
	}
	src.space.Copy(dst, src)
	return nil
}

// Diagonal is a diagonal operator, for instance a map of statistical weights.
type Diagonal struct {
	space *Space
	diag  *Vector
}

// NewDiagonal returns the operator x ↦ diag ⊙ x. The diagonal is not copied.
func NewDiagonal(space *Space, diag []float64) *Diagonal {
	return &Diagonal{space: space, diag: space.Wrap(diag)}
}

// Diag exposes the diagonal coefficients.
func (d *Diagonal) Diag() []float64 { return d.diag.data }

func (d *Diagonal) Apply(dst, src *Vector, job Job) error {
	switch job {
	case Direct, Adjoint:
		d.space.Multiply(dst, d.diag, src)
	case Inverse, InverseAdjoint:
		d.space.check(dst)
		d.space.check(src)
		w, x, y := d.diag.data, src.data, dst.data
		for i, wi := range w {
			if wi == 0 {
				return fmt.Errorf("%w: zero diagonal coefficient at %d", ErrNotInvertible, i)
			}
		}
		for i, wi := range w {
			y[i] = x[i] / wi
		}
	default:
		return ErrBadJob
	}
	return nil
}
