// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vmlmb

import (
	"github.com/curioloop/deconv/vector"
)

type pair struct {
	s, y *vector.Vector // s = xₖ₊₁ - xₖ, y = gₖ₊₁ - gₖ
	rho  float64        // 1 / sᵀy
}

// LBFGS approximates the inverse Hessian from the last m curvature pairs.
//
// The pairs live in an arena of m slots used as a ring buffer: slot Mark() is
// the next one to be written, the newest pair sits just before it. A slot can
// be lent to hold the base point of a line search (see Lend), which lets an
// optimizer avoid allocating its own copies of x₀ and g₀.
type LBFGS struct {
	space *vector.Space
	slots []pair
	alpha []float64
	rho   []float64      // 1 / sᵀy restricted to the free variables, 0 when skipped
	tmp   *vector.Vector // scratch of applyFree
	mp    int            // number of stored pairs
	mark  int            // next slot to write
	lent  bool           // slot mark holds the base point of a line search
	gamma float64        // sᵀy / yᵀy of the newest pair
}

// NewLBFGS allocates an operator able to memorize m pairs of vectors of the space.
func NewLBFGS(space *vector.Space, m int) *LBFGS {
	if m <= 0 {
		panic("vmlmb: LBFGS memory must be positive")
	}
	op := &LBFGS{
		space: space,
		slots: make([]pair, m),
		alpha: make([]float64, m),
		rho:   make([]float64, m),
		gamma: 1,
	}
	for i := range op.slots {
		op.slots[i].s = space.Create()
		op.slots[i].y = space.Create()
	}
	return op
}

// Len returns the number of usable pairs. While the memory is full, the lent
// slot overlaps the oldest pair which then no longer counts.
func (op *LBFGS) Len() int {
	if op.lent && op.mp == len(op.slots) {
		return op.mp - 1
	}
	return op.mp
}

// Cap returns the maximum number of stored pairs.
func (op *LBFGS) Cap() int { return len(op.slots) }

// Mark returns the index of the slot written by the next update.
func (op *LBFGS) Mark() int { return op.mark }

// Gamma returns the scaling of the initial inverse Hessian approximation.
func (op *LBFGS) Gamma() float64 { return op.gamma }

// S returns the first vector of slot i.
func (op *LBFGS) S(i int) *vector.Vector { return op.slots[i].s }

// Y returns the second vector of slot i.
func (op *LBFGS) Y(i int) *vector.Vector { return op.slots[i].y }

// Reset forgets all stored pairs.
func (op *LBFGS) Reset() {
	op.mp = 0
	op.mark = 0
	op.lent = false
	op.gamma = 1
}

// Lend returns the index of the slot that the next update writes, so that the
// caller can store x₀ in S(i) and g₀ in Y(i) before calling Update with them.
// When the memory is full that slot holds the oldest pair: a successful Update
// replaces it as usual, a rejected one drops it since its vectors are gone.
func (op *LBFGS) Lend() int {
	op.lent = true
	return op.mark
}

// Update memorizes the pair (x1 - x0, g1 - g0).
// The pair is rejected when sᵀy ≤ 0, leaving the memory unchanged except for
// the pair overwritten by a lent slot.
// x0 and g0 may be the vectors of the lent slot.
func (op *LBFGS) Update(x1, x0, g1, g0 *vector.Vector) bool {
	sy, yy := curvature(x1.Data(), x0.Data(), g1.Data(), g0.Data())
	if !(sy > 0) || !(yy > 0) {
		if op.lent && op.mp == len(op.slots) {
			op.mp--
		}
		op.lent = false
		return false
	}
	op.lent = false
	k := op.mark
	s, y := op.slots[k].s, op.slots[k].y
	op.space.Axpby(s, 1, x1, -1, x0)
	op.space.Axpby(y, 1, g1, -1, g0)
	op.slots[k].rho = 1 / sy
	op.gamma = sy / yy
	op.mark = (k + 1) % len(op.slots)
	op.mp = min(op.mp+1, len(op.slots))
	return true
}

// curvature returns sᵀy and yᵀy without storing s and y.
func curvature(x1, x0, g1, g0 []float64) (sy, yy float64) {
	if len(x0) != len(x1) || len(g1) != len(x1) || len(g0) != len(x1) {
		panic("bound check error")
	}
	for i := range x1 {
		s, y := x1[i]-x0[i], g1[i]-g0[i]
		sy += s * y
		yy += y * y
	}
	return
}

// slot returns the slot of the k-th newest pair.
func (op *LBFGS) slot(k int) int {
	m := len(op.slots)
	return (op.mark - 1 - k + 2*m) % m
}

// apply computes dst = H·src with the two-loop recursion.
// dst and src may be the same vector.
func (op *LBFGS) apply(dst, src *vector.Vector) {
	sp := op.space
	sp.Copy(dst, src)
	mp := op.Len()
	if mp == 0 {
		return
	}
	for k := 0; k < mp; k++ {
		j := op.slot(k)
		p := &op.slots[j]
		op.alpha[j] = p.rho * sp.Dot(p.s, dst)
		sp.Axpby(dst, 1, dst, -op.alpha[j], p.y)
	}
	sp.Scale(dst, op.gamma, dst)
	for k := mp - 1; k >= 0; k-- {
		j := op.slot(k)
		p := &op.slots[j]
		beta := p.rho * sp.Dot(p.y, dst)
		sp.Axpby(dst, 1, dst, op.alpha[j]-beta, p.s)
	}
}

// applyFree computes dst = H·src restricted to the free variables, the ones
// where free is 1. The other components of dst are zero. Pairs without
// positive curvature on the free variables are skipped and the scaling comes
// from the newest pair kept. A nil free selects all the variables.
func (op *LBFGS) applyFree(dst, src, free *vector.Vector) {
	if free == nil {
		op.apply(dst, src)
		return
	}
	sp := op.space
	if op.tmp == nil {
		op.tmp = sp.Create()
	}
	w := op.tmp // free ⊙ y in the first loop, free ⊙ s in the second

	sp.Multiply(dst, free, src)
	mp := op.Len()
	gamma := 0.0
	for k := 0; k < mp; k++ {
		j := op.slot(k)
		p := &op.slots[j]
		op.rho[j] = 0
		sp.Multiply(w, free, p.y)
		sy := sp.Dot(p.s, w)
		if !(sy > 0) {
			continue
		}
		if gamma == 0 {
			gamma = sy / sp.Dot(w, w)
		}
		op.rho[j] = 1 / sy
		// dst vanishes on the bound variables, so sᵀdst needs no mask.
		op.alpha[j] = op.rho[j] * sp.Dot(p.s, dst)
		sp.Axpby(dst, 1, dst, -op.alpha[j], w)
	}
	if gamma == 0 {
		return
	}
	sp.Scale(dst, gamma, dst)
	for k := mp - 1; k >= 0; k-- {
		j := op.slot(k)
		if op.rho[j] == 0 {
			continue
		}
		p := &op.slots[j]
		beta := op.rho[j] * sp.Dot(p.y, dst)
		sp.Multiply(w, free, p.s)
		sp.Axpby(dst, 1, dst, op.alpha[j]-beta, w)
	}
}

// Apply implements vector.LinearOperator.
// Direct and Adjoint jobs apply the (symmetric) inverse Hessian approximation.
func (op *LBFGS) Apply(dst, src *vector.Vector, job vector.Job) error {
	switch job {
	case vector.Direct, vector.Adjoint:
		op.apply(dst, src)
		return nil
	case vector.Inverse, vector.InverseAdjoint:
		return vector.ErrNotInvertible
	}
	return vector.ErrBadJob
}
