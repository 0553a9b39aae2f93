// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates the gradient of a scalar cost function by finite
// differences, typically to check an analytic gradient.
package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

// Bound holds the lower and upper bounds of a variable, NaN means unbounded.
type Bound [2]float64

// ApproxSpec represents a finite difference estimation of the gradient of a scalar function.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
type ApproxSpec struct {
	N int
	// Function of which to estimate the gradient.
	// The argument x passed to this function is an n-vector and must not be retained.
	Object func(x []float64) float64
	// Finite difference method to use.
	Method Method
	// Lower and upper bounds on independent variables.
	// Use it to limit the range of function evaluation.
	Bounds []Bound
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = RelStep * sign(x0) * max(1, abs(x0)) with RelStep being selected automatically.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use, possibly adjusted to fit into the bounds.
	// The RelStep is used when AbsStep is not provide.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
	// Don't check if x0 is out of bounds.
	NotChkBnd bool
	approxCtx
}

type approxCtx struct {
	x       []float64
	absStep []float64
	oneSide []bool
}

// Check the parameters and initialize approxCtx.
func (as *ApproxSpec) Check(x0, grad []float64) (err error) {

	switch {
	case as.N <= 0:
		err = errors.New("numdiff: non-positive dimension")
	case as.Method != Forward && as.Method != Central:
		err = errors.New("numdiff: unknown method")
	case as.Object == nil:
		err = errors.New("numdiff: object function is required")
	case as.N != len(x0):
		return errors.New("numdiff: invalid x0 dimensions")
	case as.N != len(grad):
		return errors.New("numdiff: invalid gradient dimensions")
	}

	if as.Bounds != nil {
		if len(as.Bounds) != len(x0) {
			err = errors.New("numdiff: invalid bound dimension")
		} else {
			for i := range as.Bounds {
				bound := &as.Bounds[i]
				if math.IsNaN(bound[0]) {
					bound[0] = math.Inf(-1)
				}
				if math.IsNaN(bound[1]) {
					bound[1] = math.Inf(1)
				}
				if bound[0] > bound[1] {
					err = errors.New("numdiff: invalid bound range")
					break
				}
				if !as.NotChkBnd && (x0[i] < bound[0] || x0[i] > bound[1]) {
					err = errors.New("numdiff: x0 violates bound constraints")
					break
				}
			}
		}
	}

	if len(as.x) != as.N {
		as.x = make([]float64, as.N)
	}
	if len(as.absStep) != as.N {
		as.absStep = make([]float64, as.N)
	}
	if len(as.oneSide) != as.N*int(as.Method) {
		as.oneSide = make([]bool, as.N*int(as.Method))
	}
	return
}

// Gradient stores the finite difference approximation of the gradient at x0 into grad.
// It calls Object N+1 times with the Forward method and 2N+1 times with the Central one.
func (as *ApproxSpec) Gradient(x0, grad []float64) error {

	if err := as.Check(x0, grad); err != nil {
		return err
	}

	bnd := false
	for _, bound := range as.Bounds {
		l, u := bound[0], bound[1]
		if bnd = !(math.IsInf(l, 0) && math.IsInf(u, 0)); bnd {
			break
		}
	}

	as.absoluteStep(x0)
	as.adjustToBounds(x0, bnd)

	copy(as.x, x0)
	if as.Method == Central {
		as.approxCentral(grad)
	} else {
		as.approxForward(grad)
	}

	return nil
}

func (as *ApproxSpec) adjustToBounds(x0 []float64, bnd bool) {
	h, o := as.absStep, as.oneSide
	if as.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
		for i := range o {
			o[i] = false
		}
	}

	if !bnd {
		return
	}

	b := as.Bounds
	if len(x0) != len(b) || len(x0) != len(h) {
		panic("bound check error")
	}

	if as.Method == Forward {
		for i, x0 := range x0 {
			lb, ub := b[i][0], b[i][1]
			ld, ud := x0-lb, ub-x0
			h0 := h[i]
			x := x0 + h0
			violated := x < lb || x > ub
			fitting := math.Abs(h[i]) < math.Max(ld, ud)
			if violated && fitting {
				h[i] = -h0
			} else if !fitting {
				if ud >= ld {
					h[i] = ud
				} else {
					h[i] = -ld
				}
			}
		}
		return
	}

	if len(x0) != len(o) {
		panic("bound check error")
	}
	for i, x0 := range x0 {
		lb, ub := b[i][0], b[i][1]
		ld, ud := x0-lb, ub-x0
		central := ld >= h[i] && ud >= h[i]
		if !central {
			if ud >= ld {
				h[i] = math.Min(h[i], 0.5*ud)
			} else {
				h[i] = -math.Min(h[i], 0.5*ld)
			}
			o[i] = true
		}
		minDist := math.Min(ud, ld)
		if !central && math.Abs(h[i]) <= minDist {
			h[i] = minDist
			o[i] = false
		}
	}
}

func (as *ApproxSpec) absoluteStep(x0 []float64) {
	h := as.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	var eps float64
	switch as.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs := as.AbsStep
	rel := as.RelStep
	if abs == 0 && rel == 0 {
		for i, v := range x0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		return
	}
	for i, v := range x0 {
		s := abs
		if s == 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		}
		if d := (v + s) - v; d == 0 {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = s
	}
}

func (as *ApproxSpec) approxForward(grad []float64) {
	x, h := as.x, as.absStep
	if len(h) != len(x) || len(grad) != len(x) {
		panic("bound check error")
	}

	fun := as.Object
	f0 := fun(x)
	for i, s := range h {
		t := x[i]
		x[i] = t + s
		grad[i] = (fun(x) - f0) / s
		x[i] = t
	}
}

func (as *ApproxSpec) approxCentral(grad []float64) {
	x, h, o := as.x, as.absStep, as.oneSide
	if len(h) != len(x) || len(h) != len(o) || len(grad) != len(x) {
		panic("bound check error")
	}

	fun := as.Object
	f0 := fun(x)
	for i, s := range h {
		t := x[i]
		d := 1.0 / (2 * s)
		if o[i] {
			x[i] = t + s
			f1 := fun(x)
			x[i] = t + 2*s
			f2 := fun(x)
			grad[i] = (4*f1 - 3*f0 - f2) * d
		} else {
			x[i] = t - s
			f1 := fun(x)
			x[i] = t + s
			f2 := fun(x)
			grad[i] = (f2 - f1) * d
		}
		x[i] = t
	}
}

// MaxRelativeError returns max |aᵢ - bᵢ| / max(1, |aᵢ|, |bᵢ|).
func MaxRelativeError(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("bound check error")
	}
	e := 0.0
	for i := range a {
		d := math.Abs(a[i]-b[i]) / math.Max(1, math.Max(math.Abs(a[i]), math.Abs(b[i])))
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		e = math.Max(e, d)
	}
	return e
}
