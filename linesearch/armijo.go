// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import "errors"

var errArmijoTol = errors.New("linesearch: tolerances must satisfy 0 < ftol < 1 and 0 < amin <= amax < 1")

// Armijo is a backtracking strategy which only enforces the sufficient decrease condition
//
//	f(λ) <= f(0) + ftol*λ*f′(0)
//
// A rejected step λ is reduced to the minimizer of the quadratic interpolating
// f(0), f′(0) and f(λ), safeguarded in [amin*λ, amax*λ].
type Armijo struct {
	ftol, amin, amax float64
}

// NewArmijo creates a backtracking strategy.
func NewArmijo(ftol, amin, amax float64) (*Armijo, error) {
	if !(ftol > 0 && ftol < 1 && amin > 0 && amin <= amax && amax < 1) {
		return nil, errArmijoTol
	}
	return &Armijo{ftol: ftol, amin: amin, amax: amax}, nil
}

// NewArmijoSearch creates a LineSearch driven by backtracking.
func NewArmijoSearch(ftol, amin, amax float64) (*LineSearch, error) {
	a, err := NewArmijo(ftol, amin, amax)
	if err != nil {
		return nil, err
	}
	return New(a), nil
}

func (a *Armijo) Start(*LineSearch) Status {
	return Search
}

func (a *Armijo) Iterate(ls *LineSearch, stp, f, g float64) (float64, Status) {
	dec := stp * ls.ginit
	if f <= ls.finit+a.ftol*dec {
		return stp, Convergence
	}
	next := a.amin * stp
	if q := 2 * (f - ls.finit - dec); q > 0 {
		next = -dec * stp / q
	}
	return clamp(next, a.amin*stp, a.amax*stp), Search
}

var _ Strategy = (*Armijo)(nil)
var _ Strategy = (*MoreThuente)(nil)
