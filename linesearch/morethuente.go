// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"errors"
	"math"
)

const (
	p5         = 0.5
	p66        = 0.66
	xTrapLower = 1.1
	xTrapUpper = 4.0
)

const (
	stagePsi = 1 // search on ψ(α) = f(α) - f(0) - ftol·α·f′(0)
	stageF   = 2 // search on f
)

// Default tolerances of NewMoreThuente callers.
const (
	DefaultFtol = 1e-3
	DefaultGtol = 0.9
	DefaultXtol = 0.1
)

var errMoreThuenteTol = errors.New("linesearch: tolerances must satisfy 0 < ftol < 1, 0 < gtol < 1 and xtol >= 0")

// point is a step with the function value and derivative at that step.
type point struct {
	stp, f, g float64
}

// MoreThuente (dcsrch)
//
// MoreThuente finds a step λ that satisfies:
//   - sufficient decrease condition: f(λ) <= f(0) + ftol*λ*f′(0)
//   - curvature condition: |f′(λ)| <= gtol*|f′(0)|
//
// Each iteration updates an interval with endpoints stx and sty.
//
// The interval is initially chosen so that it contains a minimizer of the modified function:
//
//	ψ(λ) = f(λ) - f(0) - ftol*λ*f′(0)
//
// If ψ(λ) ≤ 0 and f′(λ) ≥ 0 for some step, then the interval is chosen so that it contains a minimizer of f.
//
// If ftol is less than gtol and if, for example, the function is bounded below,
// then there is always a step which satisfies both conditions.
// If no step can be found that satisfies both conditions, then the search stops with a warning.
// In this case stp only satisfies the sufficient decrease condition.
//
// Reference: J. J. Moré and D. J. Thuente, "Line search algorithms with guaranteed
// sufficient decrease", ACM Transactions on Mathematical Software 20 (1994).
type MoreThuente struct {
	ftol, gtol, xtol float64

	brackt        bool
	stage         int
	x, y          point
	stmin, stmax  float64
	width, width1 float64
}

// NewMoreThuente creates a Moré-Thuente strategy.
//
//   - ftol is the tolerance for the sufficient decrease condition.
//   - gtol is the tolerance for the curvature condition.
//   - xtol is the relative tolerance for an acceptable step:
//     the search stops with a warning if the relative width of the bracket is less than xtol.
func NewMoreThuente(ftol, gtol, xtol float64) (*MoreThuente, error) {
	if !(ftol > 0 && ftol < 1 && gtol > 0 && gtol < 1 && xtol >= 0) {
		return nil, errMoreThuenteTol
	}
	return &MoreThuente{ftol: ftol, gtol: gtol, xtol: xtol}, nil
}

// NewMoreThuenteSearch creates a LineSearch driven by a Moré-Thuente strategy.
func NewMoreThuenteSearch(ftol, gtol, xtol float64) (*LineSearch, error) {
	mt, err := NewMoreThuente(ftol, gtol, xtol)
	if err != nil {
		return nil, err
	}
	return New(mt), nil
}

// Ftol returns the sufficient decrease tolerance.
func (mt *MoreThuente) Ftol() float64 { return mt.ftol }

// Gtol returns the curvature tolerance.
func (mt *MoreThuente) Gtol() float64 { return mt.gtol }

// Xtol returns the relative step tolerance.
func (mt *MoreThuente) Xtol() float64 { return mt.xtol }

// Bracketed reports whether a minimizer has been bracketed.
func (mt *MoreThuente) Bracketed() bool { return mt.brackt }

func (mt *MoreThuente) Start(ls *LineSearch) Status {
	mt.brackt = false
	mt.stage = stagePsi
	mt.width = ls.stpmax - ls.stpmin
	mt.width1 = mt.width / p5

	mt.x = point{0, ls.finit, ls.ginit}
	mt.y = point{0, ls.finit, ls.ginit}
	mt.stmin = 0
	mt.stmax = ls.stp + xTrapUpper*ls.stp
	return Search
}

func (mt *MoreThuente) Iterate(ls *LineSearch, stp, f, g float64) (float64, Status) {

	// Test for convergence or warnings
	gtest := mt.ftol * ls.ginit
	ftest := ls.finit + stp*gtest

	switch {
	case mt.brackt && (stp <= mt.stmin || stp >= mt.stmax):
		return stp, WarnRoundingErrors
	case mt.brackt && mt.stmax-mt.stmin <= mt.xtol*mt.stmax:
		return stp, WarnXtolTest
	case stp == ls.stpmax && f <= ftest && g <= gtest:
		return stp, WarnStpEqMax
	case stp == ls.stpmin && (f > ftest || g >= gtest):
		return stp, WarnStpEqMin
	case f <= ftest && math.Abs(g) <= mt.gtol*(-ls.ginit):
		return stp, Convergence
	}

	if mt.stage == stagePsi && f <= ftest && g >= 0 {
		mt.stage = stageF
	}

	var (
		next   float64
		brackt bool
		info   int
		p      = point{stp, f, g}
	)
	if mt.stage == stagePsi && f <= mt.x.f && f > ftest {
		// Use the modified function while no step has a lower value
		// than the best one and the sufficient decrease is not reached.
		psi := func(q point) point { return point{q.stp, q.f - q.stp*gtest, q.g - gtest} }
		phi := func(q point) point { return point{q.stp, q.f + q.stp*gtest, q.g + gtest} }
		var x, y point
		x, y, next, brackt, info = cstep(psi(mt.x), psi(mt.y), psi(p), mt.brackt, mt.stmin, mt.stmax)
		if info > 0 {
			mt.x, mt.y = phi(x), phi(y)
		}
	} else {
		var x, y point
		x, y, next, brackt, info = cstep(mt.x, mt.y, p, mt.brackt, mt.stmin, mt.stmax)
		if info > 0 {
			mt.x, mt.y = x, y
		}
	}
	if info < 0 {
		return stp, Status(info)
	}
	mt.brackt = brackt

	// Decide if a bisection step is needed.
	if mt.brackt {
		if math.Abs(mt.y.stp-mt.x.stp) >= p66*mt.width1 {
			next = mt.x.stp + p5*(mt.y.stp-mt.x.stp)
		}
		mt.width1 = mt.width
		mt.width = math.Abs(mt.y.stp - mt.x.stp)
	}

	// Set the minimum and maximum steps allowed for the next trial.
	if mt.brackt {
		mt.stmin = math.Min(mt.x.stp, mt.y.stp)
		mt.stmax = math.Max(mt.x.stp, mt.y.stp)
	} else {
		mt.stmin = next + xTrapLower*(next-mt.x.stp)
		mt.stmax = next + xTrapUpper*(next-mt.x.stp)
	}

	next = clamp(next, ls.stpmin, ls.stpmax)

	// If further progress is not possible, let next be the best step obtained so far.
	if mt.brackt && (next <= mt.stmin || next >= mt.stmax || mt.stmax-mt.stmin <= mt.xtol*mt.stmax) {
		next = mt.x.stp
	}
	return next, Search
}

// cstep (dcstep)
//
// cstep computes a safeguarded step for a search procedure and updates an
// interval that contains a step that satisfies a sufficient decrease and a
// curvature condition.
//
// x is the point with the least function value so far and y is the other
// endpoint of the interval. p is the current trial point.
// If brackt is set then a minimizer has been bracketed in the interval with
// endpoints x.stp and y.stp and p.stp must lie strictly inside it.
// The derivative at x must be negative in the direction of the step,
// that is, x.g and p.stp - x.stp must have opposite signs.
// stpmin and stpmax are lower and upper bounds for the step.
//
// On success cstep returns the updated endpoints, the new trial step, the
// updated bracket flag and the number (1 to 4) of the case used to compute the
// step. On illegal inputs it returns its arguments unchanged with a negative
// code which is the corresponding Status.
func cstep(x, y, p point, brackt bool, stpmin, stpmax float64) (point, point, float64, bool, int) {

	if brackt && (p.stp <= math.Min(x.stp, y.stp) || p.stp >= math.Max(x.stp, y.stp)) {
		return x, y, p.stp, brackt, int(ErrStpOutsideBracket)
	}
	if x.g*(p.stp-x.stp) >= 0 {
		return x, y, p.stp, brackt, int(ErrNotADescent)
	}
	if stpmax < stpmin {
		return x, y, p.stp, brackt, int(ErrStpminGtStpmax)
	}

	var info int
	var gamma, pp, q, r, s, theta, stpc, stpq, stpf float64
	sgnd := p.g * (x.g / math.Abs(x.g))

	switch {
	case p.f > x.f:
		// First case: A higher function value. The minimum is bracketed.
		// If the cubic step is closer to stx than the quadratic step, the cubic step is taken,
		// otherwise the average of the cubic and quadratic steps is taken.
		info = 1
		theta = 3*(x.f-p.f)/(p.stp-x.stp) + x.g + p.g
		s = math.Max(math.Max(math.Abs(theta), math.Abs(x.g)), math.Abs(p.g))
		gamma = s * math.Sqrt((theta/s)*(theta/s)-(x.g/s)*(p.g/s))
		if p.stp < x.stp {
			gamma = -gamma
		}
		pp = (gamma - x.g) + theta
		q = ((gamma - x.g) + gamma) + p.g
		r = pp / q
		stpc = x.stp + r*(p.stp-x.stp)
		stpq = x.stp + ((x.g/((x.f-p.f)/(p.stp-x.stp)+x.g))/2)*(p.stp-x.stp)
		if math.Abs(stpc-x.stp) < math.Abs(stpq-x.stp) {
			stpf = stpc
		} else {
			stpf = stpc + (stpq-stpc)/2
		}
		brackt = true

	case sgnd < 0:
		// Second case: A lower function value and derivatives of opposite sign.
		// The minimum is bracketed.
		// If the cubic step is farther from stp than the secant step, the cubic step is taken,
		// otherwise the secant step is taken.
		info = 2
		theta = 3*(x.f-p.f)/(p.stp-x.stp) + x.g + p.g
		s = math.Max(math.Max(math.Abs(theta), math.Abs(x.g)), math.Abs(p.g))
		gamma = s * math.Sqrt((theta/s)*(theta/s)-(x.g/s)*(p.g/s))
		if p.stp > x.stp {
			gamma = -gamma
		}
		pp = (gamma - p.g) + theta
		q = ((gamma - p.g) + gamma) + x.g
		r = pp / q
		stpc = p.stp + r*(x.stp-p.stp)
		stpq = p.stp + (p.g/(p.g-x.g))*(x.stp-p.stp)
		if math.Abs(stpc-p.stp) > math.Abs(stpq-p.stp) {
			stpf = stpc
		} else {
			stpf = stpq
		}
		brackt = true

	case math.Abs(p.g) < math.Abs(x.g):
		// Third case: A lower function value, derivatives of the same sign,
		// and the magnitude of the derivative decreases.
		// The cubic step is computed only if either:
		//   - the cubic tends to infinity in the direction of the step
		//   - the minimum of the cubic is beyond stp.
		// Otherwise the cubic step is defined to be the secant step.
		info = 3
		theta = 3*(x.f-p.f)/(p.stp-x.stp) + x.g + p.g
		s = math.Max(math.Max(math.Abs(theta), math.Abs(x.g)), math.Abs(p.g))
		// The case gamma = 0 only arises if the cubic does not tend to infinity in the direction of the step.
		gamma = s * math.Sqrt(math.Max(0, (theta/s)*(theta/s)-(x.g/s)*(p.g/s)))
		if p.stp > x.stp {
			gamma = -gamma
		}
		pp = (gamma - p.g) + theta
		q = (gamma + (x.g - p.g)) + gamma
		r = pp / q
		if r < 0 && gamma != 0 {
			stpc = p.stp + r*(x.stp-p.stp)
		} else if p.stp > x.stp {
			stpc = stpmax
		} else {
			stpc = stpmin
		}
		stpq = p.stp + (p.g/(p.g-x.g))*(x.stp-p.stp)
		if brackt {
			// If the cubic step is closer to stp than the secant step, the cubic step is taken,
			// otherwise the secant step is taken.
			if math.Abs(stpc-p.stp) < math.Abs(stpq-p.stp) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			if p.stp > x.stp {
				stpf = math.Min(p.stp+p66*(y.stp-p.stp), stpf)
			} else {
				stpf = math.Max(p.stp+p66*(y.stp-p.stp), stpf)
			}
		} else {
			// If the cubic step is farther from stp than the secant step, the cubic step is taken,
			// otherwise the secant step is taken.
			if math.Abs(stpc-p.stp) > math.Abs(stpq-p.stp) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			stpf = clamp(stpf, stpmin, stpmax)
		}

	default:
		// Fourth case: A lower function value, derivatives of the same sign,
		// and the magnitude of the derivative does not decrease.
		// If the minimum is not bracketed, the step is either stpmin or stpmax,
		// otherwise the cubic step is taken.
		info = 4
		if brackt {
			theta = 3*(p.f-y.f)/(y.stp-p.stp) + y.g + p.g
			s = math.Max(math.Max(math.Abs(theta), math.Abs(y.g)), math.Abs(p.g))
			gamma = s * math.Sqrt((theta/s)*(theta/s)-(y.g/s)*(p.g/s))
			if p.stp > y.stp {
				gamma = -gamma
			}
			pp = (gamma - p.g) + theta
			q = ((gamma - p.g) + gamma) + y.g
			r = pp / q
			stpc = p.stp + r*(y.stp-p.stp)
			stpf = stpc
		} else if p.stp > x.stp {
			stpf = stpmax
		} else {
			stpf = stpmin
		}
	}

	// Update the interval which contains a minimizer.
	if p.f > x.f {
		y = p
	} else {
		if sgnd < 0 {
			y = x
		}
		x = p
	}

	return x, y, stpf, brackt, info
}
