// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linesearch implements reverse-communication scalar line searches.
//
// A search minimizes φ(α) = f(x₀ + α·d) for α in [StepMin, StepMax]. The caller
// starts it with φ(0), φ′(0) and a first trial step, then repeatedly evaluates
// φ and φ′ at Step and feeds them back to Iterate until the status is no
// longer Search:
//
//	status := ls.Start(f0, g0, stp, 0, stpmax)
//	for status == linesearch.Search {
//		f, g := phi(ls.Step())
//		status = ls.Iterate(ls.Step(), f, g)
//	}
package linesearch

import "math"

// Strategy computes the trial steps of a LineSearch.
//
// Start is called once the common arguments are validated; Iterate receives
// the function value and derivative at the current step and returns the next
// step with the new status. A LineSearch clamps the returned step into its
// bounds, so strategies need not do it.
type Strategy interface {
	Start(ls *LineSearch) Status
	Iterate(ls *LineSearch, stp, f, g float64) (float64, Status)
}

// LineSearch is the state machine shared by all strategies.
// It can be reused for any number of searches.
type LineSearch struct {
	strategy       Strategy
	finit, ginit   float64
	stp            float64
	stpmin, stpmax float64
	status         Status
}

// New creates a line search driven by the given strategy.
func New(strategy Strategy) *LineSearch {
	return &LineSearch{strategy: strategy}
}

// Start initializes a new search with φ(0) = f0, φ′(0) = g0 and the first trial
// step stp in [stpmin, stpmax].
func (ls *LineSearch) Start(f0, g0, stp, stpmin, stpmax float64) Status {
	ls.finit, ls.ginit = f0, g0
	ls.stp, ls.stpmin, ls.stpmax = stp, stpmin, stpmax
	switch {
	case !(stpmin >= 0):
		ls.status = ErrStpminLtZero
	case !(stpmin <= stpmax):
		ls.status = ErrStpminGtStpmax
	case !(stp >= stpmin):
		ls.status = ErrStpLtStpmin
	case !(stp <= stpmax):
		ls.status = ErrStpGtStpmax
	case !(g0 < 0):
		ls.status = ErrInitialDerivativeGeZero
	default:
		ls.status = ls.strategy.Start(ls)
	}
	return ls.status
}

// Iterate submits φ(stp) = f and φ′(stp) = g. The step must be exactly the one
// returned by the previous call to Step. Outside of a search it returns
// ErrNotStarted and the status of the last search is kept.
func (ls *LineSearch) Iterate(stp, f, g float64) Status {
	if ls.status != Search {
		return ErrNotStarted
	}
	if stp != ls.stp {
		ls.status = ErrStpChanged
		return ls.status
	}

	next, status := ls.strategy.Iterate(ls, stp, f, g)
	if status == Search {
		if next >= ls.stpmax {
			if ls.stp == ls.stpmax {
				status = WarnStpEqMax
			}
			next = ls.stpmax
		} else if next <= ls.stpmin {
			if ls.stp == ls.stpmin {
				status = WarnStpEqMin
			}
			next = ls.stpmin
		}
		if status == Search {
			ls.stp = next
		}
	}
	ls.status = status
	return status
}

// Step returns the current trial step.
func (ls *LineSearch) Step() float64 { return ls.stp }

// StepMin returns the lower bound of the step.
func (ls *LineSearch) StepMin() float64 { return ls.stpmin }

// StepMax returns the upper bound of the step.
func (ls *LineSearch) StepMax() float64 { return ls.stpmax }

// InitialValue returns φ(0).
func (ls *LineSearch) InitialValue() float64 { return ls.finit }

// InitialDerivative returns φ′(0).
func (ls *LineSearch) InitialDerivative() float64 { return ls.ginit }

// Status returns the current status.
func (ls *LineSearch) Status() Status { return ls.status }

// Strategy returns the strategy driving the search.
func (ls *LineSearch) Strategy() Strategy { return ls.strategy }

// HasErrors reports whether the search stopped on an error.
func (ls *LineSearch) HasErrors() bool { return ls.status.HasErrors() }

// HasWarnings reports whether the search stopped on a warning.
func (ls *LineSearch) HasWarnings() bool { return ls.status.HasWarnings() }

// Converged reports whether the search satisfied its acceptance conditions.
func (ls *LineSearch) Converged() bool { return ls.status == Convergence }

// Finished reports whether the search has terminated for any reason.
func (ls *LineSearch) Finished() bool {
	return ls.status != Search && ls.status != NotStarted
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
