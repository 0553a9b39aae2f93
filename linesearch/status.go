// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import "fmt"

// Status is the state of a line search.
// Negative values are errors, values above Convergence are warnings.
type Status int

const (
	NotStarted  Status = 0
	Search      Status = 1
	Convergence Status = 2

	// WarnRoundingErrors means the trial step left the bracket without improvement.
	WarnRoundingErrors Status = 3
	// WarnXtolTest means the bracket is smaller than the relative tolerance.
	WarnXtolTest Status = 4
	// WarnStpEqMax means the step is stuck at its upper bound.
	WarnStpEqMax Status = 5
	// WarnStpEqMin means the step is stuck at its lower bound.
	WarnStpEqMin Status = 6

	ErrStpChanged              Status = -1
	ErrStpOutsideBracket       Status = -2
	ErrNotADescent             Status = -3
	ErrStpminGtStpmax          Status = -4
	ErrStpminLtZero            Status = -5
	ErrStpLtStpmin             Status = -6
	ErrStpGtStpmax             Status = -7
	ErrInitialDerivativeGeZero Status = -8
	ErrNotStarted              Status = -9
)

// HasErrors reports whether s is an error.
func (s Status) HasErrors() bool { return s < 0 }

// HasWarnings reports whether s is a warning.
func (s Status) HasWarnings() bool { return s > Convergence }

func (s Status) String() string {
	return Message(s)
}

// Message describes a status code.
func Message(s Status) string {
	switch s {
	case NotStarted:
		return "line search not started"
	case Search:
		return "line search in progress"
	case Convergence:
		return "line search converged"
	case WarnRoundingErrors:
		return "rounding errors prevent progress"
	case WarnXtolTest:
		return "xtol test satisfied"
	case WarnStpEqMax:
		return "step at upper bound"
	case WarnStpEqMin:
		return "step at lower bound"
	case ErrStpChanged:
		return "step changed since last iteration"
	case ErrStpOutsideBracket:
		return "step outside bracket"
	case ErrNotADescent:
		return "search direction is not a descent direction"
	case ErrStpminGtStpmax:
		return "lower step bound larger than upper step bound"
	case ErrStpminLtZero:
		return "lower step bound less than zero"
	case ErrStpLtStpmin:
		return "step less than lower bound"
	case ErrStpGtStpmax:
		return "step greater than upper bound"
	case ErrInitialDerivativeGeZero:
		return "initial derivative is not negative"
	case ErrNotStarted:
		return "iterate called outside a search"
	}
	return fmt.Sprintf("unknown line search status (%d)", int(s))
}
