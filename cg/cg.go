// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cg implements the (preconditioned) linear conjugate gradient method
// for symmetric positive definite systems A·x = b.
package cg

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/deconv/logs"
	"github.com/curioloop/deconv/vector"
)

// Status is the outcome of Solve.
type Status int

const (
	// Converged means ‖r‖ ≤ max(Atol, Rtol·‖r₀‖).
	Converged Status = iota
	// TooManyIterations means the iteration limit was reached first.
	TooManyIterations
	// NotPositiveDefinite means pᵀA·p ≤ 0 for a search direction p.
	NotPositiveDefinite
	// PrecondNotPositiveDefinite means rᵀM·r ≤ 0 for a residual r.
	PrecondNotPositiveDefinite
	// OperatorError means applying A or M failed; see Result.Err.
	OperatorError
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "CONVERGED"
	case TooManyIterations:
		return "TOO_MANY_ITERATIONS"
	case NotPositiveDefinite:
		return "A_IS_NOT_POSITIVE_DEFINITE"
	case PrecondNotPositiveDefinite:
		return "P_IS_NOT_POSITIVE_DEFINITE"
	case OperatorError:
		return "OPERATOR_ERROR"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Problem specifies a linear system for the conjugate gradient solver.
type Problem struct {
	Space   *vector.Space         // Space of x and b
	A       vector.LinearOperator // Symmetric positive definite operator
	Precond vector.LinearOperator // Optional preconditioner approximating A⁻¹
	Atol    float64               // Absolute tolerance on the residual norm
	Rtol    float64               // Relative tolerance on the residual norm
}

// New creates a solver for the problem.
func (p *Problem) New(logger *logs.Logger) (*Solver, error) {
	var err error
	switch {
	case p.Space == nil:
		err = errors.New("cg: space is required")
	case p.A == nil:
		err = errors.New("cg: operator is required")
	case !(p.Atol >= 0):
		err = errors.New("cg: absolute tolerance must not less than 0")
	case !(p.Rtol >= 0 && p.Rtol < 1):
		err = errors.New("cg: relative tolerance must be in [0,1)")
	}
	if err != nil {
		return nil, err
	}
	sp := p.Space
	s := &Solver{
		problem: *p,
		logger:  logger,
		r:       sp.Create(),
		p:       sp.Create(),
		q:       sp.Create(),
	}
	if p.Precond != nil {
		s.z = sp.Create()
	} else {
		s.z = s.r
	}
	return s, nil
}

// Solver holds the workspace of the conjugate gradient method.
// It must not be used concurrently.
type Solver struct {
	problem    Problem
	logger     *logs.Logger
	r, z, p, q *vector.Vector
}

// Result contains the outcome of Solve.
type Result struct {
	Status       Status
	NumIter      int     // Number of iterations performed.
	ResidualNorm float64 // Final ‖b - A·x‖.
	Err          error   // Error of the operator when Status is OperatorError.
}

// Solve improves x, used as the initial guess, so that A·x = b.
// Each call is a fresh run.
func (s *Solver) Solve(x, b *vector.Vector, maxIter int) Result {
	sp, a, m := s.problem.Space, s.problem.A, s.problem.Precond
	r, z, p, q := s.r, s.z, s.p, s.q
	log := s.logger

	fail := func(k int, err error) Result {
		if log.Enabled(logs.LogLast) {
			log.Logf("CG: operator failed at iteration %d: %v\n", k, err)
		}
		return Result{Status: OperatorError, NumIter: k, ResidualNorm: math.NaN(), Err: err}
	}

	// r = b - A·x
	if err := a.Apply(q, x, vector.Direct); err != nil {
		return fail(0, err)
	}
	sp.Axpby(r, 1, b, -1, q)
	rnorm := sp.Norm2(r)
	epsilon := math.Max(s.problem.Atol, s.problem.Rtol*rnorm)

	result := func(st Status, k int) Result {
		if log.Enabled(logs.LogLast) {
			log.Logf("CG: %v after %d iterations, |r|= %12.5e\n", st, k, rnorm)
		}
		return Result{Status: st, NumIter: k, ResidualNorm: rnorm}
	}

	if rnorm <= epsilon {
		return result(Converged, 0)
	}

	var rho float64
	for k := 1; k <= maxIter; k++ {
		// z = M·r
		if m != nil {
			if err := m.Apply(z, r, vector.Direct); err != nil {
				return fail(k, err)
			}
		}
		rho0 := rho
		if rho = sp.Dot(r, z); !(rho > 0) {
			return result(PrecondNotPositiveDefinite, k-1)
		}
		if k == 1 {
			sp.Copy(p, z)
		} else {
			sp.Axpby(p, 1, z, rho/rho0, p)
		}

		// q = A·p
		if err := a.Apply(q, p, vector.Direct); err != nil {
			return fail(k, err)
		}
		gamma := sp.Dot(p, q)
		if !(gamma > 0) {
			return result(NotPositiveDefinite, k-1)
		}
		alpha := rho / gamma
		sp.Axpby(x, 1, x, alpha, p)
		sp.Axpby(r, 1, r, -alpha, q)

		rnorm = sp.Norm2(r)
		if log.Enabled(logs.LogEval) && k%int(max(log.Level, 1)) == 0 || log.Enabled(logs.LogTrace) {
			log.Logf("CG iter %5d    |r|= %12.5e    alpha= %12.5e\n", k, rnorm, alpha)
		}
		if rnorm <= epsilon {
			return result(Converged, k)
		}
	}
	return result(TooManyIterations, max(maxIter, 0))
}
