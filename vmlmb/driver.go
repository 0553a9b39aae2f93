// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vmlmb

import (
	"math"

	"github.com/curioloop/deconv/logs"
	"github.com/curioloop/deconv/vector"
)

// Evaluation computes the objective function at x and stores its gradient in g.
type Evaluation func(x, g *vector.Vector) (f float64)

// FallibleEvaluation is an Evaluation which may fail.
type FallibleEvaluation func(x, g *vector.Vector) (f float64, err error)

// Termination specifies the stopping criteria of Fit besides the gradient test.
// A non-positive limit means no limit.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration stop when the total number of function and gradient evaluation exceeds limit.
	MaxEvaluations int
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool           // Whether the optimization was converged.
	F       float64        // Final function value.
	X, G    *vector.Vector // Final solution and gradient.
	Summary                // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Task       Task   // Final task after optimization.
	Reason     Reason // Reason of the final task.
	NumIter    int    // Number of iterations performed.
	NumEval    int    // Number of function and gradient evaluations performed.
	NumRestart int    // Number of resets of the LBFGS memory.
}

// Fit minimizes the objective from the initial guess x, which is projected on
// the feasible set first. x is updated in place with the best point found.
// A panic of eval stops the run with HaltEvalPanic.
func (o *Optimizer) Fit(x *vector.Vector, eval Evaluation, stop Termination) *Result {
	res, _ := o.FitE(x, func(x, g *vector.Vector) (float64, error) {
		return eval(x, g), nil
	}, stop)
	return res
}

// FitE is Fit with an evaluation which may fail. The first error stops the
// run with EvalFailed and is returned along with the last accepted point.
func (o *Optimizer) FitE(x *vector.Vector, eval FallibleEvaluation, stop Termination) (*Result, error) {
	sp := o.space
	if x.Space() == nil || !sp.Equal(x.Space()) {
		panic("initial x dimension not match spec")
	}

	maxIter, maxEval := stop.MaxIterations, stop.MaxEvaluations
	if maxIter <= 0 {
		maxIter = math.MaxInt
	}
	if maxEval <= 0 {
		maxEval = math.MaxInt
	}

	if o.opts.Bounds != nil {
		o.opts.Bounds.ProjectVariables(x, x)
	}

	g := sp.Create()
	f := math.NaN()
	var failure error
	o.printInit()

	task := o.Start()
loop:
	for {
		switch task {
		case ComputeFG:
			if o.eval >= maxEval {
				task, o.reason = Warning, TooManyEvaluations
				break loop
			}
			halt := false
			func() {
				defer func() {
					if r := recover(); r != nil {
						halt = true
					}
				}()
				f, failure = eval(x, g)
			}()
			if halt {
				task, o.reason = Error, HaltEvalPanic
				break loop
			}
			if failure != nil {
				task, o.reason = Error, EvalFailed
				break loop
			}
		case NewX:
			if o.iter >= maxIter {
				task, o.reason = Warning, TooManyIterations
				break loop
			}
		default:
			break loop
		}
		task = o.Iterate(x, f, g)
	}
	o.task = task

	if o.search {
		// Restore the base point of the interrupted line search.
		sp.Copy(x, o.x0)
		sp.Copy(g, o.g0)
		f = o.f0
		o.search = false
	}

	o.printExit(f)
	res := &Result{
		OK: task == FinalX,
		F:  f, X: x, G: g,
		Summary: Summary{
			Task:       task,
			Reason:     o.reason,
			NumIter:    o.iter,
			NumEval:    o.eval,
			NumRestart: o.restarts,
		},
	}
	return res, failure
}

func (o *Optimizer) printInit() {
	log := o.logger
	if !log.Enabled(logs.LogLast) {
		return
	}
	log.Logf("RUNNING THE VMLMB CODE\n")
	log.Logf("           * * *\n")
	log.Logf("N = %d    M = %d    bounded = %v\n", o.space.Size(), o.lbfgs.Cap(), o.opts.Bounds != nil)
	if log.Enabled(logs.LogEval) {
		log.Outf("\n   it    nf    nr      stp      |g|        f\n")
	}
}

func (o *Optimizer) printExit(f float64) {
	log := o.logger
	if !log.Enabled(logs.LogLast) {
		return
	}
	log.Logf("\n           * * *\n")
	log.Logf("\n   N      Tit      Tnf   Restart    |g|         F\n")
	log.Logf("%5d %6d %7d %6d %10.3e %9.5e\n", o.space.Size(), o.iter, o.eval, o.restarts, o.gnorm, f)
	log.Logf("\n%v: %v\n", o.task, o.reason)
}
