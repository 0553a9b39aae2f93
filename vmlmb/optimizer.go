// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vmlmb implements VMLMB, a limited memory variable metric method with
// optional bound constraints, driven by reverse communication.
//
// The caller owns the variables x, the function value f and the gradient g.
// It repeatedly calls Iterate and does what the returned Task says:
//
//	task := opt.Start()
//	for {
//		switch task {
//		case vmlmb.ComputeFG:
//			f = fg(x, g) // evaluate at the x stored by Iterate
//		case vmlmb.NewX:
//			// x is a new iterate, a good place to check extra stop criteria
//		default:
//			return // FinalX, Warning or Error
//		}
//		task = opt.Iterate(x, f, g)
//	}
//
// Fit wraps this loop for callers which do not need the fine control.
package vmlmb

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/deconv/linesearch"
	"github.com/curioloop/deconv/logs"
	"github.com/curioloop/deconv/vector"
)

// Task tells the caller what to do after a call to Start, Restart or Iterate.
type Task int

const (
	// ComputeFG asks for the function value and gradient at x.
	ComputeFG Task = iota
	// NewX reports that x is a new iterate.
	NewX
	// FinalX reports that x satisfies the global convergence test.
	FinalX
	// Warning reports a stop without convergence; see Reason.
	Warning
	// Error reports a failure; see Reason.
	Error
)

func (t Task) String() string {
	switch t {
	case ComputeFG:
		return "COMPUTE_FG"
	case NewX:
		return "NEW_X"
	case FinalX:
		return "FINAL_X"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Task(%d)", int(t))
}

// Reason details the last task.
type Reason int

const (
	NoProblems Reason = iota
	// BadPreconditioner means the initial inverse Hessian approximation does
	// not yield a sufficient descent direction.
	BadPreconditioner
	LnsrchWarning
	LnsrchError
	// NotStarted means Iterate was called before Start.
	NotStarted
	TooManyIterations
	TooManyEvaluations
	// HaltEvalPanic means the evaluation callback of Fit panicked.
	HaltEvalPanic
	// EvalFailed means the evaluation callback of FitE returned an error.
	EvalFailed
)

func (r Reason) String() string {
	switch r {
	case NoProblems:
		return "no problems"
	case BadPreconditioner:
		return "preconditioner is not positive definite"
	case LnsrchWarning:
		return "warning in line search"
	case LnsrchError:
		return "error in line search"
	case NotStarted:
		return "optimizer not started"
	case TooManyIterations:
		return "too many iterations"
	case TooManyEvaluations:
		return "too many evaluations"
	case HaltEvalPanic:
		return "callback requested halt"
	case EvalFailed:
		return "evaluation failed"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Options configures an Optimizer.
type Options struct {
	// M is the number of memorized curvature pairs.
	M int
	// Gatol and Grtol are the absolute and relative gradient tolerances:
	// the search stops when ‖g‖ ≤ max(Gatol, Grtol·‖g₀‖).
	Gatol, Grtol float64
	// Delta is the threshold of the sufficient descent test pᵀg ≥ Delta·‖p‖·‖g‖.
	Delta float64
	// Epsilon sets the length of the first step along a new direction
	// when there is no curvature information: ‖Δx‖ = Epsilon·‖x‖.
	Epsilon float64
	// StpMin and StpMax are the relative bounds of the step of an unconstrained line search.
	StpMin, StpMax float64
	// SaveMemory stores the base point of the line search in the LBFGS arena.
	SaveMemory bool
	// Bounds is an optional projector on the feasible set.
	Bounds BoundProjector
	// LineSearch is an optional line search. Moré-Thuente is used by default.
	LineSearch *linesearch.LineSearch
	// Logger is an optional logger.
	Logger *logs.Logger
}

// DefaultOptions returns the default settings.
func DefaultOptions() Options {
	return Options{
		M:       5,
		Gatol:   0,
		Grtol:   1e-6,
		Delta:   0,
		Epsilon: 5e-2,
		StpMin:  1e-20,
		StpMax:  1e6,
	}
}

// Optimizer is the VMLMB reverse-communication state machine.
// An Optimizer persists for a whole optimization run and is not safe for
// concurrent use.
type Optimizer struct {
	space  *vector.Space
	opts   Options
	lbfgs  *LBFGS
	lnsrch *linesearch.LineSearch
	logger *logs.Logger

	x0, g0 *vector.Vector // base point of the line search
	p      *vector.Vector // search direction, the step is -alpha·p
	dx     *vector.Vector // scratch for bounded problems
	free   *vector.Vector // 1 for the free variables of a bounded problem, 0 for the bound ones
	gp     *vector.Vector // projected gradient of a bounded problem
	f0     float64

	alpha  float64
	pg     float64
	gnorm  float64
	ginit  float64
	hasG0  bool
	hasDir bool
	search bool

	task                 Task
	reason               Reason
	iter, eval, restarts int
}

// New creates an optimizer for variables of the given space.
// A nil opts selects DefaultOptions.
func New(space *vector.Space, opts *Options) (*Optimizer, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}

	var err error
	switch {
	case space == nil:
		err = errors.New("vmlmb: variable space is required")
	case o.M <= 0:
		err = errors.New("vmlmb: memory size must greater than 0")
	case !(o.Gatol >= 0):
		err = errors.New("vmlmb: absolute gradient tolerance must not less than 0")
	case !(o.Grtol >= 0):
		err = errors.New("vmlmb: relative gradient tolerance must not less than 0")
	case !(o.Delta >= 0 && o.Delta < 1):
		err = errors.New("vmlmb: descent threshold must be in [0,1)")
	case !(o.Epsilon >= 0 && o.Epsilon < 1):
		err = errors.New("vmlmb: small step must be in [0,1)")
	case !(o.StpMin > 0 && o.StpMin < o.StpMax):
		err = errors.New("vmlmb: step bounds must satisfy 0 < stpmin < stpmax")
	}
	if err != nil {
		return nil, err
	}

	if o.LineSearch == nil {
		o.LineSearch, err = linesearch.NewMoreThuenteSearch(
			linesearch.DefaultFtol, linesearch.DefaultGtol, linesearch.DefaultXtol)
		if err != nil {
			return nil, err
		}
	}

	opt := &Optimizer{
		space:  space,
		opts:   o,
		lbfgs:  NewLBFGS(space, o.M),
		lnsrch: o.LineSearch,
		logger: o.Logger,
		p:      space.Create(),
		task:   Error,
		reason: NotStarted,
	}
	if !o.SaveMemory {
		opt.x0 = space.Create()
		opt.g0 = space.Create()
	}
	if o.Bounds != nil {
		opt.dx = space.Create()
		opt.free = space.Create()
		opt.gp = space.Create()
	}
	return opt, nil
}

// Start begins a new optimization run. The caller must then compute the
// function and its gradient at the initial variables, which must be feasible.
func (o *Optimizer) Start() Task {
	o.iter, o.eval, o.restarts = 0, 0, 0
	o.hasG0 = false
	return o.restart()
}

// Restart forgets the curvature information and the current line search,
// then asks for the function and its gradient at the current variables.
func (o *Optimizer) Restart() Task {
	o.restarts++
	return o.restart()
}

func (o *Optimizer) restart() Task {
	o.lbfgs.Reset()
	o.search, o.hasDir = false, false
	o.task, o.reason = ComputeFG, NoProblems
	return o.task
}

// Iterate advances the optimization with the function value f and the
// gradient g at x. It may overwrite x with a new trial point.
func (o *Optimizer) Iterate(x *vector.Vector, f float64, g *vector.Vector) Task {
	switch o.task {
	case ComputeFG:
		o.task = o.evaluated(x, f, g)
	case NewX, FinalX:
		o.task = o.nextDirection(x, f, g)
	}
	return o.task
}

// evaluated processes a new function value and gradient.
func (o *Optimizer) evaluated(x *vector.Vector, f float64, g *vector.Vector) Task {
	sp, log := o.space, o.logger
	o.eval++
	gp := o.projectGradient(x, g)

	if o.search {
		var gd float64
		if o.opts.Bounds == nil {
			gd = -sp.Dot(o.p, g)
		} else {
			// The step may be truncated by the projection.
			sp.Axpby(o.dx, 1, x, -1, o.x0)
			gd = sp.Dot(g, o.dx) / o.alpha
		}

		status := o.lnsrch.Iterate(o.alpha, f, gd)
		if log.Enabled(logs.LogTrace) {
			log.Logf("LINE SEARCH  stp= %12.5e    f= %12.5e    gd= %12.5e    %v\n", o.alpha, f, gd, status)
		}
		switch {
		case status == linesearch.Search:
			o.alpha = o.lnsrch.Step()
			o.trial(x)
			return ComputeFG
		case o.acceptable(status):
			o.search = false
			o.iter++
		case status.HasErrors():
			o.reason = LnsrchError
			o.logExit(status)
			return Error
		default:
			o.reason = LnsrchWarning
			o.logExit(status)
			return Warning
		}
	}

	o.gnorm = sp.Norm2(gp)
	if !o.hasG0 {
		o.ginit, o.hasG0 = o.gnorm, true
	}
	gtest := math.Max(o.opts.Gatol, o.opts.Grtol*o.ginit)

	if log.Enabled(logs.LogEval) && o.iter%int(max(log.Level, 1)) == 0 || log.Enabled(logs.LogTrace) {
		log.Logf("At iterate %5d    f= %12.5e    |proj g|= %12.5e\n", o.iter, f, o.gnorm)
		if log.Enabled(logs.LogVerbose) {
			log.Vector("X", x.Data())
			log.Vector("G", gp.Data())
		}
	}
	if log.Enabled(logs.LogEval) {
		log.Outf("%4d %5d %5d %10.3e %10.3e %10.3e\n", o.iter, o.eval, o.restarts, o.alpha, o.gnorm, f)
	}

	if o.gnorm <= gtest {
		return FinalX
	}
	return NewX
}

// projectGradient finds the free variables of a bounded problem and returns
// the gradient restricted to them.
func (o *Optimizer) projectGradient(x, g *vector.Vector) *vector.Vector {
	if o.opts.Bounds == nil {
		return g
	}
	o.opts.Bounds.FreeVariables(o.free, x, g)
	o.space.Multiply(o.gp, o.free, g)
	return o.gp
}

// acceptable reports whether a finished line search yields a new iterate.
// Stagnation near the solution is not considered as a failure.
func (o *Optimizer) acceptable(status linesearch.Status) bool {
	switch status {
	case linesearch.Convergence, linesearch.WarnRoundingErrors, linesearch.WarnXtolTest:
		return true
	case linesearch.WarnStpEqMax:
		return o.opts.Bounds != nil
	}
	return false
}

// nextDirection updates the LBFGS memory and starts a line search along a
// new descent direction.
func (o *Optimizer) nextDirection(x *vector.Vector, f float64, g *vector.Vector) Task {
	sp, log := o.space, o.logger

	if o.hasDir {
		if !o.lbfgs.Update(x, o.x0, g, o.g0) && log.Enabled(logs.LogTrace) {
			log.Logf("Skipping L-BFGS update.\n")
		}
	}

	// Compute a sufficient descent direction p = H·g on the free variables,
	// the step is -α·p.
	gp := g
	if o.opts.Bounds != nil {
		gp = o.gp
	}
	for {
		o.lbfgs.applyFree(o.p, gp, o.free)
		if o.opts.Bounds != nil {
			o.opts.Bounds.ProjectDirection(o.p, x, o.p)
		}
		o.pg = sp.Dot(o.p, gp)
		if o.pg > 0 && o.pg >= o.opts.Delta*sp.Norm2(o.p)*o.gnorm {
			break
		}
		if o.lbfgs.Len() == 0 {
			o.reason = BadPreconditioner
			if log.Enabled(logs.LogLast) {
				log.Logf("\nNot a descent direction: pᵀg = %e\n", o.pg)
				log.Logf("\n%s: %v\n", Error, o.reason)
			}
			return Error
		}
		o.restarts++
		o.lbfgs.Reset()
		if log.Enabled(logs.LogLast) {
			log.Logf("Refreshing LBFGS memory and restarting iteration.\n")
		}
	}

	// Length of the first trial step.
	if o.lbfgs.Len() > 0 {
		o.alpha = 1
	} else if xnorm := sp.Norm2(x); xnorm > 0 && o.opts.Epsilon > 0 {
		o.alpha = o.opts.Epsilon * xnorm / o.gnorm
	} else {
		o.alpha = 1 / o.gnorm
	}

	stpmin, stpmax := o.opts.StpMin*o.alpha, o.opts.StpMax*o.alpha
	if o.opts.Bounds != nil {
		stpmin, stpmax = 0, o.alpha
	}

	// Save the base point.
	if o.opts.SaveMemory {
		k := o.lbfgs.Lend()
		o.x0, o.g0 = o.lbfgs.S(k), o.lbfgs.Y(k)
	}
	sp.Copy(o.x0, x)
	sp.Copy(o.g0, g)
	o.f0 = f
	if status := o.lnsrch.Start(f, -o.pg, o.alpha, stpmin, stpmax); status != linesearch.Search {
		o.reason = LnsrchError
		o.logExit(status)
		return Error
	}
	o.search, o.hasDir = true, true
	o.trial(x)
	return ComputeFG
}

// trial stores x = P(x₀ - α·p).
func (o *Optimizer) trial(x *vector.Vector) {
	o.space.Axpby(x, 1, o.x0, -o.alpha, o.p)
	if o.opts.Bounds != nil {
		o.opts.Bounds.ProjectVariables(x, x)
	}
}

func (o *Optimizer) logExit(status linesearch.Status) {
	if log := o.logger; log.Enabled(logs.LogLast) {
		log.Logf("\nLine search stopped at stp = %e: %v\n", o.alpha, status)
	}
}

// Space returns the space of the variables.
func (o *Optimizer) Space() *vector.Space { return o.space }

// Task returns the last task.
func (o *Optimizer) Task() Task { return o.task }

// Reason returns the reason of the last task.
func (o *Optimizer) Reason() Reason { return o.reason }

// Iterations returns the number of accepted iterates.
func (o *Optimizer) Iterations() int { return o.iter }

// Evaluations returns the number of function and gradient evaluations.
func (o *Optimizer) Evaluations() int { return o.eval }

// Restarts returns the number of times the LBFGS memory was reset.
func (o *Optimizer) Restarts() int { return o.restarts }

// Step returns the current step length along -p.
func (o *Optimizer) Step() float64 { return o.alpha }

// GradNorm returns the Euclidean norm of the (projected) gradient at the last iterate.
func (o *Optimizer) GradNorm() float64 { return o.gnorm }

// InitialGradNorm returns the gradient norm at the first evaluation.
func (o *Optimizer) InitialGradNorm() float64 { return o.ginit }

// LineSearch returns the line search in use.
func (o *Optimizer) LineSearch() *linesearch.LineSearch { return o.lnsrch }

// LBFGS returns the inverse Hessian approximation.
func (o *Optimizer) LBFGS() *LBFGS { return o.lbfgs }
